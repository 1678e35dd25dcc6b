// Package redis keeps alert notification cooldowns in Redis.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultCooldown is how long a (sensor, alert type) pair stays quiet after
// notifying.
const DefaultCooldown = 30 * time.Minute

// Deduper suppresses repeated notifications for the same sensor and alert
// type within the cooldown window. It implements pipeline.Deduper.
type Deduper struct {
	client   *goredis.Client
	cooldown time.Duration
	logger   *slog.Logger
}

// NewClient builds a go-redis client. Connectivity is checked by the caller.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewDeduper creates a Deduper. A non-positive cooldown uses DefaultCooldown.
func NewDeduper(client *goredis.Client, cooldown time.Duration, logger *slog.Logger) *Deduper {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Deduper{client: client, cooldown: cooldown, logger: logger}
}

// ShouldNotify claims the cooldown slot for the alert. It reports true when
// no notification went out for the pair within the window. On a Redis error
// it reports true together with the error so callers can fail open.
func (d *Deduper) ShouldNotify(ctx context.Context, alert domain.Alert) (bool, error) {
	key := dedupKey(alert)
	claimed, err := d.client.SetNX(ctx, key, alert.ID, d.cooldown).Result()
	if err != nil {
		return true, fmt.Errorf("claim cooldown %s: %w", key, err)
	}
	if !claimed {
		d.logger.Debug("alert within cooldown", "key", key, "alert_id", alert.ID)
	}
	return claimed, nil
}

// releaseScript deletes the cooldown key only while it still holds the
// claiming alert's ID.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release gives up the cooldown slot claimed for alert, so the next alert of
// the pair notifies again. A slot claimed by another alert is left alone.
func (d *Deduper) Release(ctx context.Context, alert domain.Alert) error {
	key := dedupKey(alert)
	released, err := releaseScript.Run(ctx, d.client, []string{key}, alert.ID).Int()
	if err != nil {
		return fmt.Errorf("release cooldown %s: %w", key, err)
	}
	if released == 0 {
		d.logger.Debug("cooldown held by another alert", "key", key, "alert_id", alert.ID)
	}
	return nil
}

// CheckReadiness pings Redis.
func (d *Deduper) CheckReadiness(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

func (d *Deduper) Close() error {
	return d.client.Close()
}

func dedupKey(alert domain.Alert) string {
	return fmt.Sprintf("alert_notified:%s:%s", alert.SensorID, alert.Type)
}
