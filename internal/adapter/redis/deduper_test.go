package redis

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
	"github.com/couchcryptid/erowatch-service/internal/pipeline"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableClient(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDedupKey(t *testing.T) {
	key := dedupKey(domain.Alert{ID: "a-1", SensorID: "s-1", Type: domain.AlertSteepSlope})
	assert.Equal(t, "alert_notified:s-1:STEEP_SLOPE", key)
}

func TestNewDeduper_DefaultCooldown(t *testing.T) {
	d := NewDeduper(unreachableClient(t), 0, slog.New(slog.DiscardHandler))
	assert.Equal(t, DefaultCooldown, d.cooldown)

	d = NewDeduper(unreachableClient(t), time.Minute, slog.New(slog.DiscardHandler))
	assert.Equal(t, time.Minute, d.cooldown)
}

func TestShouldNotify_FailsOpenWhenRedisIsDown(t *testing.T) {
	d := NewDeduper(unreachableClient(t), time.Minute, slog.New(slog.DiscardHandler))

	ok, err := d.ShouldNotify(context.Background(), domain.Alert{ID: "a-1", SensorID: "s-1", Type: domain.AlertCriticalRisk})
	require.Error(t, err)
	assert.True(t, ok)
	assert.Contains(t, err.Error(), "alert_notified:s-1:CRITICAL_RISK")
}

func TestCheckReadiness_Unreachable(t *testing.T) {
	d := NewDeduper(unreachableClient(t), time.Minute, slog.New(slog.DiscardHandler))
	assert.ErrorContains(t, d.CheckReadiness(context.Background()), "redis unreachable")
}

func newTestDeduper(t *testing.T, cooldown time.Duration) (*Deduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewDeduper(client, cooldown, slog.New(slog.DiscardHandler)), mr
}

func criticalAlert(id string) domain.Alert {
	return domain.Alert{ID: id, SensorID: "s-hill-01", Type: domain.AlertCriticalRisk, Criticality: domain.RiskCritical}
}

func TestShouldNotify_CooldownWindow(t *testing.T) {
	d, mr := newTestDeduper(t, 30*time.Minute)
	ctx := context.Background()

	ok, err := d.ShouldNotify(ctx, criticalAlert("a-1"))
	require.NoError(t, err)
	assert.True(t, ok, "first alert claims the slot")

	key := "alert_notified:s-hill-01:CRITICAL_RISK"
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "a-1", got)
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	ok, err = d.ShouldNotify(ctx, criticalAlert("a-2"))
	require.NoError(t, err)
	assert.False(t, ok, "same pair inside the cooldown is suppressed")

	other := criticalAlert("a-3")
	other.Type = domain.AlertFullSaturation
	ok, err = d.ShouldNotify(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok, "another alert type has its own slot")

	mr.FastForward(29 * time.Minute)
	ok, err = d.ShouldNotify(ctx, criticalAlert("a-4"))
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute)
	ok, err = d.ShouldNotify(ctx, criticalAlert("a-5"))
	require.NoError(t, err)
	assert.True(t, ok, "slot is free again after the cooldown")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	key := "alert_notified:s-hill-01:CRITICAL_RISK"

	t.Run("frees own claim", func(t *testing.T) {
		d, mr := newTestDeduper(t, time.Minute)
		ok, err := d.ShouldNotify(ctx, criticalAlert("a-1"))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, d.Release(ctx, criticalAlert("a-1")))
		assert.False(t, mr.Exists(key))

		ok, err = d.ShouldNotify(ctx, criticalAlert("a-2"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("keeps a claim held by another alert", func(t *testing.T) {
		d, mr := newTestDeduper(t, time.Minute)
		ok, err := d.ShouldNotify(ctx, criticalAlert("a-1"))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, d.Release(ctx, criticalAlert("a-2")))
		got, err := mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "a-1", got)
	})

	t.Run("missing key is a no-op", func(t *testing.T) {
		d, mr := newTestDeduper(t, time.Minute)
		require.NoError(t, d.Release(ctx, criticalAlert("a-1")))
		assert.False(t, mr.Exists(key))
	})
}

func TestRelease_RedisDown(t *testing.T) {
	d := NewDeduper(unreachableClient(t), time.Minute, slog.New(slog.DiscardHandler))
	assert.ErrorContains(t, d.Release(context.Background(), criticalAlert("a-1")), "release cooldown")
}

func TestCheckReadiness_Reachable(t *testing.T) {
	d, _ := newTestDeduper(t, time.Minute)
	assert.NoError(t, d.CheckReadiness(context.Background()))
}

type flakyNotifier struct {
	failures int
	calls    int
	sent     []string
}

func (n *flakyNotifier) Notify(_ context.Context, _, message string) error {
	n.calls++
	if n.calls <= n.failures {
		return errors.New("telegram: 502 bad gateway")
	}
	n.sent = append(n.sent, message)
	return nil
}

func TestDeduper_FailedDeliveryDoesNotSilencePair(t *testing.T) {
	d, _ := newTestDeduper(t, 30*time.Minute)
	n := &flakyNotifier{failures: 1}
	dispatcher := pipeline.NewAlertDispatcher(n, d, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
	ctx := context.Background()

	batch := func(id string) []domain.Measurement {
		a := criticalAlert(id)
		return []domain.Measurement{{ID: "m-" + id, Level: domain.RiskCritical, Alert: &a, Notification: "evacuate " + id}}
	}

	require.NoError(t, dispatcher.LoadBatch(ctx, batch("a-1")))
	require.NoError(t, dispatcher.LoadBatch(ctx, batch("a-2")))
	require.NoError(t, dispatcher.LoadBatch(ctx, batch("a-3")))

	assert.Equal(t, 2, n.calls)
	assert.Equal(t, []string{"evacuate a-2"}, n.sent)
}
