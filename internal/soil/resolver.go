// Package soil resolves the geotechnical calibration used to assess a sensor.
package soil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultTableTTL is how long a loaded soil type table is trusted.
const DefaultTableTTL = time.Hour

// refreshBackoff is how long the resolver waits after a failed table load
// before asking the source again.
const refreshBackoff = 30 * time.Second

// TableSource loads the full soil type calibration table.
type TableSource interface {
	ListSoilTypes(ctx context.Context) (map[domain.SoilType]domain.SoilCalibration, error)
}

// Resolution is the calibration chosen for a sensor.
type Resolution struct {
	Calibration  domain.SoilCalibration
	UsedDefaults bool
}

// Resolver looks up a sensor's soil type in a cached copy of the calibration
// table and applies the sensor's overrides on top.
type Resolver struct {
	source  TableSource
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	table    map[domain.SoilType]domain.SoilCalibration
	loadedAt time.Time
	failedAt time.Time
}

// NewResolver creates a Resolver. A non-positive ttl uses DefaultTableTTL.
func NewResolver(source TableSource, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTableTTL
	}
	return &Resolver{
		source:  source,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve never fails: an unknown soil type or an unavailable table yields
// the default calibration with UsedDefaults set.
func (r *Resolver) Resolve(ctx context.Context, sensor domain.Sensor) Resolution {
	base, ok := r.lookup(ctx, sensor.SoilType)
	res := Resolution{Calibration: base, UsedDefaults: !ok}
	if !ok {
		r.metrics.DefaultCalibrations.Inc()
		r.logger.Warn("using default soil calibration",
			"sensor_id", sensor.ID,
			"soil_type", sensor.SoilType.String(),
		)
	}

	if sensor.Overrides.Empty() {
		return res
	}

	overridden := sensor.Overrides.Apply(base)
	if err := overridden.Validate(); err != nil {
		r.logger.Warn("discarding sensor calibration overrides",
			"sensor_id", sensor.ID,
			"error", err,
		)
		return res
	}
	res.Calibration = overridden
	return res
}

func (r *Resolver) lookup(ctx context.Context, soilType domain.SoilType) (domain.SoilCalibration, bool) {
	if !soilType.Known() {
		return domain.DefaultCalibration(), false
	}
	cal, ok := r.currentTable(ctx)[soilType]
	if !ok {
		return domain.DefaultCalibration(), false
	}
	return cal, true
}

// currentTable returns the cached table, reloading it when stale. A failed
// reload keeps whatever was cached before and is not retried for
// refreshBackoff.
func (r *Resolver) currentTable(ctx context.Context) map[domain.SoilType]domain.SoilCalibration {
	r.mu.RLock()
	table, loadedAt, failedAt := r.table, r.loadedAt, r.failedAt
	r.mu.RUnlock()

	if table != nil && r.clock.Since(loadedAt) < r.ttl {
		return table
	}
	if !failedAt.IsZero() && r.clock.Since(failedAt) < min(refreshBackoff, r.ttl) {
		return table
	}

	fresh, err := r.source.ListSoilTypes(ctx)
	if err != nil {
		r.mu.Lock()
		r.failedAt = r.clock.Now()
		r.mu.Unlock()
		r.metrics.SoilTableRefreshes.WithLabelValues("error").Inc()
		r.logger.Warn("soil type table refresh failed", "error", err, "stale_entries", len(table))
		return table
	}
	r.metrics.SoilTableRefreshes.WithLabelValues("success").Inc()
	if fresh == nil {
		fresh = map[domain.SoilType]domain.SoilCalibration{}
	}

	r.mu.Lock()
	r.table = fresh
	r.loadedAt = r.clock.Now()
	r.failedAt = time.Time{}
	r.mu.Unlock()

	r.logger.Debug("soil type table loaded", "entries", len(fresh))
	return fresh
}
