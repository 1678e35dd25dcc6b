package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/soil"
)

// SensorLookup fetches registered sensor metadata.
type SensorLookup interface {
	GetSensor(ctx context.Context, id string) (domain.Sensor, error)
}

// CalibrationResolver picks the soil calibration for a sensor.
type CalibrationResolver interface {
	Resolve(ctx context.Context, sensor domain.Sensor) soil.Resolution
}

// Assessor implements Transformer by running a reading through calibration
// lookup, forecast lookup and the domain decision chain.
type Assessor struct {
	sensors    SensorLookup
	resolver   CalibrationResolver
	forecaster domain.Forecaster
	logger     *slog.Logger
}

// NewAssessor creates an Assessor. Pass a nil forecaster to disable forecast
// enrichment.
func NewAssessor(sensors SensorLookup, resolver CalibrationResolver, forecaster domain.Forecaster, logger *slog.Logger) *Assessor {
	return &Assessor{
		sensors:    sensors,
		resolver:   resolver,
		forecaster: forecaster,
		logger:     logger,
	}
}

// Transform decodes a telemetry message and assesses it.
func (a *Assessor) Transform(ctx context.Context, raw domain.RawEvent) (domain.Measurement, error) {
	t, err := domain.ParseTelemetry(raw)
	if err != nil {
		return domain.Measurement{}, err
	}
	return a.Assess(ctx, t)
}

// Assess evaluates an already validated reading.
func (a *Assessor) Assess(ctx context.Context, t domain.Telemetry) (domain.Measurement, error) {
	sensor, err := a.sensors.GetSensor(ctx, t.SensorID)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("lookup sensor %s: %w", t.SensorID, err)
	}
	if !sensor.Active {
		return domain.Measurement{}, fmt.Errorf("%w: %s", domain.ErrSensorInactive, t.SensorID)
	}

	res := a.resolver.Resolve(ctx, sensor)
	forecast := a.forecast(ctx, sensor)

	m := domain.Evaluate(t, sensor, res.Calibration, res.UsedDefaults, forecast)
	a.logger.Debug("reading assessed",
		"sensor_id", t.SensorID,
		"risk_index", m.Assessment.RiskIndex,
		"level", m.Level,
		"forecast", forecast != nil,
	)
	return m, nil
}

func (a *Assessor) forecast(ctx context.Context, sensor domain.Sensor) *domain.ForecastSnapshot {
	if a.forecaster == nil {
		return nil
	}
	lat, lon, ok := sensor.Coordinates()
	if !ok {
		return nil
	}
	return a.forecaster.GetForecast(ctx, sensor.ID, lat, lon)
}
