package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestor_Ingest(t *testing.T) {
	f := loadScenario(t)
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	in := pipeline.NewIngestor(newScenarioAssessor(t, f, f), ldr, metrics)

	m, err := in.Ingest(context.Background(), domain.Telemetry{
		SensorID:     "s-valley-02",
		SoilMoisture: 80,
		SlopeDegrees: 33,
		RainAlert:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RiskCritical, m.Level)
	require.NotNil(t, m.Alert)
	assert.Equal(t, domain.AlertHeavyRainSaturatedSoil, m.Alert.Type)
	// Readings without a timestamp are stamped with the current time.
	assert.Equal(t, scenarioNow, m.Telemetry.Timestamp)

	require.Len(t, ldr.snapshot(), 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MeasurementsProduced), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		metrics.AlertsRaised.WithLabelValues(string(domain.AlertHeavyRainSaturatedSoil), "CRITICAL")), 0)
}

func TestIngestor_RejectsInvalidTelemetry(t *testing.T) {
	f := loadScenario(t)
	ldr := &mockLoader{}
	in := pipeline.NewIngestor(newScenarioAssessor(t, f, nil), ldr, newTestMetrics())

	_, err := in.Ingest(context.Background(), domain.Telemetry{SensorID: "s-ridge-01", SoilMoisture: 140})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTelemetry))
	assert.Equal(t, 0, ldr.calls)
}

func TestIngestor_UnknownSensorCountsAsTransformError(t *testing.T) {
	f := loadScenario(t)
	metrics := newTestMetrics()
	in := pipeline.NewIngestor(newScenarioAssessor(t, f, nil), &mockLoader{}, metrics)

	_, err := in.Ingest(context.Background(), domain.Telemetry{SensorID: "s-missing", SoilMoisture: 40})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSensorNotFound))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestIngestor_LoadFailure(t *testing.T) {
	f := loadScenario(t)
	in := pipeline.NewIngestor(newScenarioAssessor(t, f, nil), &mockLoader{err: errors.New("db down")}, newTestMetrics())

	_, err := in.Ingest(context.Background(), domain.Telemetry{SensorID: "s-ridge-01", SoilMoisture: 40, SlopeDegrees: 10})
	assert.ErrorContains(t, err, "load measurement")
}
