package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })
	return fixed
}

func reading(moisture, slope float64, rain bool) Telemetry {
	return Telemetry{
		SensorID:     "s-1",
		SoilMoisture: moisture,
		SlopeDegrees: slope,
		RainAlert:    rain,
		Timestamp:    time.Date(2025, 3, 14, 11, 55, 0, 0, time.UTC),
	}
}

func TestEvaluate_Stable(t *testing.T) {
	freezeClock(t)

	m := Evaluate(reading(45, 10, false), testSensor(), DefaultCalibration(), true, nil)

	assert.Equal(t, RiskLow, m.Level)
	assert.Nil(t, m.Alert)
	assert.Nil(t, m.Forecast)
	assert.Empty(t, m.Notification)
	assert.True(t, m.UsedDefaultCalibration)
	assert.Zero(t, m.Erosion.Rate)
}

func TestEvaluate_MediumRainWarning(t *testing.T) {
	freezeClock(t)

	m := Evaluate(reading(58, 30, true), testSensor(), DefaultCalibration(), false, nil)

	assert.Equal(t, RiskMedium, m.Level)
	require.NotNil(t, m.Alert)
	assert.Equal(t, AlertRainForecastWarning, m.Alert.Type)
	assert.Empty(t, m.Notification, "medium alerts are stored but not pushed")
}

func TestEvaluate_ForecastEscalation(t *testing.T) {
	fixed := freezeClock(t)
	forecast := &ForecastSnapshot{RainNext24hMM: 45, HeavyRain: true, RainNext3hMM: 6, Description: "heavy intensity rain"}

	m := Evaluate(reading(75, 35, false), testSensor(), DefaultCalibration(), false, forecast)

	assert.Equal(t, RiskHigh, m.Assessment.Level)
	assert.Equal(t, RiskCritical, m.Level)
	assert.Equal(t, RiskCritical, m.Erosion.Level)
	assert.Equal(t, fixed, m.ProcessedAt)
	require.NotNil(t, m.Alert)
	assert.Equal(t, AlertFrictionAngleExceeded, m.Alert.Type)
	assert.Equal(t, RiskCritical, m.Alert.Criticality)
	assert.Equal(t, m.ID, m.Alert.MeasurementID)
	assert.Contains(t, m.Notification, "*CRITICAL ALERT: FRICTION_ANGLE_EXCEEDED*")
	assert.Equal(t, &ForecastSummary{RainNext24hMM: 45, RainNext3hMM: 6, HeavyRain: true, Description: "heavy intensity rain"}, m.Forecast)
}

func TestEvaluate_Deterministic(t *testing.T) {
	freezeClock(t)
	forecast := &ForecastSnapshot{RainNext24hMM: 25}

	first := Evaluate(reading(65, 20, true), testSensor(), DefaultCalibration(), false, forecast)
	second := Evaluate(reading(65, 20, true), testSensor(), DefaultCalibration(), false, forecast)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Evaluate not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, MeasurementID("s-1", reading(65, 20, true).Timestamp), first.ID)
}

func TestMeasurementID(t *testing.T) {
	ts := time.Date(2025, 3, 14, 11, 55, 0, 0, time.UTC)
	local := ts.In(time.FixedZone("BRT", -3*3600))

	assert.Equal(t, MeasurementID("s-1", ts), MeasurementID("s-1", local))
	assert.NotEqual(t, MeasurementID("s-1", ts), MeasurementID("s-2", ts))
	assert.NotEqual(t, MeasurementID("s-1", ts), MeasurementID("s-1", ts.Add(time.Second)))
}
