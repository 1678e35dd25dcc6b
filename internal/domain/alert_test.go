package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProcessedAt = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testSensor() Sensor {
	return Sensor{ID: "s-1", Identifier: "HILL-01", Region: "Morro Azul", SoilType: SoilLoam, Active: true}
}

func measurementAt(level RiskLevel, moisture, slope float64, rain bool) Measurement {
	return Measurement{
		ID: "m-1",
		Telemetry: Telemetry{
			SensorID:     "s-1",
			SoilMoisture: moisture,
			SlopeDegrees: slope,
			RainAlert:    rain,
		},
		Calibration: DefaultCalibration(),
		Assessment:  RiskAssessment{RiskIndex: 50, Level: level},
		Level:       level,
		ProcessedAt: testProcessedAt,
	}
}

func TestClassifyAlert_NoAlert(t *testing.T) {
	t.Run("low never alerts", func(t *testing.T) {
		for _, rain := range []bool{false, true} {
			m := measurementAt(RiskLow, 95, 45, rain)
			assert.Nil(t, ClassifyAlert(m, testSensor(), forecastWithRain(80), nil))
		}
	})

	t.Run("medium without rain", func(t *testing.T) {
		m := measurementAt(RiskMedium, 80, 28, false)
		assert.Nil(t, ClassifyAlert(m, testSensor(), forecastWithRain(35), nil))
	})
}

func TestClassifyAlert_Medium(t *testing.T) {
	got := ClassifyAlert(measurementAt(RiskMedium, 50, 20, true), testSensor(), nil, nil)

	require.NotNil(t, got)
	assert.Equal(t, AlertRainForecastWarning, got.Type)
	assert.Equal(t, RiskMedium, got.Criticality)
	assert.Contains(t, got.Message, "HILL-01 (Morro Azul)")
}

func TestClassifyAlert_Critical(t *testing.T) {
	tests := []struct {
		name     string
		moisture float64
		slope    float64
		rain     bool
		want     AlertType
	}{
		{"rain on saturated soil", 71, 40, true, AlertHeavyRainSaturatedSoil},
		{"rain at 70% is not enough", 70, 10, true, AlertCriticalRisk},
		{"full saturation", 91, 40, false, AlertFullSaturation},
		{"friction angle", 80, 31, false, AlertFrictionAngleExceeded},
		{"fallback", 80, 30, false, AlertCriticalRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyAlert(measurementAt(RiskCritical, tt.moisture, tt.slope, tt.rain), testSensor(), nil, nil)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, RiskCritical, got.Criticality)
		})
	}
}

func TestClassifyAlert_High(t *testing.T) {
	highErosion := &ErosionEstimate{Rate: 12, Level: RiskHigh}
	tests := []struct {
		name     string
		moisture float64
		slope    float64
		rain     bool
		forecast *ForecastSnapshot
		erosion  *ErosionEstimate
		want     AlertType
	}{
		{"rain on wet soil", 65, 10, true, nil, nil, AlertRainOnWetSoil},
		{"rain below critical saturation", 55, 10, true, nil, nil, AlertHighRisk},
		{"heavy rain forecast", 50, 10, false, forecastWithRain(31), nil, AlertForecastHeavyRain},
		{"moderate forecast", 50, 10, false, forecastWithRain(30), nil, AlertHighRisk},
		{"saturation rising", 71, 10, false, nil, nil, AlertSaturationRising},
		{"steep slope", 50, 26, false, nil, nil, AlertSteepSlope},
		{"accelerated erosion", 50, 20, false, nil, highErosion, AlertAcceleratedErosion},
		{"medium erosion", 50, 20, false, nil, &ErosionEstimate{Rate: 6, Level: RiskMedium}, AlertHighRisk},
		{"fallback", 50, 20, false, nil, nil, AlertHighRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyAlert(measurementAt(RiskHigh, tt.moisture, tt.slope, tt.rain), testSensor(), tt.forecast, tt.erosion)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, RiskHigh, got.Criticality)
		})
	}
}

func TestClassifyAlert_Context(t *testing.T) {
	f := forecastWithRain(45)
	f.Description = "moderate rain"
	erosion := &ErosionEstimate{Rate: 12.5, Level: RiskHigh}
	m := measurementAt(RiskHigh, 50, 20, false)

	got := ClassifyAlert(m, testSensor(), f, erosion)

	require.NotNil(t, got)
	assert.Equal(t, AlertID("m-1", AlertForecastHeavyRain), got.ID)
	assert.Equal(t, "m-1", got.MeasurementID)
	assert.Equal(t, "s-1", got.SensorID)
	assert.Equal(t, AlertActive, got.Status)
	assert.Equal(t, testProcessedAt, got.CreatedAt)
	assert.Equal(t, &AlertContext{
		MoisturePct:           50,
		SlopeDegrees:          20,
		RiskIndex:             50,
		SoilType:              "UNKNOWN",
		CriticalSaturation:    60,
		TotalSaturation:       85,
		CriticalFrictionAngle: 32,
		CohesionCoefficient:   0.1,
		Forecast:              &ForecastSummary{RainNext24hMM: 45, HeavyRain: true, Description: "moderate rain"},
		Erosion:               &ErosionSummary{Rate: 12.5, Level: RiskHigh},
	}, got.Context)
}

func TestAlertID_Deterministic(t *testing.T) {
	assert.Equal(t, AlertID("m-1", AlertHighRisk), AlertID("m-1", AlertHighRisk))
	assert.NotEqual(t, AlertID("m-1", AlertHighRisk), AlertID("m-1", AlertSteepSlope))
	assert.NotEqual(t, AlertID("m-1", AlertHighRisk), AlertID("m-2", AlertHighRisk))
}

func TestAlert_Lifecycle(t *testing.T) {
	at := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	t.Run("resolve", func(t *testing.T) {
		a := Alert{ID: "a-1", Status: AlertActive}
		require.NoError(t, a.Resolve("operator", "drainage cleared", at))

		assert.Equal(t, AlertResolved, a.Status)
		assert.Equal(t, "operator", a.ResolvedBy)
		assert.Equal(t, "drainage cleared", a.ResolutionNotes)
		require.NotNil(t, a.ResolvedAt)
		assert.Equal(t, at, *a.ResolvedAt)
	})

	t.Run("ignore", func(t *testing.T) {
		a := Alert{ID: "a-1", Status: AlertActive}
		require.NoError(t, a.Ignore("operator", "sensor maintenance", at))
		assert.Equal(t, AlertIgnored, a.Status)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		for _, status := range []AlertStatus{AlertResolved, AlertIgnored} {
			a := Alert{ID: "a-1", Status: status}
			assert.ErrorIs(t, a.Resolve("x", "", at), ErrAlertClosed)
			assert.ErrorIs(t, a.Ignore("x", "", at), ErrAlertClosed)
			assert.Equal(t, status, a.Status)
			assert.Nil(t, a.ResolvedAt)
		}
	})
}

func TestNewManualAlert(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	t.Run("defaults", func(t *testing.T) {
		a, err := NewManualAlert("s-1", "", "", "crack seen on retaining wall")
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.Equal(t, AlertManual, a.Type)
		assert.Equal(t, RiskMedium, a.Criticality)
		assert.Equal(t, AlertActive, a.Status)
		assert.Equal(t, fixed, a.CreatedAt)
	})

	t.Run("explicit criticality", func(t *testing.T) {
		a, err := NewManualAlert("s-1", AlertSteepSlope, RiskCritical, "slide started")
		require.NoError(t, err)
		assert.Equal(t, AlertSteepSlope, a.Type)
		assert.Equal(t, RiskCritical, a.Criticality)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewManualAlert("", "", "", "msg")
		assert.ErrorIs(t, err, ErrInvalidAlert)
		_, err = NewManualAlert("s-1", "", "", " ")
		assert.ErrorIs(t, err, ErrInvalidAlert)
		_, err = NewManualAlert("s-1", "", "SEVERE", "msg")
		assert.ErrorIs(t, err, ErrInvalidAlert)
	})
}

func TestParseAlertType(t *testing.T) {
	got, err := ParseAlertType("steep_slope")
	require.NoError(t, err)
	assert.Equal(t, AlertSteepSlope, got)

	_, err = ParseAlertType("earthquake")
	assert.Error(t, err)
}

func TestParseAlertStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    AlertStatus
		wantErr bool
	}{
		{in: "ACTIVE", want: AlertActive},
		{in: " resolved ", want: AlertResolved},
		{in: "Ignored", want: AlertIgnored},
		{in: "open", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlertStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
