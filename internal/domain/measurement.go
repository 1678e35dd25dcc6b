package domain

import (
	"time"

	"github.com/google/uuid"
)

// Measurement is a reading together with everything derived from it. It is
// the record persisted, published to the sink topic and returned by the API.
type Measurement struct {
	ID                     string           `json:"id"`
	Telemetry              Telemetry        `json:"telemetry"`
	Calibration            SoilCalibration  `json:"calibration"`
	UsedDefaultCalibration bool             `json:"used_default_calibration"`
	Assessment             RiskAssessment   `json:"assessment"`
	Erosion                ErosionEstimate  `json:"erosion"`
	Forecast               *ForecastSummary `json:"forecast,omitempty"`
	Level                  RiskLevel        `json:"final_level"`
	Alert                  *Alert           `json:"alert,omitempty"`
	ProcessedAt            time.Time        `json:"processed_at"`

	// Notification is the rendered chat message for HIGH and CRITICAL alerts.
	Notification string `json:"-"`
}

var measurementNamespace = uuid.MustParse("0d9c2b7e-51a4-4e7f-8a6b-2c4f1e9d3a75")

// MeasurementID derives a stable ID from sensor and reading time so replays
// of the same reading collapse onto one row.
func MeasurementID(sensorID string, ts time.Time) string {
	key := sensorID + "|" + ts.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(measurementNamespace, []byte(key)).String()
}

// Evaluate runs the full decision chain for one reading: risk index, erosion,
// climate escalation and alert classification. Calibration and forecast are
// resolved by the caller; forecast may be nil.
func Evaluate(t Telemetry, sensor Sensor, cal SoilCalibration, usedDefaults bool, forecast *ForecastSnapshot) Measurement {
	risk := ComputeRisk(t.SoilMoisture, t.SlopeDegrees, t.RainAlert, cal)
	erosion := EstimateErosion(t, forecast)

	m := Measurement{
		ID:                     MeasurementID(t.SensorID, t.Timestamp),
		Telemetry:              t,
		Calibration:            cal,
		UsedDefaultCalibration: usedDefaults,
		Assessment:             risk,
		Erosion:                erosion,
		Forecast:               forecast.Summary(),
		Level:                  CombineClimateRisk(risk.Level, t.SoilMoisture, forecast),
		ProcessedAt:            Now(),
	}

	if alert := ClassifyAlert(m, sensor, forecast, &erosion); alert != nil {
		m.Alert = alert
		if alert.Criticality.AtLeast(RiskHigh) {
			m.Notification = RenderNotification(*alert, sensor, t, forecast)
		}
	}
	return m
}
