package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlertType names the condition that raised an alert.
type AlertType string

const (
	AlertRainForecastWarning    AlertType = "RAIN_FORECAST_WARNING"
	AlertHeavyRainSaturatedSoil AlertType = "HEAVY_RAIN_SATURATED_SOIL"
	AlertFullSaturation         AlertType = "FULL_SATURATION"
	AlertFrictionAngleExceeded  AlertType = "FRICTION_ANGLE_EXCEEDED"
	AlertCriticalRisk           AlertType = "CRITICAL_RISK"
	AlertRainOnWetSoil          AlertType = "RAIN_ON_WET_SOIL"
	AlertForecastHeavyRain      AlertType = "FORECAST_HEAVY_RAIN"
	AlertSaturationRising       AlertType = "SATURATION_RISING"
	AlertSteepSlope             AlertType = "STEEP_SLOPE"
	AlertAcceleratedErosion     AlertType = "ACCELERATED_EROSION"
	AlertHighRisk               AlertType = "HIGH_RISK"
	AlertManual                 AlertType = "MANUAL"
)

var alertTypes = []AlertType{
	AlertRainForecastWarning, AlertHeavyRainSaturatedSoil, AlertFullSaturation,
	AlertFrictionAngleExceeded, AlertCriticalRisk, AlertRainOnWetSoil,
	AlertForecastHeavyRain, AlertSaturationRising, AlertSteepSlope,
	AlertAcceleratedErosion, AlertHighRisk, AlertManual,
}

// ParseAlertType accepts an alert type name in any case.
func ParseAlertType(s string) (AlertType, error) {
	t := AlertType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range alertTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown alert type %q", s)
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive   AlertStatus = "ACTIVE"
	AlertResolved AlertStatus = "RESOLVED"
	AlertIgnored  AlertStatus = "IGNORED"
)

// Terminal reports whether no further transition is allowed.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertIgnored
}

// Alert errors.
var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrAlertClosed   = errors.New("alert already closed")
	ErrInvalidAlert  = errors.New("invalid alert")
)

// DefaultAlertLimit caps alert listings that set no limit.
const DefaultAlertLimit = 100

// AlertFilter narrows an alert listing. Zero fields do not filter.
type AlertFilter struct {
	Status   AlertStatus
	SensorID string
	Limit    int
}

// ParseAlertStatus accepts a status name in any case.
func ParseAlertStatus(s string) (AlertStatus, error) {
	st := AlertStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case AlertActive, AlertResolved, AlertIgnored:
		return st, nil
	}
	return "", fmt.Errorf("unknown alert status %q", s)
}

// ErosionSummary is the erosion snapshot stored with an alert.
type ErosionSummary struct {
	Rate  float64   `json:"annual_rate_t_per_ha"`
	Level RiskLevel `json:"risk_level"`
}

// AlertContext records the values that triggered an alert.
type AlertContext struct {
	MoisturePct           float64          `json:"moisture_pct"`
	SlopeDegrees          float64          `json:"slope_degrees"`
	RiskIndex             float64          `json:"risk_index"`
	RainAlert             bool             `json:"rain_alert"`
	SoilType              string           `json:"soil_type"`
	CriticalSaturation    float64          `json:"critical_saturation"`
	TotalSaturation       float64          `json:"total_saturation"`
	CriticalFrictionAngle float64          `json:"critical_friction_angle"`
	CohesionCoefficient   float64          `json:"cohesion_coefficient"`
	Forecast              *ForecastSummary `json:"forecast,omitempty"`
	Erosion               *ErosionSummary  `json:"erosion,omitempty"`
}

// Alert is a typed, prioritized notice about a sensor.
type Alert struct {
	ID              string        `json:"id"`
	SensorID        string        `json:"sensor_id"`
	MeasurementID   string        `json:"measurement_id,omitempty"`
	Type            AlertType     `json:"alert_type"`
	Criticality     RiskLevel     `json:"criticality"`
	Message         string        `json:"message"`
	Context         *AlertContext `json:"context,omitempty"`
	Status          AlertStatus   `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	ResolvedBy      string        `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	ResolutionNotes string        `json:"resolution_notes,omitempty"`
}

// Resolve closes an active alert as handled.
func (a *Alert) Resolve(by, notes string, at time.Time) error {
	return a.close(AlertResolved, by, notes, at)
}

// Ignore closes an active alert as a false positive or not actionable.
func (a *Alert) Ignore(by, notes string, at time.Time) error {
	return a.close(AlertIgnored, by, notes, at)
}

func (a *Alert) close(status AlertStatus, by, notes string, at time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlertClosed, a.ID, a.Status)
	}
	at = at.UTC()
	a.Status = status
	a.ResolvedBy = by
	a.ResolvedAt = &at
	a.ResolutionNotes = notes
	return nil
}

// NewManualAlert builds an operator-raised alert. An empty type becomes
// MANUAL and an empty criticality becomes MEDIUM.
func NewManualAlert(sensorID string, alertType AlertType, criticality RiskLevel, message string) (Alert, error) {
	if strings.TrimSpace(sensorID) == "" {
		return Alert{}, fmt.Errorf("%w: sensor_id is required", ErrInvalidAlert)
	}
	if strings.TrimSpace(message) == "" {
		return Alert{}, fmt.Errorf("%w: message is required", ErrInvalidAlert)
	}
	if alertType == "" {
		alertType = AlertManual
	}
	if criticality == "" {
		criticality = RiskMedium
	}
	if criticality.Rank() == 0 {
		return Alert{}, fmt.Errorf("%w: unknown criticality %q", ErrInvalidAlert, criticality)
	}
	return Alert{
		ID:          uuid.NewString(),
		SensorID:    sensorID,
		Type:        alertType,
		Criticality: criticality,
		Message:     message,
		Status:      AlertActive,
		CreatedAt:   Now(),
	}, nil
}

var alertNamespace = uuid.MustParse("5f0c7a52-7c1e-4d6b-9a57-3f1e2d8a9b40")

// AlertID derives a stable alert ID from the measurement and alert type.
func AlertID(measurementID string, alertType AlertType) string {
	return uuid.NewSHA1(alertNamespace, []byte(measurementID+"|"+string(alertType))).String()
}

// Severity thresholds used to pick the alert type.
const (
	nearSaturationPct    = 70.0
	fullSaturationPct    = 90.0
	frictionLimitDegrees = 30.0
	steepSlopeDegrees    = 25.0
)

// ClassifyAlert decides whether a measurement raises an alert and of which
// type. The first matching rule within the final level wins. LOW never
// alerts and MEDIUM only alerts with an active rain detector.
func ClassifyAlert(m Measurement, sensor Sensor, forecast *ForecastSnapshot, erosion *ErosionEstimate) *Alert {
	t := m.Telemetry
	loc := sensor.Label()
	idx := m.Assessment.RiskIndex

	var (
		alertType AlertType
		msg       string
	)
	switch m.Level {
	case RiskMedium:
		if !t.RainAlert {
			return nil
		}
		alertType = AlertRainForecastWarning
		msg = fmt.Sprintf("Rain detected at %s: soil moisture %.1f%% on a %.1f° slope (risk index %.1f). Monitor the area.",
			loc, t.SoilMoisture, t.SlopeDegrees, idx)
	case RiskCritical:
		alertType, msg = classifyCritical(t, loc, idx, m.Calibration)
	case RiskHigh:
		alertType, msg = classifyHigh(t, loc, idx, m.Calibration, forecast, erosion)
	default:
		return nil
	}

	ctx := &AlertContext{
		MoisturePct:           t.SoilMoisture,
		SlopeDegrees:          t.SlopeDegrees,
		RiskIndex:             idx,
		RainAlert:             t.RainAlert,
		SoilType:              m.Calibration.SoilType.String(),
		CriticalSaturation:    m.Calibration.CriticalSaturation,
		TotalSaturation:       m.Calibration.TotalSaturation,
		CriticalFrictionAngle: m.Calibration.CriticalFrictionAngle,
		CohesionCoefficient:   m.Calibration.CohesionCoefficient,
		Forecast:              forecast.Summary(),
	}
	if erosion != nil {
		ctx.Erosion = &ErosionSummary{Rate: erosion.Rate, Level: erosion.Level}
	}

	createdAt := m.ProcessedAt
	if createdAt.IsZero() {
		createdAt = Now()
	}
	return &Alert{
		ID:            AlertID(m.ID, alertType),
		SensorID:      t.SensorID,
		MeasurementID: m.ID,
		Type:          alertType,
		Criticality:   m.Level,
		Message:       msg,
		Context:       ctx,
		Status:        AlertActive,
		CreatedAt:     createdAt,
	}
}

func classifyCritical(t Telemetry, loc string, idx float64, cal SoilCalibration) (AlertType, string) {
	switch {
	case t.RainAlert && t.SoilMoisture > nearSaturationPct:
		return AlertHeavyRainSaturatedSoil, fmt.Sprintf(
			"Rain on saturated soil at %s: moisture %.1f%% on a %.1f° slope. Evacuate the area.",
			loc, t.SoilMoisture, t.SlopeDegrees)
	case t.SoilMoisture > fullSaturationPct:
		return AlertFullSaturation, fmt.Sprintf(
			"Soil fully saturated at %s: moisture %.1f%% (risk index %.1f).",
			loc, t.SoilMoisture, idx)
	case t.SlopeDegrees > frictionLimitDegrees:
		return AlertFrictionAngleExceeded, fmt.Sprintf(
			"Slope of %.1f° at %s is beyond stable limits (critical friction angle %.1f°, moisture %.1f%%).",
			t.SlopeDegrees, loc, cal.CriticalFrictionAngle, t.SoilMoisture)
	default:
		return AlertCriticalRisk, fmt.Sprintf(
			"Critical landslide risk at %s: risk index %.1f (moisture %.1f%%, slope %.1f°).",
			loc, idx, t.SoilMoisture, t.SlopeDegrees)
	}
}

func classifyHigh(t Telemetry, loc string, idx float64, cal SoilCalibration, forecast *ForecastSnapshot, erosion *ErosionEstimate) (AlertType, string) {
	switch {
	case t.RainAlert && t.SoilMoisture > cal.CriticalSaturation:
		return AlertRainOnWetSoil, fmt.Sprintf(
			"Rain on wet soil at %s: moisture %.1f%% above critical saturation %.1f%%.",
			loc, t.SoilMoisture, cal.CriticalSaturation)
	case forecast != nil && forecast.HeavyRain:
		return AlertForecastHeavyRain, fmt.Sprintf(
			"Heavy rain forecast at %s: %.1f mm expected in 24h with soil moisture %.1f%%.",
			loc, forecast.RainNext24hMM, t.SoilMoisture)
	case t.SoilMoisture > nearSaturationPct:
		return AlertSaturationRising, fmt.Sprintf(
			"Soil saturation rising at %s: moisture %.1f%% (risk index %.1f).",
			loc, t.SoilMoisture, idx)
	case t.SlopeDegrees > steepSlopeDegrees:
		return AlertSteepSlope, fmt.Sprintf(
			"Steep slope at %s: %.1f° with soil moisture %.1f%% (risk index %.1f).",
			loc, t.SlopeDegrees, t.SoilMoisture, idx)
	case erosion != nil && erosion.Level.AtLeast(RiskHigh):
		return AlertAcceleratedErosion, fmt.Sprintf(
			"Accelerated erosion at %s: %.2f t/ha/year (%s).",
			loc, erosion.Rate, erosion.Level)
	default:
		return AlertHighRisk, fmt.Sprintf(
			"High landslide risk at %s: risk index %.1f (moisture %.1f%%, slope %.1f°).",
			loc, idx, t.SoilMoisture, t.SlopeDegrees)
	}
}
