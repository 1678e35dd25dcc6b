package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidTelemetry wraps every validation failure of a sensor reading.
var ErrInvalidTelemetry = errors.New("invalid telemetry")

// Telemetry is one sensor reading. It is never mutated after ingestion.
type Telemetry struct {
	SensorID        string    `json:"sensor_id"`
	SoilMoisture    float64   `json:"soil_moisture_pct"`
	SoilTemperature float64   `json:"soil_temperature_c"`
	AirHumidity     float64   `json:"air_humidity_pct"`
	AirTemperature  float64   `json:"air_temperature_c"`
	SlopeDegrees    float64   `json:"slope_degrees"`
	RainAlert       bool      `json:"rain_alert"`
	Timestamp       time.Time `json:"timestamp"`
}

// Validate enforces the physical ranges the risk model relies on.
func (t Telemetry) Validate() error {
	if strings.TrimSpace(t.SensorID) == "" {
		return fmt.Errorf("%w: sensor_id is required", ErrInvalidTelemetry)
	}
	if !inRange(t.SoilMoisture, 0, 100) {
		return fmt.Errorf("%w: soil_moisture_pct %g outside 0-100", ErrInvalidTelemetry, t.SoilMoisture)
	}
	if !inRange(t.AirHumidity, 0, 100) {
		return fmt.Errorf("%w: air_humidity_pct %g outside 0-100", ErrInvalidTelemetry, t.AirHumidity)
	}
	if !inRange(t.SlopeDegrees, 0, 90) {
		return fmt.Errorf("%w: slope_degrees %g outside 0-90", ErrInvalidTelemetry, t.SlopeDegrees)
	}
	if math.IsNaN(t.SoilTemperature) || math.IsNaN(t.AirTemperature) {
		return fmt.Errorf("%w: temperature is not a number", ErrInvalidTelemetry)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// ParseTelemetry decodes and validates a reading from the source topic.
// Readings without a timestamp take the message timestamp, then the clock.
func ParseTelemetry(raw RawEvent) (Telemetry, error) {
	var t Telemetry
	if err := json.Unmarshal(raw.Value, &t); err != nil {
		return Telemetry{}, fmt.Errorf("%w: parse telemetry: %w", ErrInvalidTelemetry, err)
	}
	if t.SensorID == "" && len(raw.Key) > 0 {
		t.SensorID = string(raw.Key)
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = raw.Timestamp
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = Now()
	}
	t.Timestamp = t.Timestamp.UTC()
	if err := t.Validate(); err != nil {
		return Telemetry{}, err
	}
	return t, nil
}
