// Package scenario loads the replayable field scenario under data/mock and
// serves it as an in-memory sensor registry, soil table and forecast source.
// The simulate command and the pipeline tests drive the real assessment
// chain with it.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

// Fixture is a complete scenario: registry data plus readings with the
// outcome each one should produce.
type Fixture struct {
	SoilTypes []domain.SoilCalibration `json:"soil_types"`
	Sensors   []domain.Sensor          `json:"sensors"`
	Forecasts []Forecast               `json:"forecasts"`
	Readings  []Reading                `json:"readings"`

	sensors   map[string]domain.Sensor
	forecasts map[string]domain.ForecastSnapshot
}

// Forecast is the rain outlook served for one sensor.
type Forecast struct {
	SensorID      string  `json:"sensor_id"`
	RainNext24hMM float64 `json:"rain_next_24h_mm"`
	RainNext3hMM  float64 `json:"rain_next_3h_mm"`
	Description   string  `json:"description"`
}

// Reading is one telemetry message and its expected assessment.
type Reading struct {
	Name      string           `json:"name"`
	Telemetry domain.Telemetry `json:"telemetry"`
	Expect    Expectation      `json:"expect"`
}

// Expectation describes the outcome of a reading. Error readings are
// rejected before assessment and carry no level.
type Expectation struct {
	Level        domain.RiskLevel `json:"level,omitempty"`
	AlertType    domain.AlertType `json:"alert_type,omitempty"`
	UsedDefaults bool             `json:"used_default_calibration,omitempty"`
	Error        bool             `json:"error,omitempty"`
}

// Load reads and indexes a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", path, err)
	}
	if err := f.index(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &f, nil
}

func (f *Fixture) index() error {
	f.sensors = make(map[string]domain.Sensor, len(f.Sensors))
	for _, s := range f.Sensors {
		if s.ID == "" {
			return fmt.Errorf("sensor without id")
		}
		s.SoilType = domain.SoilType(strings.ToUpper(string(s.SoilType)))
		f.sensors[s.ID] = s
	}
	f.forecasts = make(map[string]domain.ForecastSnapshot, len(f.Forecasts))
	for _, fc := range f.Forecasts {
		if _, ok := f.sensors[fc.SensorID]; !ok {
			return fmt.Errorf("forecast for unknown sensor %s", fc.SensorID)
		}
		f.forecasts[fc.SensorID] = domain.ForecastSnapshot{
			Description:   fc.Description,
			RainNext24hMM: fc.RainNext24hMM,
			RainNext3hMM:  fc.RainNext3hMM,
			HeavyRain:     fc.RainNext24hMM > domain.HeavyRainThresholdMM,
		}
	}
	return nil
}

// GetSensor implements the pipeline's sensor lookup.
func (f *Fixture) GetSensor(_ context.Context, id string) (domain.Sensor, error) {
	s, ok := f.sensors[id]
	if !ok {
		return domain.Sensor{}, fmt.Errorf("%w: %s", domain.ErrSensorNotFound, id)
	}
	return s, nil
}

// ListSoilTypes implements soil.TableSource.
func (f *Fixture) ListSoilTypes(_ context.Context) (map[domain.SoilType]domain.SoilCalibration, error) {
	out := make(map[domain.SoilType]domain.SoilCalibration, len(f.SoilTypes))
	for _, c := range f.SoilTypes {
		out[domain.ParseSoilType(string(c.SoilType))] = c
	}
	return out, nil
}

// GetForecast implements domain.Forecaster. Sensors without a scripted
// forecast get none.
func (f *Fixture) GetForecast(_ context.Context, sensorID string, _, _ float64) *domain.ForecastSnapshot {
	fc, ok := f.forecasts[sensorID]
	if !ok {
		return nil
	}
	fc.FetchedAt = domain.Now()
	return &fc
}

// RawEvent encodes a reading the way the source topic carries it.
func (r Reading) RawEvent() (domain.RawEvent, error) {
	value, err := json.Marshal(r.Telemetry)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("encode reading %s: %w", r.Name, err)
	}
	return domain.RawEvent{
		Key:       []byte(r.Telemetry.SensorID),
		Value:     value,
		Topic:     "scenario",
		Timestamp: r.Telemetry.Timestamp,
	}, nil
}

// Check compares an assessment outcome with the expectation and returns one
// line per mismatch.
func (r Reading) Check(m domain.Measurement, err error) []string {
	if r.Expect.Error {
		if err == nil {
			return []string{fmt.Sprintf("%s: expected rejection, got level %s", r.Name, m.Level)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("%s: unexpected error: %v", r.Name, err)}
	}

	var problems []string
	if m.Level != r.Expect.Level {
		problems = append(problems, fmt.Sprintf("%s: level %s, want %s", r.Name, m.Level, r.Expect.Level))
	}
	var got domain.AlertType
	if m.Alert != nil {
		got = m.Alert.Type
	}
	if got != r.Expect.AlertType {
		problems = append(problems, fmt.Sprintf("%s: alert %q, want %q", r.Name, got, r.Expect.AlertType))
	}
	if m.UsedDefaultCalibration != r.Expect.UsedDefaults {
		problems = append(problems, fmt.Sprintf("%s: used default calibration %t, want %t",
			r.Name, m.UsedDefaultCalibration, r.Expect.UsedDefaults))
	}
	return problems
}
