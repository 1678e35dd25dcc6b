package domain

import (
	"context"
	"time"
)

// HeavyRainThresholdMM is the 24 h accumulation above which rain counts as heavy.
const HeavyRainThresholdMM = 30.0

// DailyRollup aggregates forecast slots falling on one UTC day.
type DailyRollup struct {
	Date    string  `json:"date"`
	RainMM  float64 `json:"rain_mm"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

// ForecastSnapshot is a point-in-time weather forecast for one location.
// Snapshots are replaced wholesale on refresh and never mutated.
type ForecastSnapshot struct {
	FetchedAt     time.Time     `json:"fetched_at"`
	Temperature   float64       `json:"temperature"`
	Humidity      float64       `json:"humidity"`
	WindSpeed     float64       `json:"wind_speed"`
	Description   string        `json:"description"`
	RainNext24hMM float64       `json:"rain_next_24h_mm"`
	HeavyRain     bool          `json:"heavy_rain"`
	RainNext3hMM  float64       `json:"rain_next_3h_mm"`
	Daily         []DailyRollup `json:"daily,omitempty"`
}

// ForecastProvider fetches a fresh forecast for a coordinate pair.
type ForecastProvider interface {
	Forecast(ctx context.Context, lat, lon float64) (ForecastSnapshot, error)
}

// Forecaster returns a forecast for a sensor, or nil when none is available.
type Forecaster interface {
	GetForecast(ctx context.Context, sensorID string, lat, lon float64) *ForecastSnapshot
}

// ForecastSummary is the slice of a forecast kept with measurements and alerts.
type ForecastSummary struct {
	RainNext24hMM float64 `json:"rain_next_24h_mm"`
	RainNext3hMM  float64 `json:"rain_next_3h_mm"`
	HeavyRain     bool    `json:"heavy_rain"`
	Description   string  `json:"description,omitempty"`
}

// Summary returns the persisted subset of f. A nil snapshot yields nil.
func (f *ForecastSnapshot) Summary() *ForecastSummary {
	if f == nil {
		return nil
	}
	return &ForecastSummary{
		RainNext24hMM: f.RainNext24hMM,
		RainNext3hMM:  f.RainNext3hMM,
		HeavyRain:     f.HeavyRain,
		Description:   f.Description,
	}
}
