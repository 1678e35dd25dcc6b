package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultBaseURL is the OpenWeather 2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// slotsPer24h is the number of 3-hour forecast slots covering the next day.
const slotsPer24h = 8

// ErrEmptyForecast is returned when the API answers without forecast slots.
var ErrEmptyForecast = errors.New("forecast response has no entries")

// Client implements domain.ForecastProvider using the OpenWeather 5 day / 3 hour forecast API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeather forecast client. An empty baseURL uses DefaultBaseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Forecast fetches the next 24 hours of forecast for a coordinate pair.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (domain.ForecastSnapshot, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 6, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	start := c.clock.Now()
	resp, err := c.doRequest(ctx, c.baseURL+"/forecast?"+params.Encode())
	c.metrics.ForecastAPIDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.metrics.ForecastRequests.WithLabelValues("error").Inc()
		return domain.ForecastSnapshot{}, err
	}

	snap, err := buildSnapshot(resp, c.clock.Now())
	if err != nil {
		c.metrics.ForecastRequests.WithLabelValues("error").Inc()
		return domain.ForecastSnapshot{}, err
	}
	c.metrics.ForecastRequests.WithLabelValues("success").Inc()
	c.logger.Debug("forecast fetched",
		"lat", lat,
		"lon", lon,
		"rain_next_24h_mm", snap.RainNext24hMM,
	)
	return snap, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (forecastResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return forecastResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return forecastResponse{}, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return forecastResponse{}, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	var out forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return forecastResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// buildSnapshot sums rain over the first eight slots and takes current
// conditions from the first slot.
func buildSnapshot(resp forecastResponse, now time.Time) (domain.ForecastSnapshot, error) {
	if len(resp.List) == 0 {
		return domain.ForecastSnapshot{}, ErrEmptyForecast
	}

	first := resp.List[0]
	snap := domain.ForecastSnapshot{
		FetchedAt:    now.UTC(),
		Temperature:  first.Main.Temp,
		Humidity:     first.Main.Humidity,
		WindSpeed:    first.Wind.Speed,
		RainNext3hMM: first.rainMM(),
	}
	if len(first.Weather) > 0 {
		snap.Description = first.Weather[0].Description
	}

	for i, slot := range resp.List {
		if i >= slotsPer24h {
			break
		}
		snap.RainNext24hMM += slot.rainMM()
	}
	snap.HeavyRain = snap.RainNext24hMM > domain.HeavyRainThresholdMM
	snap.Daily = dailyRollups(resp.List)
	return snap, nil
}

func dailyRollups(slots []forecastSlot) []domain.DailyRollup {
	var out []domain.DailyRollup
	index := make(map[string]int)
	for _, slot := range slots {
		day := time.Unix(slot.Dt, 0).UTC().Format(time.DateOnly)
		i, ok := index[day]
		if !ok {
			index[day] = len(out)
			out = append(out, domain.DailyRollup{
				Date:    day,
				TempMin: math.Inf(1),
				TempMax: math.Inf(-1),
			})
			i = len(out) - 1
		}
		d := &out[i]
		d.RainMM += slot.rainMM()
		d.TempMin = math.Min(d.TempMin, slot.Main.TempMin)
		d.TempMax = math.Max(d.TempMax, slot.Main.TempMax)
	}
	return out
}

// OpenWeather API response types.

type forecastResponse struct {
	List []forecastSlot `json:"list"`
}

type forecastSlot struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		TempMin  float64 `json:"temp_min"`
		TempMax  float64 `json:"temp_max"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain *struct {
		ThreeHours float64 `json:"3h"`
	} `json:"rain,omitempty"`
}

func (s forecastSlot) rainMM() float64 {
	if s.Rain == nil {
		return 0
	}
	return s.Rain.ThreeHours
}
