package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"ambient-sync/internal/config"
	"ambient-sync/internal/logger"
	"ambient-sync/internal/models"
)

const (
	// hourlyTimeLayout is the calendar layout of Open-Meteo hourly
	// timestamps. Values carry no zone designator and are UTC.
	hourlyTimeLayout = "2006-01-02T15:04"

	// pastDays is the trailing window requested per transformer. The
	// readings table lags by days, not weeks, so 31 days of history is
	// enough to cover every hole the platform can still backfill.
	pastDays     = 31
	forecastDays = 1
)

// Client fetches hourly ambient temperatures from the Open-Meteo
// forecast API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

func NewClient(cfg config.WeatherConfig) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuit: cb,
		log:     logger.GetLogger("weather"),
	}
}

type forecastPayload struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2M []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// FetchHourly returns the hourly temperature samples for one coordinate,
// covering the trailing window plus the current day. Each call is a single
// attempt; the circuit breaker keeps a dead upstream from being hammered
// once per transformer.
func (c *Client) FetchHourly(ctx context.Context, latitude, longitude float64) ([]models.WeatherSample, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", latitude))
	values.Set("longitude", fmt.Sprintf("%f", longitude))
	values.Set("hourly", "temperature_2m")
	values.Set("past_days", fmt.Sprintf("%d", pastDays))
	values.Set("forecast_days", fmt.Sprintf("%d", forecastDays))

	requestURL := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("weather upstream unavailable: %w", err)
		}
		return nil, fmt.Errorf("failed to fetch weather data: %w", err)
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	var payload forecastPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode weather payload: %w", err)
	}

	n := len(payload.Hourly.Time)
	if len(payload.Hourly.Temperature2M) < n {
		n = len(payload.Hourly.Temperature2M)
	}
	if n == 0 {
		c.log.Warn().
			Float64("latitude", latitude).
			Float64("longitude", longitude).
			Msg("Weather payload contained no hourly data")
		return nil, nil
	}

	samples := make([]models.WeatherSample, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation(hourlyTimeLayout, payload.Hourly.Time[i], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse weather timestamp %q: %w", payload.Hourly.Time[i], err)
		}

		samples = append(samples, models.WeatherSample{
			Timestamp:          ts,
			AmbientTemperature: payload.Hourly.Temperature2M[i],
		})
	}

	c.log.Debug().
		Float64("latitude", latitude).
		Float64("longitude", longitude).
		Int("samples", len(samples)).
		Msg("Fetched hourly temperatures")

	return samples, nil
}
