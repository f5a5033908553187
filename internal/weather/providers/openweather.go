package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-oracle/internal/weather"
)

// OpenWeatherProvider implements weather.Provider and weather.Geocoder for OpenWeatherMap.
// Current weather is requested without a units parameter so the API answers in Kelvin.
type OpenWeatherProvider struct {
	name       string
	apiKey     string
	baseURL    string
	geoURL     string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
	geoCircuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:       "openweathermap",
		apiKey:     apiKey,
		baseURL:    "https://api.openweathermap.org/data/2.5/weather",
		geoURL:     "https://api.openweathermap.org/geo/1.0/direct",
		httpCfg:    defaultHTTPConfig(client),
		circuit:    newBreaker("openweather"),
		geoCircuit: newBreaker("openweather-geo"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Current(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", formatCoord(loc.Latitude))
		values.Set("lon", formatCoord(loc.Longitude))
		values.Set("appid", p.apiKey)

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("openweather: decode: %w", err)
	}
	if payload.Main == nil {
		return weather.Reading{}, fmt.Errorf("openweather: response has no main.temp")
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	return weather.Reading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureK: payload.Main.Temp,
	}, nil
}

// Search proxies the direct geocoding endpoint and returns its JSON array as-is.
func (p *OpenWeatherProvider) Search(ctx context.Context, query string, limit int) (json.RawMessage, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather geocoding: %w", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", query)
		values.Set("limit", strconv.Itoa(limit))
		values.Set("appid", p.apiKey)

		return http.NewRequest(http.MethodGet, p.geoURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.geoCircuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openweather geocoding: read body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("openweather geocoding: response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
