package weather

import (
	"context"
	"encoding/json"
)

// Provider abstracts a current-weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Current(ctx context.Context, loc Location) (Reading, error)
}

// Geocoder resolves free-text place names. The raw provider payload is returned
// untouched so callers can forward it verbatim.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) (json.RawMessage, error)
}
