package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/weather-oracle/internal/weather"
)

// Keys holds the API keys of the providers that need one.
type Keys struct {
	OpenWeather string
	WeatherAPI  string
}

// Build returns the provider chain named by names, in order.
func Build(names []string, client *http.Client, keys Keys) ([]weather.Provider, error) {
	provs := make([]weather.Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "openweather":
			provs = append(provs, NewOpenWeatherProvider(client, keys.OpenWeather))
		case "openmeteo":
			provs = append(provs, NewOpenMeteoProvider(client))
		case "weatherapi":
			provs = append(provs, NewWeatherAPIProvider(client, keys.WeatherAPI))
		default:
			return nil, fmt.Errorf("unknown weather provider %q", name)
		}
	}
	return provs, nil
}
