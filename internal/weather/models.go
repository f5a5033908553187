package weather

import (
	"fmt"
	"time"

	"github.com/i474232898/weather-oracle/internal/common"
)

// kelvinOffset is the fixed linear offset between Kelvin and Celsius.
const kelvinOffset = 273.15

// Location is a coordinate pair used verbatim for provider lookups.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns a canonical string key for logging.
func (l Location) Key() string {
	return fmt.Sprintf("%f,%f", l.Latitude, l.Longitude)
}

// Reading is a single provider's current observation. Temperature is always
// carried in Kelvin regardless of the provider's native unit.
type Reading struct {
	ProviderName string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"` // always UTC
	TemperatureK float64   `json:"temperatureK"`
}

// Celsius returns the reading converted to Celsius, rounded to two decimals.
func (r Reading) Celsius() float64 {
	return KelvinToCelsius(r.TemperatureK)
}

// KelvinToCelsius converts and rounds to two decimal places:
// round((k - 273.15) * 100) / 100.
func KelvinToCelsius(k float64) float64 {
	return common.RoundTo(k-kelvinOffset, 2)
}

// CelsiusToKelvin is used by providers that report Celsius natively.
func CelsiusToKelvin(c float64) float64 {
	return c + kelvinOffset
}
