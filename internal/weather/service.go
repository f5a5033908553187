package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SearchLimit is the number of geocoding candidates requested per search.
const SearchLimit = 5

var (
	ErrNoProviders        = errors.New("no weather providers configured")
	ErrAllProvidersFailed = errors.New("all weather providers failed")
	ErrNoGeocoder         = errors.New("no geocoder configured")
)

// Service resolves current weather through an ordered provider chain and
// proxies geocoding searches.
type Service struct {
	providers []Provider
	geocoder  Geocoder
}

// NewService creates a new Service. Providers are tried in order.
func NewService(providers []Provider, geocoder Geocoder) *Service {
	return &Service{
		providers: providers,
		geocoder:  geocoder,
	}
}

// Current returns the first successful reading from the provider chain.
func (s *Service) Current(ctx context.Context, loc Location) (Reading, error) {
	if len(s.providers) == 0 {
		return Reading{}, ErrNoProviders
	}

	var lastErr error
	for _, p := range s.providers {
		r, err := p.Current(ctx, loc)
		if err != nil {
			// Log and fall through to the next provider.
			log.Ctx(ctx).Warn().Err(err).
				Str("provider", p.Name()).
				Str("location", loc.Key()).
				Msg("provider lookup failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now().UTC()
		}
		return r, nil
	}

	return Reading{}, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// Search forwards a free-text place query to the geocoder.
func (s *Service) Search(ctx context.Context, query string) (json.RawMessage, error) {
	if s.geocoder == nil {
		return nil, ErrNoGeocoder
	}
	return s.geocoder.Search(ctx, query, SearchLimit)
}
