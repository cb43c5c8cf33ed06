package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openevac/evacmap/internal/core/domain"
	"github.com/openevac/evacmap/internal/core/ports"
	"github.com/openevac/evacmap/internal/pkg/metrics"
)

// GeocodeService resolves addresses through the external geocoder with a
// read-through cache. Results barely change, so hits are cheap to keep warm.
type GeocodeService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
}

// NewGeocodeService creates the service. geocoder is nil when no access
// token is configured; Forward then degrades to a configuration error so the
// UI can disable the affordance instead of failing the call.
func NewGeocodeService(geocoder ports.Geocoder, cache ports.CacheService) *GeocodeService {
	return &GeocodeService{geocoder: geocoder, cache: cache}
}

// Forward geocodes an address, first candidate wins.
func (s *GeocodeService) Forward(ctx context.Context, address string) (domain.Position, error) {
	if s.geocoder == nil {
		return domain.Position{}, &domain.ConfigurationError{Missing: "geocoding access token"}
	}
	if address == "" {
		return domain.Position{}, fmt.Errorf("address is required")
	}

	cacheKey := "geocode:fwd:" + address
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p domain.Position
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return p, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	p, err := s.geocoder.Forward(ctx, address)
	if err != nil {
		return domain.Position{}, err
	}

	// Addresses move rarely; cache for a day.
	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 86400)
		}
	}

	return p, nil
}
