package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/openevac/evacmap/internal/core/domain"
	"github.com/openevac/evacmap/internal/core/usecases"
)

type mockGeocoder struct {
	forwardFn func(ctx context.Context, address string) (domain.Position, error)
}

func (m *mockGeocoder) Forward(ctx context.Context, address string) (domain.Position, error) {
	if m.forwardFn != nil {
		return m.forwardFn(ctx, address)
	}
	return domain.Position{}, domain.ErrAddressNotFound
}

type mockCache struct {
	store map[string][]byte
	sets  int
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.store[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	return nil
}

func TestGeocode_NoToken(t *testing.T) {
	svc := usecases.NewGeocodeService(nil, nil)
	_, err := svc.Forward(context.Background(), "Gran Via 1, Bilbao")
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestGeocode_FirstCandidateCached(t *testing.T) {
	calls := 0
	geo := &mockGeocoder{
		forwardFn: func(ctx context.Context, address string) (domain.Position, error) {
			calls++
			return domain.Position{Lon: -2.9349, Lat: 43.2630}, nil
		},
	}
	cache := &mockCache{}
	svc := usecases.NewGeocodeService(geo, cache)

	p, err := svc.Forward(context.Background(), "Gran Via 1, Bilbao")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if p.Lon != -2.9349 {
		t.Errorf("lon = %f", p.Lon)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	// Second lookup is served from cache.
	p2, err := svc.Forward(context.Background(), "Gran Via 1, Bilbao")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if calls != 1 {
		t.Errorf("geocoder called %d times, want 1", calls)
	}
	if p2 != p {
		t.Errorf("cached position mismatch: %+v vs %+v", p2, p)
	}

	var stored domain.Position
	if err := json.Unmarshal(cache.store["geocode:fwd:Gran Via 1, Bilbao"], &stored); err != nil {
		t.Fatalf("stored value: %v", err)
	}
}

func TestGeocode_NotFoundPassesThrough(t *testing.T) {
	svc := usecases.NewGeocodeService(&mockGeocoder{}, nil)
	_, err := svc.Forward(context.Background(), "nowhere at all")
	if !errors.Is(err, domain.ErrAddressNotFound) {
		t.Errorf("expected ErrAddressNotFound, got %v", err)
	}
}
