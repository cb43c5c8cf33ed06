package routing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openevac/evacmap/internal/adapters/routing"
	"github.com/openevac/evacmap/internal/core/domain"
)

func TestFindPath_Success(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/find_path" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"path_found":       true,
			"path_coordinates": [][]float64{{-122.41, 37.77}, {-122.42, 37.78}},
			"message":          "Path found successfully",
		})
	}))
	defer srv.Close()

	c := routing.New(srv.URL)
	res, err := c.FindPath(context.Background(), domain.RouteQuery{
		Start:     domain.Position{Lon: -122.41, Lat: 37.77},
		Exclusion: []domain.Polygon{{domain.Ring{{Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}, {Lon: 1, Lat: 2}, {Lon: 1, Lat: 1}}}},
		Safe:      []domain.Polygon{{domain.Ring{{Lon: 5, Lat: 5}, {Lon: 6, Lat: 6}, {Lon: 5, Lat: 6}, {Lon: 5, Lat: 5}}}},
	})
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if !res.Found {
		t.Fatal("expected found")
	}
	if len(res.Path) != 2 || res.Path[1].Lat != 37.78 {
		t.Errorf("path = %+v", res.Path)
	}

	// Wire shape: flat coordinate lists under "polygons" and "safe_zones",
	// start as {longitude, latitude}.
	var start struct {
		Longitude float64 `json:"longitude"`
		Latitude  float64 `json:"latitude"`
	}
	if err := json.Unmarshal(got["start_point"], &start); err != nil {
		t.Fatalf("start_point: %v", err)
	}
	if start.Longitude != -122.41 {
		t.Errorf("start longitude = %f", start.Longitude)
	}
	var polys []struct {
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(got["polygons"], &polys); err != nil {
		t.Fatalf("polygons: %v", err)
	}
	if len(polys) != 1 || len(polys[0].Coordinates) != 4 {
		t.Errorf("polygons = %+v", polys)
	}
	if _, ok := got["end_point"]; ok {
		t.Error("end_point sent for explicit flow query")
	}
}

func TestFindPath_NoRouteIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"path_found": false,
			"message":    "No safe path could be found",
		})
	}))
	defer srv.Close()

	c := routing.New(srv.URL)
	res, err := c.FindPath(context.Background(), domain.RouteQuery{Start: domain.Position{Lon: -122.41, Lat: 37.77}})
	if err != nil {
		t.Fatalf("no-route must not be an error, got %v", err)
	}
	if res.Found {
		t.Error("expected Found=false")
	}
	if res.Message != "No safe path could be found" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestFindPath_ServiceErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "start point out of bounds"})
	}))
	defer srv.Close()

	c := routing.New(srv.URL)
	_, err := c.FindPath(context.Background(), domain.RouteQuery{Start: domain.Position{Lon: 999, Lat: 999}})
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Status != 422 || svcErr.Detail != "start point out of bounds" {
		t.Errorf("service error = %+v", svcErr)
	}
}

func TestFindPath_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := routing.New(srv.URL)
	_, err := c.FindPath(context.Background(), domain.RouteQuery{Start: domain.Position{}})
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestFindPath_AcceptsPathKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"path_found": true,
			"path":       [][]float64{{0, 0}, {1, 1}},
		})
	}))
	defer srv.Close()

	c := routing.New(srv.URL)
	res, err := c.FindPath(context.Background(), domain.RouteQuery{Start: domain.Position{}})
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if len(res.Path) != 2 {
		t.Errorf("path = %+v", res.Path)
	}
}
