package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openevac/evacmap/internal/core/domain"
)

// Client implements ports.RouteFinder against the external pathfinding
// service's POST /find_path. It holds no mutable state, so concurrent calls
// are safe.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a routing client. Timeout semantics are whatever the default
// transport provides; requests are not cancellable once dispatched.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
	}
}

type point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func toPoint(p domain.Position) point {
	return point{Longitude: p.Lon, Latitude: p.Lat}
}

type findPathRequest struct {
	StartPoint point                 `json:"start_point"`
	EndPoint   *point                `json:"end_point,omitempty"`
	SafeZones  []domain.PolygonInput `json:"safe_zones,omitempty"`
	Polygons   []domain.PolygonInput `json:"polygons"`
}

// findPathResponse accepts both payload spellings the service has used for
// the route coordinates.
type findPathResponse struct {
	PathFound       bool              `json:"path_found"`
	Path            []domain.Position `json:"path"`
	PathCoordinates []domain.Position `json:"path_coordinates"`
	Message         string            `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// FindPath issues one routing computation. A 2xx answer with
// path_found=false is the explicit no-route result, returned with a nil
// error; only transport and service problems are errors.
func (c *Client) FindPath(ctx context.Context, q domain.RouteQuery) (domain.RouteResult, error) {
	body := findPathRequest{
		StartPoint: toPoint(q.Start),
		Polygons:   encodePolygons(q.Exclusion),
	}
	if q.End != nil {
		p := toPoint(*q.End)
		body.EndPoint = &p
	}
	if len(q.Safe) > 0 {
		body.SafeZones = encodePolygons(q.Safe)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/find_path", bytes.NewReader(payload))
	if err != nil {
		return domain.RouteResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.RouteResult{}, &domain.NetworkError{Service: "routing", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return domain.RouteResult{}, &domain.ServiceError{Service: "routing", Status: resp.StatusCode, Detail: er.Detail}
	}

	var out findPathResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RouteResult{}, fmt.Errorf("decode response: %w", err)
	}

	path := out.Path
	if len(path) == 0 {
		path = out.PathCoordinates
	}

	return domain.RouteResult{
		Found:   out.PathFound,
		Path:    path,
		Message: out.Message,
	}, nil
}

func encodePolygons(polys []domain.Polygon) []domain.PolygonInput {
	out := make([]domain.PolygonInput, 0, len(polys))
	for _, p := range polys {
		out = append(out, domain.EncodePolygon(p))
	}
	return out
}
