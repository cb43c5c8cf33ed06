package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/openevac/evacmap/internal/core/domain"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements ports.Geocoder against the Mapbox forward-geocoding
// API. The first candidate feature wins.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a geocoding client. Callers should not construct one without a
// token; the service layer treats a nil geocoder as a disabled affordance.
func New(token string) *Client {
	return &Client{baseURL: defaultBaseURL, token: token, httpc: http.DefaultClient}
}

// NewWithBaseURL overrides the endpoint, for tests.
func NewWithBaseURL(token, baseURL string) *Client {
	c := New(token)
	c.baseURL = baseURL
	return c
}

type geocodeResponse struct {
	Features []struct {
		Center domain.Position `json:"center"`
	} `json:"features"`
}

// Forward resolves an address to its best-candidate coordinate.
func (c *Client) Forward(ctx context.Context, address string) (domain.Position, error) {
	endpoint := fmt.Sprintf("%s/%s.json?access_token=%s&limit=1",
		c.baseURL, url.PathEscape(address), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Position{}, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Position{}, &domain.NetworkError{Service: "geocoding", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Position{}, &domain.ServiceError{Service: "geocoding", Status: resp.StatusCode}
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Position{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Features) == 0 {
		return domain.Position{}, domain.ErrAddressNotFound
	}
	return out.Features[0].Center, nil
}
