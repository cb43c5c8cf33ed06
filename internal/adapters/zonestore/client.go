package zonestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openevac/evacmap/internal/core/domain"
)

// Client implements ports.ZoneStore against the zone-persistence service.
// Both directions are replace-all: saving ships the whole set, loading
// returns it.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
	}
}

type zonesPayload struct {
	Exclusion []domain.PolygonInput `json:"exclusion"`
	Safe      []domain.PolygonInput `json:"safe"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Save ships the committed zone sets. POST /save_zones.
func (c *Client) Save(ctx context.Context, zones domain.ZoneSet) error {
	exclusion, safe := domain.EncodeZoneSet(zones)
	payload, err := json.Marshal(zonesPayload{Exclusion: exclusion, Safe: safe})
	if err != nil {
		return fmt.Errorf("encode zones: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save_zones", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &domain.NetworkError{Service: "zone store", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return &domain.ServiceError{Service: "zone store", Status: resp.StatusCode, Detail: er.Detail}
	}
	return nil
}

// Load fetches the persisted zone sets. GET /load_zones.
func (c *Client) Load(ctx context.Context) (domain.ZoneSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/load_zones", nil)
	if err != nil {
		return domain.ZoneSet{}, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.ZoneSet{}, &domain.NetworkError{Service: "zone store", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return domain.ZoneSet{}, &domain.ServiceError{Service: "zone store", Status: resp.StatusCode, Detail: er.Detail}
	}

	var payload zonesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.ZoneSet{}, fmt.Errorf("decode zones: %w", err)
	}

	return domain.DecodeZoneSet(payload.Exclusion, payload.Safe), nil
}
