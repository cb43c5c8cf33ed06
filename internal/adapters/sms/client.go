package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openevac/evacmap/internal/core/domain"
)

// Client implements ports.SMSRelay. One POST to the relay with the
// configured key and fixed destination number; the relay's raw JSON response
// comes back to the caller and its error string is surfaced verbatim. No
// retries.
type Client struct {
	relayURL    string
	apiKey      string
	destination string
	httpc       *http.Client
}

func New(relayURL, apiKey, destination string) *Client {
	return &Client{
		relayURL:    relayURL,
		apiKey:      apiKey,
		destination: destination,
		httpc:       http.DefaultClient,
	}
}

type relayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Key     string `json:"key"`
}

type relayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Send delivers one message and returns the relay's raw response body.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	payload, err := json.Marshal(relayRequest{
		Phone:   c.destination,
		Message: message,
		Key:     c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &domain.NetworkError{Service: "sms relay", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(body), &domain.ServiceError{Service: "sms relay", Status: resp.StatusCode, Detail: string(body)}
	}

	var rr relayResponse
	if err := json.Unmarshal(body, &rr); err == nil && !rr.Success && rr.Error != "" {
		return string(body), &domain.ServiceError{Service: "sms relay", Status: resp.StatusCode, Detail: rr.Error}
	}

	return string(body), nil
}
