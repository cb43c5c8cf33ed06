package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/openevac/evacmap/internal/core/domain"
)

// Subjects fan out per session so the WebSocket relay can subscribe to
// exactly one session's stream: evac.session.<id>.<kind>.
const subjectPrefix = "evac.session."

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the session event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "EVAC_SESSIONS",
		Subjects:  []string{subjectPrefix + ">"},
		Retention: nats.InterestPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// event is the envelope sent to map clients.
type event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload,omitempty"`
}

func (p *Publisher) publish(sessionID, kind string, payload any) error {
	data, err := json.Marshal(event{Type: kind, SessionID: sessionID, Payload: payload})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subjectPrefix+sessionID+"."+kind, data)
	return err
}

func (p *Publisher) PublishStateChanged(ctx context.Context, sessionID string, layers *domain.LayerSet) error {
	return p.publish(sessionID, "state", layers)
}

func (p *Publisher) PublishRouteResolved(ctx context.Context, sessionID string, req *domain.PathRequest) error {
	return p.publish(sessionID, "route_resolved", req)
}

func (p *Publisher) PublishRouteFailed(ctx context.Context, sessionID string, req *domain.PathRequest) error {
	return p.publish(sessionID, "route_failed", req)
}

func (p *Publisher) PublishAlertSent(ctx context.Context, sessionID string, message string) error {
	return p.publish(sessionID, "alert_sent", map[string]string{"message": message})
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (the WebSocket
// relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
