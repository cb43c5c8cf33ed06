package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/openevac/evacmap/internal/core/domain"
	"github.com/openevac/evacmap/internal/core/ports"
	"github.com/openevac/evacmap/internal/pkg/metrics"
)

// NotifyService composes evacuation alerts and hands them to the SMS relay.
// One POST per alert, no retry; the relay's error comes back verbatim.
type NotifyService struct {
	relay    ports.SMSRelay
	sessions *SessionService
	events   ports.EventPublisher
}

// NewNotifyService creates the dispatcher. relay may be nil when the SMS
// credentials are unconfigured; SendAlert then fails early with a
// configuration error instead of attempting the call.
func NewNotifyService(relay ports.SMSRelay, sessions *SessionService, events ports.EventPublisher) *NotifyService {
	return &NotifyService{relay: relay, sessions: sessions, events: events}
}

// AlertResult reports what was actually sent.
type AlertResult struct {
	RelayResponse string `json:"relay_response"`
	LinkIncluded  bool   `json:"link_included"`
	LinkError     string `json:"link_error,omitempty"`
}

// SendAlert sends message, optionally appending a turn-by-turn link built
// from the session's most recent resolved route. A missing route only drops
// the link; the base message still goes out.
func (s *NotifyService) SendAlert(ctx context.Context, sessionID, message string, includeLink bool) (*AlertResult, error) {
	if s.relay == nil {
		return nil, &domain.ConfigurationError{Missing: "sms relay credentials"}
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	res := &AlertResult{}
	body := message
	if includeLink {
		path, err := s.sessions.LatestResolvedPath(ctx, sessionID)
		if err != nil {
			res.LinkError = err.Error()
			slog.Info("alert sent without directions link", "session", sessionID, "reason", err)
		} else {
			link, err := DirectionsLink(path)
			if err != nil {
				res.LinkError = err.Error()
			} else {
				body = message + "\n" + link
				res.LinkIncluded = true
			}
		}
	}

	resp, err := s.relay.Send(ctx, body)
	if err != nil {
		return nil, err
	}
	res.RelayResponse = resp

	metrics.AlertsSent.Inc()
	if s.events != nil {
		_ = s.events.PublishAlertSent(ctx, sessionID, body)
	}
	return res, nil
}

// DirectionsLink builds an external-maps turn-by-turn URL from a computed
// route: first coordinate is the origin, last is the destination, interior
// coordinates become ordered waypoints. The link format wants latitude first,
// so axes are swapped here and nowhere else.
func DirectionsLink(path []domain.Position) (string, error) {
	if len(path) < 2 {
		return "", domain.ErrNoRouteAvailable
	}

	latLon := func(p domain.Position) string {
		return fmt.Sprintf("%f,%f", p.Lat, p.Lon)
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", latLon(path[0]))
	q.Set("destination", latLon(path[len(path)-1]))
	if len(path) > 2 {
		wps := make([]string, 0, len(path)-2)
		for _, p := range path[1 : len(path)-1] {
			wps = append(wps, latLon(p))
		}
		q.Set("waypoints", strings.Join(wps, "|"))
	}
	q.Set("travelmode", "walking")

	return "https://www.google.com/maps/dir/?" + q.Encode(), nil
}
