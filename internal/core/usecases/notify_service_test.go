package usecases_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/openevac/evacmap/internal/core/domain"
	"github.com/openevac/evacmap/internal/core/usecases"
)

type mockRelay struct {
	sendFn func(ctx context.Context, message string) (string, error)
}

func (m *mockRelay) Send(ctx context.Context, message string) (string, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, message)
	}
	return `{"success":true}`, nil
}

func resolvedSession(t *testing.T, path []domain.Position) (*usecases.SessionService, string) {
	t.Helper()
	routes := &mockRouteFinder{
		findPathFn: func(ctx context.Context, q domain.RouteQuery) (domain.RouteResult, error) {
			return domain.RouteResult{Found: true, Path: path}, nil
		},
	}
	svc := newService(routes, nil, usecases.SessionConfig{})
	ctx := context.Background()
	sess := svc.Create(ctx)

	if err := svc.SetMode(ctx, sess.ID, domain.ModeDrawSafe); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := svc.UpdateDraft(ctx, sess.ID, domain.ZoneSafe, []domain.Polygon{squareAt(-122.42, 37.78)}); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if err := svc.SetMode(ctx, sess.ID, domain.ModeSelectStart); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := svc.RecordClick(ctx, sess.ID, domain.Position{Lon: path[0].Lon, Lat: path[0].Lat}, ""); err != nil {
		t.Fatalf("click: %v", err)
	}
	if _, err := svc.Dispatch(ctx, sess.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, func() bool {
		reqs, _ := svc.Requests(ctx, sess.ID)
		return len(reqs) == 1 && reqs[0].State == domain.RequestResolved
	})
	return svc, sess.ID
}

func TestDirectionsLink_ThreeCoordinates(t *testing.T) {
	path := []domain.Position{
		{Lon: -122.41, Lat: 37.77},
		{Lon: -122.415, Lat: 37.775},
		{Lon: -122.42, Lat: 37.78},
	}

	link, err := usecases.DirectionsLink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Host != "www.google.com" || u.Path != "/maps/dir/" {
		t.Errorf("unexpected link target: %s", link)
	}

	q := u.Query()
	// The link wants latitude first; internal positions are lon,lat.
	if got := q.Get("origin"); got != "37.770000,-122.410000" {
		t.Errorf("origin = %q", got)
	}
	if got := q.Get("destination"); got != "37.780000,-122.420000" {
		t.Errorf("destination = %q", got)
	}
	if got := q.Get("waypoints"); got != "37.775000,-122.415000" {
		t.Errorf("waypoints = %q", got)
	}
	if got := q.Get("travelmode"); got != "walking" {
		t.Errorf("travelmode = %q", got)
	}
}

func TestDirectionsLink_WaypointOrderPreserved(t *testing.T) {
	path := []domain.Position{
		{Lon: 0, Lat: 0},
		{Lon: 1, Lat: 1},
		{Lon: 2, Lat: 2},
		{Lon: 3, Lat: 3},
	}
	link, err := usecases.DirectionsLink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := url.Parse(link)
	wps := strings.Split(u.Query().Get("waypoints"), "|")
	if len(wps) != 2 || wps[0] != "1.000000,1.000000" || wps[1] != "2.000000,2.000000" {
		t.Errorf("waypoints = %v", wps)
	}
}

func TestDirectionsLink_TooShort(t *testing.T) {
	if _, err := usecases.DirectionsLink([]domain.Position{{Lon: 1, Lat: 1}}); !errors.Is(err, domain.ErrNoRouteAvailable) {
		t.Errorf("expected ErrNoRouteAvailable, got %v", err)
	}
}

func TestSendAlert_UnconfiguredRelay(t *testing.T) {
	sessions := newService(nil, nil, usecases.SessionConfig{})
	svc := usecases.NewNotifyService(nil, sessions, nil)

	_, err := svc.SendAlert(context.Background(), "s1", "evacuate now", false)
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestSendAlert_EmptyMessage(t *testing.T) {
	sessions := newService(nil, nil, usecases.SessionConfig{})
	svc := usecases.NewNotifyService(&mockRelay{}, sessions, nil)

	if _, err := svc.SendAlert(context.Background(), "s1", "   ", false); err == nil {
		t.Fatal("expected error for blank message")
	}
}

func TestSendAlert_LinkAppended(t *testing.T) {
	sessions, sessionID := resolvedSession(t, []domain.Position{
		{Lon: -122.41, Lat: 37.77},
		{Lon: -122.42, Lat: 37.78},
	})

	var sent string
	relay := &mockRelay{
		sendFn: func(ctx context.Context, message string) (string, error) {
			sent = message
			return "ok", nil
		},
	}
	svc := usecases.NewNotifyService(relay, sessions, nil)

	res, err := svc.SendAlert(context.Background(), sessionID, "evacuate now", true)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.LinkIncluded {
		t.Error("link not included")
	}
	if !strings.HasPrefix(sent, "evacuate now\n") || !strings.Contains(sent, "google.com/maps/dir") {
		t.Errorf("sent message = %q", sent)
	}
}

func TestSendAlert_NoResolvedRouteStillSends(t *testing.T) {
	sessions := newService(nil, nil, usecases.SessionConfig{})
	sess := sessions.Create(context.Background())

	var sent string
	relay := &mockRelay{
		sendFn: func(ctx context.Context, message string) (string, error) {
			sent = message
			return "ok", nil
		},
	}
	svc := usecases.NewNotifyService(relay, sessions, nil)

	res, err := svc.SendAlert(context.Background(), sess.ID, "evacuate now", true)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.LinkIncluded {
		t.Error("link reported included with no resolved route")
	}
	if res.LinkError == "" {
		t.Error("missing link error")
	}
	if sent != "evacuate now" {
		t.Errorf("base message altered: %q", sent)
	}
}

func TestSendAlert_RelayErrorSurfacedVerbatim(t *testing.T) {
	sessions := newService(nil, nil, usecases.SessionConfig{})
	relay := &mockRelay{
		sendFn: func(ctx context.Context, message string) (string, error) {
			return "", &domain.ServiceError{Service: "sms", Status: 200, Detail: "Out of quota"}
		},
	}
	svc := usecases.NewNotifyService(relay, sessions, nil)

	_, err := svc.SendAlert(context.Background(), "s1", "evacuate now", false)
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Detail != "Out of quota" {
		t.Errorf("relay error not verbatim: %q", svcErr.Detail)
	}
}
