package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/openevac/evacmap/internal/adapters/http"
	"github.com/openevac/evacmap/internal/core/domain"
	"github.com/openevac/evacmap/internal/core/usecases"
)

// ---- Mock ports ----

type mockRouteFinder struct {
	findPathFn func(ctx context.Context, q domain.RouteQuery) (domain.RouteResult, error)
}

func (m *mockRouteFinder) FindPath(ctx context.Context, q domain.RouteQuery) (domain.RouteResult, error) {
	if m.findPathFn != nil {
		return m.findPathFn(ctx, q)
	}
	return domain.RouteResult{Found: true, Path: []domain.Position{q.Start, {Lon: -122.42, Lat: 37.78}}}, nil
}

type mockZoneStore struct {
	saveFn func(ctx context.Context, zones domain.ZoneSet) error
	loadFn func(ctx context.Context) (domain.ZoneSet, error)
}

func (m *mockZoneStore) Save(ctx context.Context, zones domain.ZoneSet) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, zones)
	}
	return nil
}

func (m *mockZoneStore) Load(ctx context.Context) (domain.ZoneSet, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return domain.ZoneSet{}, nil
}

type mockRelay struct {
	sendFn func(ctx context.Context, message string) (string, error)
}

func (m *mockRelay) Send(ctx context.Context, message string) (string, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, message)
	}
	return `{"success":true}`, nil
}

func newTestApp(routes *mockRouteFinder, relayConfigured bool) (*fiber.App, *usecases.SessionService) {
	if routes == nil {
		routes = &mockRouteFinder{}
	}
	sessions := usecases.NewSessionService(routes, &mockZoneStore{}, nil, nil, usecases.SessionConfig{})

	var notify *usecases.NotifyService
	if relayConfigured {
		notify = usecases.NewNotifyService(&mockRelay{}, sessions, nil)
	} else {
		notify = usecases.NewNotifyService(nil, sessions, nil)
	}
	geocode := usecases.NewGeocodeService(nil, nil)

	app := fiber.New()
	handler.SetupRoutes(app, &handler.Dependencies{
		Sessions: sessions,
		Notify:   notify,
		Geocode:  geocode,
	})
	return app, sessions
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(data) > 0 {
		_ = json.Unmarshal(data, &out)
	}
	return resp.StatusCode, out
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	code, body := doJSON(t, app, "POST", "/v1/sessions", "")
	if code != 201 {
		t.Fatalf("create session: status %d", code)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create session: no id in response")
	}
	return id
}

func TestCreateSession_InitialState(t *testing.T) {
	app, _ := newTestApp(nil, false)
	code, body := doJSON(t, app, "POST", "/v1/sessions", "")
	if code != 201 {
		t.Fatalf("status = %d", code)
	}
	if body["mode"] != "select_start" {
		t.Errorf("mode = %v", body["mode"])
	}
	if body["in_flight"] != false {
		t.Errorf("in_flight = %v", body["in_flight"])
	}
}

func TestGetSession_NotFound(t *testing.T) {
	app, _ := newTestApp(nil, false)
	code, body := doJSON(t, app, "GET", "/v1/sessions/nope", "")
	if code != 404 {
		t.Fatalf("status = %d", code)
	}
	if body["code"] != "not_found" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestSetMode_InvalidMode(t *testing.T) {
	app, _ := newTestApp(nil, false)
	id := createSession(t, app)
	code, body := doJSON(t, app, "POST", "/v1/sessions/"+id+"/mode", `{"mode":"fly"}`)
	if code != 400 {
		t.Fatalf("status = %d", code)
	}
	if body["code"] != "bad_request" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestDispatch_WithoutStart(t *testing.T) {
	app, _ := newTestApp(nil, false)
	id := createSession(t, app)
	code, body := doJSON(t, app, "POST", "/v1/sessions/"+id+"/dispatch", "")
	if code != 400 {
		t.Fatalf("status = %d", code)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "start point") {
		t.Errorf("message = %v", body["message"])
	}
}

func TestFullDispatchFlow(t *testing.T) {
	app, _ := newTestApp(nil, false)
	id := createSession(t, app)
	base := "/v1/sessions/" + id

	// Pick the start point.
	code, body := doJSON(t, app, "POST", base+"/click", `{"lon":-122.41,"lat":37.77}`)
	if code != 200 {
		t.Fatalf("click: status %d", code)
	}
	if body["start"] == nil {
		t.Fatal("start not set by click")
	}

	// Draw a safe zone.
	if code, _ := doJSON(t, app, "POST", base+"/mode", `{"mode":"draw_safe"}`); code != 200 {
		t.Fatalf("mode: status %d", code)
	}
	draft := `{"kind":"safe","polygons":[{"coordinates":[[-122.42,37.78],[-122.43,37.78],[-122.43,37.79],[-122.42,37.78]]}]}`
	if code, _ := doJSON(t, app, "PUT", base+"/draft", draft); code != 204 {
		t.Fatalf("draft: status %d", code)
	}
	if code, _ := doJSON(t, app, "POST", base+"/mode", `{"mode":"select_start"}`); code != 200 {
		t.Fatalf("mode: status %d", code)
	}

	// Dispatch.
	code, body = doJSON(t, app, "POST", base+"/dispatch", "")
	if code != 202 {
		t.Fatalf("dispatch: status %d body %v", code, body)
	}
	if body["state"] != "pending" {
		t.Errorf("dispatched request state = %v", body["state"])
	}

	// The async completion lands shortly after.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body = doJSON(t, app, "GET", base+"/requests", "")
		reqs, _ := body["requests"].([]any)
		if len(reqs) == 1 {
			if state := reqs[0].(map[string]any)["state"]; state == "resolved" {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("request never resolved: %v", body)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Layers carry the resolved path as a LineString.
	_, body = doJSON(t, app, "GET", base+"/layers", "")
	paths, _ := body["paths"].(map[string]any)
	features, _ := paths["features"].([]any)
	if len(features) != 1 {
		t.Fatalf("path features = %d", len(features))
	}
	geom := features[0].(map[string]any)["geometry"].(map[string]any)
	if geom["type"] != "LineString" {
		t.Errorf("geometry type = %v", geom["type"])
	}
}

func TestReset_ReturnsInitialSummary(t *testing.T) {
	app, _ := newTestApp(nil, false)
	id := createSession(t, app)
	base := "/v1/sessions/" + id

	if code, _ := doJSON(t, app, "POST", base+"/click", `{"lon":-122.41,"lat":37.77}`); code != 200 {
		t.Fatal("click failed")
	}
	code, body := doJSON(t, app, "POST", base+"/reset", "")
	if code != 200 {
		t.Fatalf("reset: status %d", code)
	}
	if body["start"] != nil || body["mode"] != "select_start" {
		t.Errorf("post-reset summary = %v", body)
	}
}

func TestNotify_MissingMessage(t *testing.T) {
	app, _ := newTestApp(nil, true)
	code, body := doJSON(t, app, "POST", "/v1/notify", `{"session_id":"s1"}`)
	if code != 400 {
		t.Fatalf("status = %d", code)
	}
	if body["code"] != "bad_request" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestNotify_UnconfiguredRelay(t *testing.T) {
	app, _ := newTestApp(nil, false)
	code, body := doJSON(t, app, "POST", "/v1/notify", `{"session_id":"s1","message":"evacuate now"}`)
	if code != 500 {
		t.Fatalf("status = %d", code)
	}
	if body["code"] != "configuration_missing" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestGeocode_Unconfigured(t *testing.T) {
	app, _ := newTestApp(nil, false)
	code, body := doJSON(t, app, "POST", "/v1/geocode", `{"address":"Gran Via 1, Bilbao"}`)
	if code != 500 {
		t.Fatalf("status = %d", code)
	}
	if body["code"] != "configuration_missing" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestDeleteSession(t *testing.T) {
	app, _ := newTestApp(nil, false)
	id := createSession(t, app)
	code, _ := doJSON(t, app, "DELETE", "/v1/sessions/"+id, "")
	if code != 204 {
		t.Fatalf("delete: status %d", code)
	}
	code, _ = doJSON(t, app, "GET", "/v1/sessions/"+id, "")
	if code != 404 {
		t.Fatalf("status after delete = %d", code)
	}
}

func TestGraphQL_SessionQuery(t *testing.T) {
	app, _ := newTestApp(nil, false)
	id := createSession(t, app)

	q := fmt.Sprintf(`{"query":"{ session(id: \"%s\") { id mode in_flight } }"}`, id)
	code, body := doJSON(t, app, "POST", "/graphql", q)
	if code != 200 {
		t.Fatalf("graphql: status %d", code)
	}
	data, _ := body["data"].(map[string]any)
	sess, _ := data["session"].(map[string]any)
	if sess["id"] != id || sess["mode"] != "select_start" {
		t.Errorf("graphql session = %v", sess)
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(nil, false)
	code, body := doJSON(t, app, "GET", "/v1/health", "")
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
}
