package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openevac/evacmap/internal/core/domain"
	"github.com/openevac/evacmap/internal/core/ports"
	"github.com/openevac/evacmap/internal/pkg/geospatial"
	"github.com/openevac/evacmap/internal/pkg/metrics"
)

// Flow selects the interaction model. The two designs coexisted in the
// product's history; they share all draft and correlation logic and differ
// only in what a map click means.
type Flow string

const (
	// FlowExplicit: click sets the start point, zones are drawn, and an
	// explicit dispatch call fires the route request to the nearest
	// reachable safe zone.
	FlowExplicit Flow = "explicit"
	// FlowPaired: the first click is the start, the second click is the end
	// and dispatches immediately; safe zones are not sent.
	FlowPaired Flow = "paired"
)

// SessionConfig tunes the state machine.
type SessionConfig struct {
	Flow Flow
	// ClickSuppressionMeters: a click landing within this distance of an
	// existing marker or path vertex is ignored, so a new start point is
	// not dropped on top of rendered objects.
	ClickSuppressionMeters float64
	// AllowOverlap lifts the serialization of dispatches. The correlation
	// model matches results by request ID either way; the gate only decides
	// whether a second dispatch may start while one is outstanding.
	AllowOverlap bool
}

// Session owns every piece of interaction state for one connected map. What
// the browser build kept in module-level variables (mode, drafts, the
// in-flight flag, viewport size) lives here with explicit construction and
// teardown. The mutex stands in for the UI event loop's serialization.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	flow     Flow
	mode     domain.InteractionMode
	zones    domain.ZoneSet
	start    *domain.Position
	requests    []*domain.PathRequest
	nextID      uint64
	outstanding int
	// epoch fences stale completions: reset and load bump it, so a route
	// response dispatched before the wipe can never touch requests created
	// after it, even though request IDs restart at zero.
	epoch uint64

	viewportW, viewportH int
}

// SessionService is the interaction state machine plus the registry of live
// sessions. All mutation funnels through here.
type SessionService struct {
	routes  ports.RouteFinder
	zones   ports.ZoneStore
	events  ports.EventPublisher
	journal ports.RequestJournal
	cfg     SessionConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates the registry. events and journal may be nil;
// both are best-effort collaborators.
func NewSessionService(routes ports.RouteFinder, zones ports.ZoneStore, events ports.EventPublisher, journal ports.RequestJournal, cfg SessionConfig) *SessionService {
	if cfg.Flow != FlowPaired {
		cfg.Flow = FlowExplicit
	}
	if cfg.ClickSuppressionMeters <= 0 {
		cfg.ClickSuppressionMeters = 15
	}
	return &SessionService{
		routes:   routes,
		zones:    zones,
		events:   events,
		journal:  journal,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session in the initial selection mode.
func (s *SessionService) Create(ctx context.Context) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		flow:      s.cfg.Flow,
		mode:      domain.ModeSelectStart,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return sess
}

// Teardown disposes a session. In-flight completions for it become no-ops.
func (s *SessionService) Teardown(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	metrics.ActiveSessions.Dec()
	return nil
}

func (s *SessionService) get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// SetMode switches the interaction mode. A no-op while a route request is in
// flight. Switching away from a draw mode keeps that mode's polygons as
// committed geometry; entering SelectStart keeps any chosen start point.
func (s *SessionService) SetMode(ctx context.Context, id string, mode domain.InteractionMode) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.outstanding > 0 {
		sess.mu.Unlock()
		slog.Debug("mode switch ignored while request in flight", "session", id, "mode", mode.String())
		return nil
	}
	sess.mode = mode
	sess.mu.Unlock()

	s.publishState(ctx, sess)
	return nil
}

// SetViewport records the client viewport size.
func (s *SessionService) SetViewport(ctx context.Context, id string, w, h int) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.viewportW, sess.viewportH = w, h
	sess.mu.Unlock()
	return nil
}

// RecordClick handles a raw map click. hitLayer is the client hit-test
// result: "editable" when the click landed on the polygon currently being
// drawn, "object" for any other rendered feature, empty for bare map. Clicks
// are dropped unless the session is in a point-selection mode with no
// request in flight, and are also dropped near existing markers so a start
// point is never stacked onto one.
func (s *SessionService) RecordClick(ctx context.Context, id string, p domain.Position, hitLayer string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.mode != domain.ModeSelectStart || sess.outstanding > 0 {
		sess.mu.Unlock()
		return nil
	}
	if hitLayer != "" {
		sess.mu.Unlock()
		return nil
	}
	if s.nearRenderedObject(sess, p) {
		sess.mu.Unlock()
		return nil
	}

	if sess.flow == FlowPaired && sess.start != nil {
		end := p
		req := s.dispatchLocked(sess, &end)
		sess.mu.Unlock()
		s.afterDispatch(ctx, sess, req)
		return nil
	}

	start := p
	sess.start = &start
	sess.mu.Unlock()

	s.publishState(ctx, sess)
	return nil
}

// nearRenderedObject reports whether p sits on top of the start marker, a
// request marker, or a resolved path vertex. Callers hold sess.mu.
func (s *SessionService) nearRenderedObject(sess *Session, p domain.Position) bool {
	radius := s.cfg.ClickSuppressionMeters
	near := func(q domain.Position) bool {
		return geospatial.Haversine(p.Lat, p.Lon, q.Lat, q.Lon) < radius
	}
	if sess.start != nil && near(*sess.start) {
		return true
	}
	for _, req := range sess.requests {
		if near(req.Start) {
			return true
		}
		for _, v := range req.Path {
			if near(v) {
				return true
			}
		}
	}
	return false
}

// UpdateDraft replaces the whole polygon collection for kind, but only when
// the session is in that kind's edit mode. Editor callbacks can arrive after
// the mode has already moved on; the mode is re-read here, at invocation
// time, so a stale callback can never clobber newer state.
func (s *SessionService) UpdateDraft(ctx context.Context, id string, kind domain.ZoneKind, polys []domain.Polygon) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.mode != kind.EditMode() {
		sess.mu.Unlock()
		slog.Debug("draft update ignored: mode mismatch", "session", id, "kind", string(kind), "mode", sess.mode.String())
		return nil
	}
	switch kind {
	case domain.ZoneSafe:
		sess.zones.Safe = polys
	default:
		sess.zones.Exclusion = polys
	}
	sess.mu.Unlock()

	s.publishState(ctx, sess)
	return nil
}

// Dispatch fires a route request from the current start point to the nearest
// reachable safe zone (explicit flow). The request exists, in pending state,
// before the network call resolves. The returned request is a detached
// snapshot: the live record belongs to the completion goroutine, which
// mutates it under the session lock, so the caller must never see the shared
// pointer.
func (s *SessionService) Dispatch(ctx context.Context, id string) (*domain.PathRequest, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.outstanding > 0 && !s.cfg.AllowOverlap {
		sess.mu.Unlock()
		return nil, domain.ErrRequestInFlight
	}
	if sess.start == nil {
		sess.mu.Unlock()
		return nil, domain.ErrNoStartPoint
	}
	if sess.flow == FlowExplicit && len(sess.zones.Safe) == 0 {
		sess.mu.Unlock()
		return nil, domain.ErrNoSafeZones
	}
	req := s.dispatchLocked(sess, nil)
	snapshot := *req
	sess.mu.Unlock()

	s.afterDispatch(ctx, sess, req)
	return &snapshot, nil
}

// dispatchLocked allocates the request, snapshots zones, clears the start
// point, and marks the session in flight. Callers hold sess.mu.
func (s *SessionService) dispatchLocked(sess *Session, end *domain.Position) *domain.PathRequest {
	req := &domain.PathRequest{
		ID:           sess.nextID,
		Start:        *sess.start,
		End:          end,
		Snapshot:     sess.zones.Clone(),
		State:        domain.RequestPending,
		DispatchedAt: time.Now(),
	}
	sess.nextID++
	sess.requests = append(sess.requests, req)
	sess.start = nil
	sess.outstanding++
	return req
}

// afterDispatch journals, publishes, and launches the asynchronous routing
// call. Once dispatched a request runs to completion or failure; there is no
// abort path, so the call carries a fresh context rather than the caller's.
func (s *SessionService) afterDispatch(ctx context.Context, sess *Session, req *domain.PathRequest) {
	metrics.RouteRequestsDispatched.Inc()
	if s.journal != nil {
		if err := s.journal.RecordDispatch(ctx, sess.ID, req); err != nil {
			slog.Warn("journal dispatch failed", "session", sess.ID, "request", req.ID, "error", err)
		}
	}
	s.publishState(ctx, sess)

	sess.mu.Lock()
	epoch := sess.epoch
	q := domain.RouteQuery{
		Start:     req.Start,
		End:       req.End,
		Exclusion: req.Snapshot.Exclusion,
	}
	if req.End == nil {
		q.Safe = req.Snapshot.Safe
	}
	reqID := req.ID
	sess.mu.Unlock()

	go func() {
		started := time.Now()
		res, err := s.routes.FindPath(context.Background(), q)
		metrics.RouteRequestDuration.Observe(time.Since(started).Seconds())
		s.complete(sess, epoch, reqID, res, err)
	}()
}

// complete writes a request's result. The record is located by ID, never by
// position, so overlapping dispatches resolving out of order each update
// only their own entry; the epoch fence drops completions that raced a
// reset or load. The result is written at most once.
func (s *SessionService) complete(sess *Session, epoch, reqID uint64, res domain.RouteResult, err error) {
	sess.mu.Lock()
	if sess.epoch != epoch {
		sess.mu.Unlock()
		return
	}

	var req *domain.PathRequest
	for _, r := range sess.requests {
		if r.ID == reqID {
			req = r
			break
		}
	}
	if sess.outstanding > 0 {
		sess.outstanding--
	}
	if req == nil || req.Terminal() {
		sess.mu.Unlock()
		return
	}

	now := time.Now()
	req.CompletedAt = &now
	outcome := "found"
	switch {
	case err != nil:
		req.State = domain.RequestFailed
		req.FailureCause = err.Error()
		outcome = "failed"
	case !res.Found:
		req.State = domain.RequestFailed
		req.FailureCause = res.Message
		if req.FailureCause == "" {
			req.FailureCause = "no path found"
		}
		outcome = "no_route"
	default:
		req.State = domain.RequestResolved
		req.Path = res.Path
	}
	sess.mu.Unlock()

	metrics.RouteRequestsCompleted.WithLabelValues(outcome).Inc()

	ctx := context.Background()
	if s.journal != nil {
		if jerr := s.journal.RecordOutcome(ctx, sess.ID, req); jerr != nil {
			slog.Warn("journal outcome failed", "session", sess.ID, "request", req.ID, "error", jerr)
		}
	}
	if s.events != nil {
		if req.State == domain.RequestResolved {
			_ = s.events.PublishRouteResolved(ctx, sess.ID, req)
		} else {
			_ = s.events.PublishRouteFailed(ctx, sess.ID, req)
		}
	}
	s.publishState(ctx, sess)
}

// Reset wipes the session back to its initial state: no drafts, no requests,
// no start point, ID counter at zero, selection mode.
func (s *SessionService) Reset(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.zones = domain.ZoneSet{}
	sess.requests = nil
	sess.start = nil
	sess.nextID = 0
	sess.outstanding = 0
	sess.mode = domain.ModeSelectStart
	sess.epoch++
	sess.mu.Unlock()

	s.publishState(ctx, sess)
	return nil
}

// SaveZones persists the committed zone sets. Failure leaves prior state
// untouched.
func (s *SessionService) SaveZones(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	snapshot := sess.zones.Clone()
	sess.mu.Unlock()

	return s.zones.Save(ctx, snapshot)
}

// LoadZones replaces the drafts wholesale with the persisted sets and clears
// request bookkeeping: a load is a fresh start. On failure nothing changes.
func (s *SessionService) LoadZones(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	loaded, err := s.zones.Load(ctx)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.zones = loaded
	sess.requests = nil
	sess.outstanding = 0
	sess.epoch++
	sess.mu.Unlock()

	s.publishState(ctx, sess)
	return nil
}

// SessionSummary is the read-only projection of one session's headline state.
type SessionSummary struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Flow      string           `json:"flow"`
	Mode      string           `json:"mode"`
	Start     *domain.Position `json:"start,omitempty"`
	Exclusion int              `json:"exclusion_zones"`
	Safe      int              `json:"safe_zones"`
	Requests  int              `json:"requests"`
	InFlight  bool             `json:"in_flight"`
	ViewportW int              `json:"viewport_w,omitempty"`
	ViewportH int              `json:"viewport_h,omitempty"`
}

// Summary returns the headline state of a session.
func (s *SessionService) Summary(ctx context.Context, id string) (*SessionSummary, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sum := &SessionSummary{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Flow:      string(sess.flow),
		Mode:      sess.mode.String(),
		Exclusion: len(sess.zones.Exclusion),
		Safe:      len(sess.zones.Safe),
		Requests:  len(sess.requests),
		InFlight:  sess.outstanding > 0,
		ViewportW: sess.viewportW,
		ViewportH: sess.viewportH,
	}
	if sess.start != nil {
		p := *sess.start
		sum.Start = &p
	}
	return sum, nil
}

// Layers projects the session into renderable map layers.
func (s *SessionService) Layers(ctx context.Context, id string) (*domain.LayerSet, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	ls := domain.BuildLayers(sess.mode, sess.zones, sess.start, sess.requests, sess.outstanding > 0)
	return &ls, nil
}

// Requests returns the session's path requests in dispatch order.
func (s *SessionService) Requests(ctx context.Context, id string) ([]domain.PathRequest, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]domain.PathRequest, 0, len(sess.requests))
	for _, r := range sess.requests {
		out = append(out, *r)
	}
	return out, nil
}

// LatestResolvedPath returns the most recently resolved route, for the
// notification dispatcher's directions link.
func (s *SessionService) LatestResolvedPath(ctx context.Context, id string) ([]domain.Position, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for i := len(sess.requests) - 1; i >= 0; i-- {
		if sess.requests[i].State == domain.RequestResolved && len(sess.requests[i].Path) > 0 {
			path := make([]domain.Position, len(sess.requests[i].Path))
			copy(path, sess.requests[i].Path)
			return path, nil
		}
	}
	return nil, domain.ErrNoRouteAvailable
}

func (s *SessionService) publishState(ctx context.Context, sess *Session) {
	if s.events == nil {
		return
	}
	sess.mu.Lock()
	ls := domain.BuildLayers(sess.mode, sess.zones, sess.start, sess.requests, sess.outstanding > 0)
	sess.mu.Unlock()
	if err := s.events.PublishStateChanged(ctx, sess.ID, &ls); err != nil {
		slog.Debug("state publish failed", "session", sess.ID, "error", err)
	}
}
