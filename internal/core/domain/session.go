package domain

import (
	"fmt"
	"time"
)

// InteractionMode selects which map affordance is live. Exactly one mode is
// active per session; only the zone collection matching the active draw mode
// is mutable, everything else renders as static overlay.
type InteractionMode int

const (
	ModeSelectStart InteractionMode = iota
	ModeDrawExclusion
	ModeDrawSafe
)

func (m InteractionMode) String() string {
	switch m {
	case ModeSelectStart:
		return "select_start"
	case ModeDrawExclusion:
		return "draw_exclusion"
	case ModeDrawSafe:
		return "draw_safe"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the wire name back to a mode.
func ParseMode(s string) (InteractionMode, error) {
	switch s {
	case "select_start":
		return ModeSelectStart, nil
	case "draw_exclusion":
		return ModeDrawExclusion, nil
	case "draw_safe":
		return ModeDrawSafe, nil
	default:
		return 0, fmt.Errorf("unknown interaction mode %q", s)
	}
}

// ZoneKind names one of the two drawable collections.
type ZoneKind string

const (
	ZoneExclusion ZoneKind = "exclusion"
	ZoneSafe      ZoneKind = "safe"
)

// EditMode returns the draw mode that may mutate this kind.
func (k ZoneKind) EditMode() InteractionMode {
	if k == ZoneSafe {
		return ModeDrawSafe
	}
	return ModeDrawExclusion
}

// RequestState is the lifecycle of a path request.
type RequestState string

const (
	RequestPending  RequestState = "pending"
	RequestResolved RequestState = "resolved"
	RequestFailed   RequestState = "failed"
)

// PathRequest is one correlated unit of routing work: the start point, the
// zone geometry in effect when it was dispatched, and its eventual outcome.
// The result fields are written exactly once, by the completion handler that
// matches the request ID; requests are only ever removed by a full reset.
type PathRequest struct {
	ID           uint64       `json:"id"`
	Start        Position     `json:"start"`
	End          *Position    `json:"end,omitempty"`
	Snapshot     ZoneSet      `json:"snapshot"`
	State        RequestState `json:"state"`
	Path         []Position   `json:"path,omitempty"`
	FailureCause string       `json:"failure_cause,omitempty"`
	DispatchedAt time.Time    `json:"dispatched_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// Terminal reports whether the request has received its single result write.
func (r *PathRequest) Terminal() bool {
	return r.State == RequestResolved || r.State == RequestFailed
}

// RouteQuery is the input to the routing service.
type RouteQuery struct {
	Start     Position
	End       *Position
	Exclusion []Polygon
	Safe      []Polygon
}

// RouteResult is the decoded routing response. Found=false with a nil error
// is the explicit "no path exists" answer and must not be confused with a
// transport or service failure.
type RouteResult struct {
	Found   bool
	Path    []Position
	Message string
}
