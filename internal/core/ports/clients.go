package ports

import (
	"context"

	"github.com/openevac/evacmap/internal/core/domain"
)

// RouteFinder issues one routing computation against the external
// pathfinding service. Implementations hold no mutable shared state so the
// session layer may run any number of calls concurrently.
type RouteFinder interface {
	// FindPath returns the computed route, an explicit not-found result, or
	// an error. Found=false with nil error means the service answered and no
	// route exists; callers must keep that distinct from failure.
	FindPath(ctx context.Context, q domain.RouteQuery) (domain.RouteResult, error)
}

// ZoneStore persists the committed zone sets remotely. Semantics are
// replace-all in both directions.
type ZoneStore interface {
	Save(ctx context.Context, zones domain.ZoneSet) error
	Load(ctx context.Context) (domain.ZoneSet, error)
}

// Geocoder resolves a free-form address to a coordinate. The first candidate
// wins; zero candidates is domain.ErrAddressNotFound.
type Geocoder interface {
	Forward(ctx context.Context, address string) (domain.Position, error)
}

// SMSRelay delivers one alert message. A single POST, no retry; the relay's
// error string is surfaced verbatim. Returns the relay's raw response body.
type SMSRelay interface {
	Send(ctx context.Context, message string) (string, error)
}
