package ports

import (
	"context"

	"github.com/openevac/evacmap/internal/core/domain"
)

// EventPublisher pushes session events to the message broker; the WebSocket
// relay fans them out to connected map clients.
type EventPublisher interface {
	PublishStateChanged(ctx context.Context, sessionID string, layers *domain.LayerSet) error
	PublishRouteResolved(ctx context.Context, sessionID string, req *domain.PathRequest) error
	PublishRouteFailed(ctx context.Context, sessionID string, req *domain.PathRequest) error
	PublishAlertSent(ctx context.Context, sessionID string, message string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RequestJournal records dispatched path requests and their outcomes for
// after-action review. Journal failures never affect the interaction
// surface.
type RequestJournal interface {
	RecordDispatch(ctx context.Context, sessionID string, req *domain.PathRequest) error
	RecordOutcome(ctx context.Context, sessionID string, req *domain.PathRequest) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.PathRequest, error)
}
