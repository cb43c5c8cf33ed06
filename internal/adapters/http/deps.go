package http

import (
	"github.com/nats-io/nats.go"

	"github.com/openevac/evacmap/internal/adapters/postgres"
	"github.com/openevac/evacmap/internal/adapters/valkey"
	"github.com/openevac/evacmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionService
	Notify   *usecases.NotifyService
	Geocode  *usecases.GeocodeService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
