package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on. Everything here is
// surfaced to the user as a transient status message; nothing retries
// automatically.
var (
	// ErrNoStartPoint: dispatch was requested before a start point existed.
	ErrNoStartPoint = errors.New("no start point selected")
	// ErrNoSafeZones: explicit-dispatch flow requires at least one safe zone.
	ErrNoSafeZones = errors.New("no safe zones drawn")
	// ErrRequestInFlight: the session already has an outstanding dispatch.
	ErrRequestInFlight = errors.New("a route request is already in flight")
	// ErrNoRouteAvailable: a directions link was requested but no resolved
	// path exists.
	ErrNoRouteAvailable = errors.New("no resolved route available")
	// ErrSessionNotFound: unknown or torn-down session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAddressNotFound: geocoding returned zero candidates.
	ErrAddressNotFound = errors.New("address not found")
)

// ConfigurationError marks an affordance disabled by missing credentials.
// Checked before the dependent call is attempted.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return "configuration missing: " + e.Missing
}

// ServiceError is a non-2xx answer from an upstream service, carrying the
// server-supplied detail when one was present.
type ServiceError struct {
	Service string
	Status  int
	Detail  string
}

func (e *ServiceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Service, e.Detail)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Status)
}

// NetworkError is a transport-level failure before any HTTP status existed.
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
