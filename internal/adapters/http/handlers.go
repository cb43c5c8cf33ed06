package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/openevac/evacmap/internal/core/domain"
)

// CreateSessionHandler starts a new map session in start-selection mode.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := deps.Sessions.Create(c.Context())
		sum, err := deps.Sessions.Summary(c.Context(), sess.ID)
		if err != nil {
			return errDomain(c, err)
		}
		return c.Status(201).JSON(sum)
	}
}

// GetSessionHandler returns the headline state of one session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := deps.Sessions.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(sum)
	}
}

// DeleteSessionHandler tears a session down.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Teardown(c.Context(), c.Params("id")); err != nil {
			return errDomain(c, err)
		}
		return c.SendStatus(204)
	}
}

// SetModeHandler switches the interaction mode. Silently kept as-is while a
// route request is in flight, matching the map's disabled mode buttons.
func SetModeHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Mode string `json:"mode"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		mode, err := domain.ParseMode(req.Mode)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := deps.Sessions.SetMode(c.Context(), c.Params("id"), mode); err != nil {
			return errDomain(c, err)
		}
		sum, err := deps.Sessions.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(sum)
	}
}

// ClickHandler records a raw map click. hit carries the client-side hit-test
// result ("editable", "object", or empty for bare map); the server applies
// the rest of the suppression rules.
func ClickHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
		Hit string  `json:"hit"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		p := domain.Position{Lon: req.Lon, Lat: req.Lat}
		if err := deps.Sessions.RecordClick(c.Context(), c.Params("id"), p, req.Hit); err != nil {
			return errDomain(c, err)
		}
		sum, err := deps.Sessions.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(sum)
	}
}

// ViewportHandler records the client viewport size.
func ViewportHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Width <= 0 || req.Height <= 0 {
			return errBadRequest(c, "width and height must be positive")
		}
		if err := deps.Sessions.SetViewport(c.Context(), c.Params("id"), req.Width, req.Height); err != nil {
			return errDomain(c, err)
		}
		return c.SendStatus(204)
	}
}

// UpdateDraftHandler replaces the polygon collection for one zone kind. The
// kind must match the session's active draw mode; a stale editor callback is
// ignored, not an error.
func UpdateDraftHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Kind     string                `json:"kind"`
		Polygons []domain.PolygonInput `json:"polygons"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		var kind domain.ZoneKind
		switch req.Kind {
		case string(domain.ZoneExclusion):
			kind = domain.ZoneExclusion
		case string(domain.ZoneSafe):
			kind = domain.ZoneSafe
		default:
			return errBadRequest(c, "kind must be \"exclusion\" or \"safe\"")
		}

		polys := make([]domain.Polygon, 0, len(req.Polygons))
		for _, in := range req.Polygons {
			polys = append(polys, domain.DecodePolygon(in))
		}
		if err := deps.Sessions.UpdateDraft(c.Context(), c.Params("id"), kind, polys); err != nil {
			return errDomain(c, err)
		}
		return c.SendStatus(204)
	}
}

// DispatchHandler fires a route request from the current start point. The
// response is the pending request; its result arrives over the event stream.
func DispatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := deps.Sessions.Dispatch(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		LoggerFromCtx(c.UserContext()).Info("route request dispatched",
			"session", c.Params("id"), "request", req.ID)
		return c.Status(202).JSON(req)
	}
}

// ResetHandler wipes the session back to its initial state.
func ResetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Reset(c.Context(), c.Params("id")); err != nil {
			return errDomain(c, err)
		}
		sum, err := deps.Sessions.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(sum)
	}
}

// SaveZonesHandler persists the committed zone sets.
func SaveZonesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.SaveZones(c.Context(), c.Params("id")); err != nil {
			return errDomain(c, err)
		}
		return c.JSON(fiber.Map{"status": "saved"})
	}
}

// LoadZonesHandler replaces the session's zones with the persisted sets.
func LoadZonesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.LoadZones(c.Context(), c.Params("id")); err != nil {
			return errDomain(c, err)
		}
		sum, err := deps.Sessions.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(sum)
	}
}

// LayersHandler returns the GeoJSON layer projection the map renders from.
func LayersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ls, err := deps.Sessions.Layers(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(ls)
	}
}

// ListRequestsHandler returns the session's path requests in dispatch order.
func ListRequestsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqs, err := deps.Sessions.Requests(c.Context(), c.Params("id"))
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(fiber.Map{"requests": reqs, "count": len(reqs)})
	}
}

// GeocodeHandler forward-geocodes an address, first candidate wins.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Address string `json:"address"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Address == "" {
			return errBadRequest(c, "address is required")
		}
		p, err := deps.Geocode.Forward(c.Context(), req.Address)
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(fiber.Map{"address": req.Address, "lon": p.Lon, "lat": p.Lat})
	}
}

// NotifyHandler proxies an alert to the SMS relay, optionally appending a
// directions link from the session's latest resolved route. 400 when the
// message is missing, 500 when the relay credentials are unconfigured.
func NotifyHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		SessionID   string `json:"session_id"`
		Message     string `json:"message"`
		IncludeLink bool   `json:"include_link"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Message == "" {
			return errBadRequest(c, "message is required")
		}
		res, err := deps.Notify.SendAlert(c.Context(), req.SessionID, req.Message, req.IncludeLink)
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(res)
	}
}
