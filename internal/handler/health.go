package handler // HTTP handlers for the relay's API surface

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/relay"
)

// HealthHandler reports liveness plus a couple of relay gauges. The elder
// launcher polls GET /health before showing the pairing screen.
type HealthHandler struct {
	Reg    *registry.Registry
	Router *relay.Router
}

// Health returns 200 with connection and in-flight request counts.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "ok",
		"connections": h.Reg.Count(),
		"pending":     h.Router.PendingCount(),
	})
}
