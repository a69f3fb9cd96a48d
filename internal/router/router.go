// Package router defines how HTTP and WebSocket routes are registered for
// the relay.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/handler"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/middleware"
)

// RegisterRoutes wires the full relay surface onto the provided Echo
// instance: the health endpoint both apps poll, the out-of-band pairing API,
// guardian account endpoints, and the device WebSocket.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, pairing *handler.PairingHandler, guardian *handler.GuardianHandler, ws *handler.WSHandler, jwtSecret string, pairLimiter echo.MiddlewareFunc) {
	// Liveness for load balancers and the launcher's pre-pairing check.
	e.GET("/health", health.Health)
	e.GET("/healthz", health.Health)

	// Device transport. Connection parameters travel in the query string
	// because the original clients dial plain ws:// URLs.
	e.GET("/ws", ws.Connect)

	// Out-of-band pairing surface used by the elder launcher and the
	// guardian app before any socket exists. The limiter bounds per-IP code
	// guessing; codes are 6 digits.
	api := e.Group("/api")
	api.POST("/elder/generate-code", pairing.GenerateCode, pairLimiter)
	api.POST("/pair", pairing.Pair, pairLimiter)
	api.POST("/unpair", pairing.Unpair, pairLimiter)

	// Guardian accounts. Registration and login are open; everything else
	// requires the issued bearer token.
	api.POST("/guardian/register", guardian.Register)
	api.POST("/guardian/login", guardian.Login)

	authed := api.Group("/guardian")
	authed.Use(middleware.JWTAuth(jwtSecret))
	authed.GET("/elders", guardian.Elders)
}
