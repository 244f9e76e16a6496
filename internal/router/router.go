// Package router registers the HTTP routes of the reservation API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservations/internal/handler"
)

// RegisterRoutes registers the health checks, which stay outside /api so
// rate limiting never blocks probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAPI registers the availability and reservation endpoints under
// /api. mw is applied to the whole group.
func RegisterAPI(e *echo.Echo, a *handler.AvailabilityHandler, r *handler.ReservationHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/api", mw...)

	g.GET("/slots", a.Slots)
	g.GET("/availability", a.Availability)

	g.GET("/reservations", r.List)
	g.POST("/reservations", r.Create)
	g.GET("/reservations/:id", r.Get)
	g.PUT("/reservations/:id", r.Update)
	g.DELETE("/reservations/:id", r.Delete)
	g.PATCH("/reservations/:id/cancel", r.Cancel)
	g.PATCH("/reservations/:id/status", r.SetStatus)
}
