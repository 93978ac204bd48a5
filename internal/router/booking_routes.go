package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-engine/internal/handler"
	"github.com/iliyamo/cinema-ticket-engine/internal/middleware"
	"github.com/iliyamo/cinema-ticket-engine/internal/utils"
)

// RegisterBookings registers inventory and booking endpoints.  Ticket
// listings are never cached since availability changes with every
// claim.  The payment callback requires a JWT with the PAYMENT role.
func RegisterBookings(e *echo.Echo, h *handler.Handler, paymentSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/shows/:id/tickets", h.ListShowTickets)
	g.POST("/bookings", h.CreateBooking, rateLimit)
	g.GET("/bookings/:id", h.GetBooking)
	g.POST("/bookings/:id/payment", h.PayBooking,
		middleware.JWTAuth(paymentSecret),
		middleware.RequireRole(utils.RolePayment),
	)
}
