// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/cinema-ticket-engine/internal/handler"
	"github.com/iliyamo/cinema-ticket-engine/internal/middleware"
)

// Options carries the middleware and secrets the routes need.  Nil
// middleware disables that layer.
type Options struct {
	PaymentSecret string
	RateLimit     echo.MiddlewareFunc // guards POST /v1/bookings
	Cache         echo.MiddlewareFunc // fronts catalog reads
	Ready         map[string]handler.Check
}

// New builds the Echo instance with every route registered.
func New(h *handler.Handler, opts Options, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	RegisterRoutes(e, opts.Ready)
	RegisterCatalog(e, h, orPass(opts.Cache))
	RegisterBookings(e, h, opts.PaymentSecret, orPass(opts.RateLimit))
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready map[string]handler.Check) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}
