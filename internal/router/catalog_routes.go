package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-engine/internal/handler"
)

// RegisterCatalog registers create/get/list endpoints for the reference
// data under /v1.  Reads go through the response cache, except show
// search whose rows carry live availability.
func RegisterCatalog(e *echo.Echo, h *handler.Handler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")

	// ---- Theatres ----
	g.POST("/theatres", h.CreateTheatre)
	g.GET("/theatres", h.ListTheatres, cache)
	g.GET("/theatres/:id", h.GetTheatre, cache)

	// ---- Movies ----
	g.POST("/movies", h.CreateMovie)
	g.GET("/movies", h.ListMovies, cache)
	g.GET("/movies/:id", h.GetMovie, cache)

	// ---- Halls ----
	g.POST("/halls", h.CreateHall)
	g.GET("/halls", h.ListHalls, cache)
	g.GET("/halls/:id", h.GetHall, cache)

	// ---- Seat types and seats ----
	g.POST("/seat-types", h.CreateSeatType)
	g.GET("/seat-types", h.ListSeatTypes, cache)
	g.GET("/seat-types/:id", h.GetSeatType, cache)
	g.POST("/seats", h.CreateSeat)
	g.GET("/seats", h.ListSeats, cache)
	g.GET("/seats/:id", h.GetSeat, cache)

	// ---- Shows ----
	g.POST("/shows", h.CreateShow)
	g.POST("/shows/:id/inventory", h.GenerateInventory)
	g.GET("/shows", h.ListShows, cache)
	g.GET("/shows/search", h.SearchShows)
	g.GET("/shows/:id", h.GetShow, cache)
}
