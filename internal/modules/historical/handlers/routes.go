package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all historical data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.HandleListTickers) // Tickers with stored history

		r.Route("/{ticker}", func(r chi.Router) {
			r.Get("/prices", h.HandleGetPrices)        // Full adjusted-close series
			r.Get("/dividends", h.HandleGetDividends)  // Recorded dividend payments
			r.Put("/prices", h.HandleSyncPrices)       // Ingest price series
			r.Put("/dividends", h.HandleSyncDividends) // Ingest dividend history
		})
	})
}
