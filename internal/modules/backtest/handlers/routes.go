package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtests", func(r chi.Router) {
		r.Post("/validate", h.HandleValidate) // Coverage check without running
		r.Post("/run", h.HandleRun)           // Validate, simulate, persist
		r.Get("/", h.HandleListRuns)          // Recent runs (no ledgers)
		r.Get("/events", h.HandleEvents)      // Websocket run progress stream

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetRun)                      // Full run with ledger
			r.Get("/transactions", h.HandleGetTransactions) // Ledger only
		})
	})
}
