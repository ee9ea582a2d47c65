// Package handlers exposes the historical price and dividend store over
// HTTP. Read endpoints serve the series the simulator consumes; write
// endpoints let an ingestion client push fresh data.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles historical data HTTP requests
type Handler struct {
	historyDB *historical.HistoryDB
	log       zerolog.Logger
}

// NewHandler creates a new historical data handler
func NewHandler(historyDB *historical.HistoryDB, log zerolog.Logger) *Handler {
	return &Handler{
		historyDB: historyDB,
		log:       log.With().Str("handler", "historical").Logger(),
	}
}

// HandleListTickers returns every ticker with stored price history
func (h *Handler) HandleListTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.historyDB.Tickers()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tickers")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tickers == nil {
		tickers = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickers": tickers,
		"count":   len(tickers),
	})
}

// HandleGetPrices returns a ticker's adjusted-close series, ascending by date
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	points, err := h.historyDB.GetSeries(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to read price series")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(points) == 0 {
		h.writeError(w, http.StatusNotFound, "no price history for "+ticker)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"prices": points,
		"count":  len(points),
	})
}

// HandleGetDividends returns a ticker's recorded dividend payments.
// An empty list is a valid response; it means simulations fall back to
// the assumed-yield model for this ticker.
func (h *Handler) HandleGetDividends(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	events, err := h.historyDB.GetDividendEvents(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to read dividends")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []historical.DividendEvent{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":    ticker,
		"dividends": events,
		"count":     len(events),
	})
}

// HandleSyncPrices replaces or extends a ticker's price series
func (h *Handler) HandleSyncPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var points []historical.PricePoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(points) == 0 {
		h.writeError(w, http.StatusBadRequest, "price series must not be empty")
		return
	}

	if err := h.historyDB.SyncSeries(ticker, points); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to sync price series")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"synced": len(points),
	})
}

// HandleSyncDividends replaces or extends a ticker's dividend history
func (h *Handler) HandleSyncDividends(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var events []historical.DividendEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(events) == 0 {
		h.writeError(w, http.StatusBadRequest, "dividend list must not be empty")
		return
	}

	if err := h.historyDB.SyncDividendEvents(ticker, events); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to sync dividends")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"synced": len(events),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
