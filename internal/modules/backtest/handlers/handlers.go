// Package handlers provides HTTP handlers for running and inspecting
// backtests.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/backfolio/internal/events"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/results"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles backtest HTTP requests
type Handler struct {
	service      *backtest.Service
	repo         *results.Repository
	cache        *results.Cache
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(
	service *backtest.Service,
	repo *results.Repository,
	cache *results.Cache,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:      service,
		repo:         repo,
		cache:        cache,
		eventManager: eventManager,
		log:          log.With().Str("handler", "backtest").Logger(),
	}
}

// HandleValidate checks a configuration against the available historical
// data and returns the coverage report. It never starts a simulation.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var cfg backtest.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := h.service.Validate(cfg)
	if err != nil {
		var cfgErr *backtest.ConfigError
		if errors.As(err, &cfgErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":    "invalid configuration",
				"problems": cfgErr.Problems,
			})
			return
		}
		h.log.Error().Err(err).Msg("Validation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleRun validates, simulates and persists a backtest in one call,
// accepting the auto-adjusted window. Identical configurations are served
// from the result cache without re-running the simulation.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var cfg backtest.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cacheKey, err := h.cache.Key(cfg)
	if err == nil {
		if cached, cacheErr := h.cache.Get(cacheKey); cacheErr == nil && cached != nil {
			h.log.Debug().Str("run_id", cached.ID).Msg("Serving run from cache")
			h.writeRun(w, cached, true)
			return
		}
	}

	run, report, err := h.service.RunAutoAdjusted(cfg, nil)
	if err != nil {
		var cfgErr *backtest.ConfigError
		if errors.As(err, &cfgErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":    "invalid configuration",
				"problems": cfgErr.Problems,
			})
			return
		}
		h.log.Error().Err(err).Msg("Backtest run failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		// Config was fine but the data cannot support the request.
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "insufficient historical coverage",
			"report": report,
		})
		return
	}

	if err := h.repo.SaveRun(run); err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to persist run")
		h.writeError(w, http.StatusInternalServerError, "failed to persist run: "+err.Error())
		return
	}
	if cacheKey != "" {
		if err := h.cache.Put(cacheKey, run); err != nil {
			// Cache failures never fail the request.
			h.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to cache run")
		}
	}

	h.writeRun(w, run, false)
}

// HandleListRuns returns recent runs, newest first, without their ledgers
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun returns one run by ID, including its full ledger
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// HandleGetTransactions returns a run's ledger entries in simulation order
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":       run.ID,
		"transactions": run.Ledger.Entries,
		"count":        run.Ledger.Len(),
	})
}

// writeRun writes the standard run response. The full ledger is omitted;
// clients fetch it via the transactions endpoint.
func (h *Handler) writeRun(w http.ResponseWriter, run *backtest.Run, cached bool) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           run.ID,
		"created_at":   run.CreatedAt,
		"config":       run.Config,
		"report":       run.Report,
		"result":       run.Result,
		"transactions": run.Ledger.Len(),
		"cached":       cached,
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
