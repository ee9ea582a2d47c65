package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/backfolio/internal/database"
	"github.com/aristath/backfolio/internal/events"
	"github.com/aristath/backfolio/internal/modules/backtest"
	"github.com/aristath/backfolio/internal/modules/historical"
	"github.com/aristath/backfolio/internal/modules/results"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) (chi.Router, *historical.MemoryProvider) {
	t.Helper()

	runsDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "runs.db"),
		Profile: database.ProfileLedger,
		Name:    "runs",
	})
	require.NoError(t, err)
	require.NoError(t, runsDB.Migrate())
	t.Cleanup(func() { runsDB.Close() })

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	require.NoError(t, cacheDB.Migrate())
	t.Cleanup(func() { cacheDB.Close() })

	provider := historical.NewMemoryProvider()
	manager := events.NewManager()
	service := backtest.NewService(provider, 0.0, manager, zerolog.Nop())
	repo := results.NewRepository(runsDB.Conn(), zerolog.Nop())
	cache := results.NewCache(cacheDB.Conn(), zerolog.Nop())

	handler := NewHandler(service, repo, cache, manager, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return router, provider
}

func seedSeries(provider *historical.MemoryProvider, ticker string, months int) {
	points := make([]historical.PricePoint, months)
	anchor := time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = historical.PricePoint{
			Date:     anchor.AddDate(0, i, 0),
			AdjClose: decimal.NewFromInt(100),
		}
	}
	provider.SetSeries(ticker, points)
}

func requestBody() string {
	return `{
		"assets": [{"ticker": "VWCE", "target_allocation": "1.0", "average_dividend_yield": "0"}],
		"start_date": "2020-01-01T00:00:00Z",
		"end_date": "2020-12-31T00:00:00Z",
		"initial_capital": "12000",
		"monthly_contribution": "500",
		"rebalance_frequency": "monthly"
	}`
}

func TestHandleValidate_OK(t *testing.T) {
	router, provider := testRouter(t)
	seedSeries(provider, "VWCE", 12)

	req := httptest.NewRequest(http.MethodPost, "/backtests/validate", bytes.NewBufferString(requestBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report backtest.CoverageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.IsValid)
	assert.Len(t, report.AssetsAvailability, 1)
}

func TestHandleValidate_BadConfig(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/backtests/validate", bytes.NewBufferString(`{"assets": []}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error    string   `json:"error"`
		Problems []string `json:"problems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid configuration", body.Error)
	assert.NotEmpty(t, body.Problems)
}

func TestHandleValidate_MalformedJSON(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/backtests/validate", bytes.NewBufferString(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRun_PersistsAndCaches(t *testing.T) {
	router, provider := testRouter(t)
	seedSeries(provider, "VWCE", 12)

	req := httptest.NewRequest(http.MethodPost, "/backtests/run", bytes.NewBufferString(requestBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		ID           string          `json:"id"`
		Result       backtest.Result `json:"result"`
		Transactions int             `json:"transactions"`
		Cached       bool            `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	assert.False(t, body.Cached)
	assert.Greater(t, body.Transactions, 0)

	// The identical request is served from the cache
	req2 := httptest.NewRequest(http.MethodPost, "/backtests/run", bytes.NewBufferString(requestBody()))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)

	require.Equal(t, http.StatusOK, rec2.Code)

	var body2 struct {
		ID     string `json:"id"`
		Cached bool   `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body2))
	assert.True(t, body2.Cached)
	assert.Equal(t, body.ID, body2.ID, "cache hit returns the original run")

	// And the run is retrievable by ID
	req3 := httptest.NewRequest(http.MethodGet, "/backtests/"+body.ID+"/", nil)
	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestHandleRun_InsufficientCoverage(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/backtests/run", bytes.NewBufferString(requestBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error  string                   `json:"error"`
		Report *backtest.CoverageReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "insufficient historical coverage", body.Error)
	require.NotNil(t, body.Report)
	assert.False(t, body.Report.IsValid)
}

func TestHandleListRuns(t *testing.T) {
	router, provider := testRouter(t)
	seedSeries(provider, "VWCE", 12)

	// Empty listing first
	req := httptest.NewRequest(http.MethodGet, "/backtests/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var empty struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Equal(t, 0, empty.Count)

	// Create a run, then list again
	runReq := httptest.NewRequest(http.MethodPost, "/backtests/run", bytes.NewBufferString(requestBody()))
	runRec := httptest.NewRecorder()
	router.ServeHTTP(runRec, runReq)
	require.Equal(t, http.StatusOK, runRec.Code)

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/backtests/", nil))
	require.Equal(t, http.StatusOK, rec2.Code)

	var listing struct {
		Count int            `json:"count"`
		Runs  []backtest.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)
	require.Len(t, listing.Runs, 1)
	assert.Nil(t, listing.Runs[0].Ledger, "listing omits ledgers")
}

func TestHandleListRuns_BadLimit(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backtests/?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/backtests/?limit=-5", nil))
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backtests/nope/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetTransactions(t *testing.T) {
	router, provider := testRouter(t)
	seedSeries(provider, "VWCE", 12)

	runReq := httptest.NewRequest(http.MethodPost, "/backtests/run", bytes.NewBufferString(requestBody()))
	runRec := httptest.NewRecorder()
	router.ServeHTTP(runRec, runReq)
	require.Equal(t, http.StatusOK, runRec.Code)

	var created struct {
		ID           string `json:"id"`
		Transactions int    `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(runRec.Body.Bytes(), &created))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/backtests/%s/transactions", created.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID        string                 `json:"run_id"`
		Transactions []backtest.Transaction `json:"transactions"`
		Count        int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, created.ID, body.RunID)
	assert.Equal(t, created.Transactions, body.Count)
	assert.Len(t, body.Transactions, body.Count)
}

func TestHandleGetTransactions_NotFound(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backtests/missing/transactions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
