package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/app"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/models"
)

const seedCSV = `measure_category,measure_type,pre_heat_source,floor_area_band,starting_band,cost_savings
Heating Controls,P&RT,Condensing Gas Boiler,0-72,Low_D,0.66
`

func newTestServer(t *testing.T, rateLimit float64, burst int) *Server {
	t.Helper()
	dir := t.TempDir()
	seedDir := filepath.Join(dir, "matrix")
	require.NoError(t, os.MkdirAll(seedDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "gbis_partial.csv"), []byte(seedCSV), 0644))

	cfg := common.NewDefaultConfig()
	cfg.Matrix.Backend = common.MatrixBackendMemory
	cfg.Matrix.SeedDir = seedDir
	cfg.Matrix.ImportOnStartup = true
	cfg.Storage.SQLite.Path = filepath.Join(dir, "calculations.db")
	cfg.Settings.RefreshSchedule = ""
	cfg.Server.RateLimit = rateLimit
	cfg.Server.RateBurst = burst

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return New(application)
}

func TestServerCalculateAndHistory(t *testing.T) {
	srv := newTestServer(t, 0, 0)
	handler := srv.Handler()

	body := `{"scheme":"GBIS","lead_id":"lead-7","starting_sap_band":"D","floor_area_band":"0-72",
		"pre_main_heat_source":"Condensing Gas Boiler","measures":[{"type":"P&RT"}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	assert.Equal(t, "14.19", result.Measures[0].PPSPoints.StringFixed(2))
	id := rec.Header().Get("X-Calculation-Id")
	require.NotEmpty(t, id)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads/lead-7/calculations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calculations/"+id+"/report?format=md", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestServerSystemRoutes(t *testing.T) {
	handler := newTestServer(t, 0, 0).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/matrix/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gbis_partial":1`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/calculate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerRateLimit(t *testing.T) {
	handler := newTestServer(t, 1, 2).Handler()

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// A different client has its own bucket
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientLimitersSweepIdle(t *testing.T) {
	limiters := newClientLimiters(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiters.now = func() time.Time { return now }

	assert.True(t, limiters.allow("a"))
	assert.False(t, limiters.allow("a"))

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.True(t, limiters.allow("b"))
	assert.NotContains(t, limiters.clients, "a")
	assert.Contains(t, limiters.clients, "b")

	assert.Nil(t, newClientLimiters(0, 10))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(t, 0, 0)
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
