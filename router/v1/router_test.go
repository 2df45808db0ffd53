package v1_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	sdkmath "cosmossdk.io/math"

	"oracle-node/oracle"
	v1 "oracle-node/router/v1"
)

type fakeScheduler struct {
	status oracle.Status
}

func (f fakeScheduler) Status() oracle.Status { return f.status }

type fakeMetrics struct{}

func (fakeMetrics) Snapshot() map[string]float64 {
	return map[string]float64{"oracle.tick.success": 3}
}

func newTestRouter(status oracle.Status) *mux.Router {
	rtr := mux.NewRouter()
	router := v1.New(zerolog.Nop(), fakeScheduler{status: status}, fakeMetrics{})
	router.RegisterRoutes(rtr, v1.APIPathPrefix)
	return rtr
}

func TestHandleStatus_ReportsLastTick(t *testing.T) {
	rtr := newTestRouter(oracle.Status{
		LastTickAtMs: 1000,
		LastAction:   "aggregate",
		LastRate:     sdkmath.LegacyMustNewDecFromStr("0.45"),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	rtr.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"last_action":"aggregate"`)
	require.Contains(t, rec.Body.String(), `"last_rate":"0.450000000000000000"`)
}

func TestHandleHealthz_ReturnsOK(t *testing.T) {
	rtr := newTestRouter(oracle.Status{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	rtr.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMetrics_ReturnsSnapshot(t *testing.T) {
	rtr := newTestRouter(oracle.Status{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	rtr.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "oracle.tick.success")
}
