// Package v1 exposes a small read-only status API: the scheduler's last
// tick outcome, current aggregated rate, and alert state, following the
// teacher's router/v1 construction (gorilla/mux routes wrapped in a
// justinas/alice middleware chain, rs/cors applied last).
package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// APIPathPrefix is the base path every route in this package is registered
// under.
const APIPathPrefix = "/api/v1"

// Router serves the node's status endpoints.
type Router struct {
	logger    zerolog.Logger
	scheduler Scheduler
	metrics   MetricsSnapshotter
}

// MetricsSnapshotter exposes a point-in-time view of the counters and
// timers armon/go-metrics has recorded, for the /metrics endpoint.
type MetricsSnapshotter interface {
	Snapshot() map[string]float64
}

// New builds a Router bound to scheduler (and, optionally, a metrics
// snapshotter; nil disables /metrics).
func New(logger zerolog.Logger, scheduler Scheduler, snapshotter MetricsSnapshotter) *Router {
	return &Router{
		logger:    logger.With().Str("component", "router").Logger(),
		scheduler: scheduler,
		metrics:   snapshotter,
	}
}

// RegisterRoutes wires every endpoint onto rtr under prefix.
func (r *Router) RegisterRoutes(rtr *mux.Router, prefix string) {
	chain := alice.New(r.loggingMiddleware, r.recoverMiddleware)

	sub := rtr.PathPrefix(prefix).Subrouter()
	sub.Handle("/status", chain.ThenFunc(r.handleStatus)).Methods(http.MethodGet)
	sub.Handle("/healthz", chain.ThenFunc(r.handleHealthz)).Methods(http.MethodGet)
	if r.metrics != nil {
		sub.Handle("/metrics", chain.ThenFunc(r.handleMetrics)).Methods(http.MethodGet)
	}
}

// CORSHandler wraps rtr with the configured CORS policy, following the
// teacher's server construction: permissive by default, restrictable via
// allowedOrigins.
func CORSHandler(rtr http.Handler, allowedOrigins []string, verbose bool) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		Debug:          verbose,
	}).Handler(rtr)
}

type statusResponse struct {
	LastTickAtMs int64  `json:"last_tick_at_ms"`
	LastAction   string `json:"last_action"`
	LastRate     string `json:"last_rate,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	LastAlertMsg string `json:"last_alert,omitempty"`
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	st := r.scheduler.Status()
	resp := statusResponse{
		LastTickAtMs: st.LastTickAtMs,
		LastAction:   string(st.LastAction),
		LastError:    st.LastError,
		LastAlertMsg: st.LastAlertMsg,
	}
	if !st.LastRate.IsNil() {
		resp.LastRate = st.LastRate.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		r.logger.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("handled status request")
	})
}

func (r *Router) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().Interface("panic", rec).Msg("recovered from panic in status handler")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
