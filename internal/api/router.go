// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

// Package api serves Crescendo's operations endpoints over a Chi router:
// health, engine stats and Prometheus metrics.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/crescendo/internal/bandit"
	"github.com/tomtom215/crescendo/internal/logging"
	"github.com/tomtom215/crescendo/internal/metrics"
)

// StatsSource reports engine state. Satisfied by *bandit.Engine.
type StatsSource interface {
	Stats() bandit.Stats
}

// Handler serves the operations endpoints.
type Handler struct {
	engine    StatsSource
	startTime time.Time
}

// NewHandler creates a handler reporting on engine.
func NewHandler(engine StatsSource) *Handler {
	return &Handler{engine: engine, startTime: time.Now()}
}

// NewRouter builds the operations router.
//
//	GET /healthz        200 healthy, 503 degraded
//	GET /healthz/live   200 while the process runs
//	GET /stats          engine statistics
//	GET /metrics        Prometheus exposition
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(APISecurityHeaders())
	r.Use(PrometheusMetrics())

	r.Get("/healthz", h.Health)
	r.Get("/healthz/live", h.HealthLive)
	r.Get("/stats", h.Stats)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// RequestIDWithLogging assigns each request an X-Request-ID (chi's, or the
// caller's), carries it into the logging context as the correlation ID, and
// stores a request logger that handlers reach through logging.Ctx.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	base := logging.WithComponent("ops_api")
	return func(next http.Handler) http.Handler {
		withID := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimiddleware.GetReqID(r.Context())
			if id == "" {
				id = logging.GenerateCorrelationID()
			}
			w.Header().Set(chimiddleware.RequestIDHeader, id)

			reqLogger := base.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			ctx := logging.ContextWithCorrelationID(r.Context(), id)
			ctx = logging.ContextWithLogger(ctx, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return chimiddleware.RequestID(withID)
	}
}

// APISecurityHeaders sets headers appropriate for JSON responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// PrometheusMetrics records request count and latency by route pattern and
// logs each request at debug level.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(status), elapsed)
			logging.Ctx(r.Context()).Debug().
				Int("status", status).
				Dur("duration", elapsed).
				Msg("Request served")
		})
	}
}
