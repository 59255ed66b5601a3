// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crescendo/internal/logging"
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Status   string  `json:"status"`
	Reason   string  `json:"reason,omitempty"`
	Arms     int     `json:"arms"`
	Uptime   float64 `json:"uptime_seconds"`
	Degraded bool    `json:"degraded"`
}

// Health reports 200 when the arm state is trustworthy and 503 while the
// registry is degraded, until the state is recovered or replaced by a write.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Stats()

	health := HealthStatus{
		Status:   "healthy",
		Arms:     st.Arms,
		Uptime:   time.Since(h.startTime).Seconds(),
		Degraded: st.Degraded,
	}
	code := http.StatusOK
	if st.Degraded {
		health.Status = "degraded"
		health.Reason = st.DegradedReason
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, r, code, "success", health)
}

// HealthLive is a liveness probe independent of store health.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, "success", map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Stats reports the engine's arm count, pulls and parameters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, "success", h.engine.Stats())
}

// respondJSON writes an APIResponse with the given status code.
func respondJSON(w http.ResponseWriter, r *http.Request, code int, status string, data interface{}) {
	body, err := json.Marshal(&APIResponse{
		Status:   status,
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}
