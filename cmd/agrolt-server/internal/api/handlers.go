// Package api provides the HTTP query surface the dashboard's frontend
// uses alongside the push channel: latest record per topic, historical
// records with a limit, and a pipeline connectivity check. The full
// CRUD/auth API lives in a separate service; only pipeline-owned reads
// are served here.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	telemetry "github.com/2saloni/agrolt-dashboard"
)

const defaultHistoryLimit = 50

// Handler holds dependencies for the API handlers.
type Handler struct {
	store    *telemetry.VersionedStore
	pipeline *telemetry.Pipeline
	logger   telemetry.Logger
}

// NewHandler creates a new API handler.
func NewHandler(store *telemetry.VersionedStore, pipeline *telemetry.Pipeline, logger telemetry.Logger) *Handler {
	return &Handler{store: store, pipeline: pipeline, logger: logger}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RegisterRoutes wires the handler's routes onto mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/topics/", h.handleTopic)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/health", h.handleHealth)
}

// handleTopic serves /api/topics/{name}/latest and
// /api/topics/{name}/history?limit=N.
func (h *Handler) handleTopic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/topics/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found", "")
		return
	}
	name, op := parts[0], parts[1]

	switch op {
	case "latest":
		rec, err := h.store.Latest(r.Context(), name)
		if err != nil {
			if telemetry.IsNoData(err) {
				writeError(w, http.StatusNotFound, "no records for topic "+name, telemetry.ErrCodeNoData)
				return
			}
			h.logger.Errorf("Latest query failed for %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "query failed", telemetry.ErrCodeDatabase)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case "history":
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer", telemetry.ErrCodeValidation)
				return
			}
			limit = n
		}
		recs, err := h.store.History(r.Context(), name, limit)
		if err != nil {
			if telemetry.IsNoData(err) {
				writeError(w, http.StatusNotFound, "no records for topic "+name, telemetry.ErrCodeNoData)
				return
			}
			h.logger.Errorf("History query failed for %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "query failed", telemetry.ErrCodeDatabase)
			return
		}
		writeJSON(w, http.StatusOK, recs)

	default:
		writeError(w, http.StatusNotFound, "not found", "")
	}
}

// handleStatus serves the pipeline connectivity snapshot.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Status())
}

// handleHealth is the liveness probe.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
