package api

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/nlu-hermes/internal/bridges/hermes"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.With(s.requireTrainer).Post("/train", s.handleTrain)
	})

	return r
}

// handleHealth reports liveness. It answers 503 while the broker session
// is down or any registered dependency check fails, so orchestrators can
// tell a stuck bridge from a healthy one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.bridge.Status()
	healthy := status.Connected

	var checks map[string]string
	if len(s.checks) > 0 {
		checks = make(map[string]string, len(s.checks))
		for _, name := range slices.Sorted(maps.Keys(s.checks)) {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name](ctx)
			cancel()
			if err != nil {
				healthy = false
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}
	}

	code := http.StatusOK
	state := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}

	body := map[string]any{
		"status":    state,
		"version":   s.version,
		"connected": status.Connected,
		"has_graph": status.Graph != nil,
	}
	if checks != nil {
		body["checks"] = checks
	}
	writeJSON(w, code, body)
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string `json:"timestamp"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	hermes.Status
}

// handleStatus returns the bridge status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Status:        s.bridge.Status(),
	})
}

// TrainRequest is the body of POST /api/v1/train.
type TrainRequest struct {
	ID        string         `json:"id"`
	SiteID    string         `json:"site_id"`
	Sentences map[string]any `json:"sentences"`
	GraphPath string         `json:"graph_path"`
}

// handleTrain queues a training run. The outcome is published on the bus
// like any other train request.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Sentences) == 0 && req.GraphPath == "" {
		writeBadRequest(w, "sentences or graph_path is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	err := s.bridge.SubmitTrain(hermes.NluTrain{
		ID:        req.ID,
		Sentences: req.Sentences,
		GraphPath: req.GraphPath,
		SiteID:    req.SiteID,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": req.ID, "status": "queued"})
	case errors.Is(err, hermes.ErrInvalidSite), errors.Is(err, hermes.ErrScopeMismatch):
		writeBadRequest(w, err.Error())
	case errors.Is(err, hermes.ErrQueueFull), errors.Is(err, hermes.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		s.logger.Error("failed to queue training", "id", req.ID, "error", err)
		writeInternalError(w, "failed to queue training")
	}
}
