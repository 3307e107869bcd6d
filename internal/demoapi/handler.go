// Package demoapi exposes the interactive demo control surface over
// HTTP. Handlers only read and write shared state; model calls always
// run on the background scenario goroutine, so polling endpoints stay
// fast no matter how slow the model service is.
package demoapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/progress"
	"github.com/careloop/careloop/internal/review"
	"github.com/careloop/careloop/internal/session"
)

// HealthProber is the shallow model-service probe used by /api/health.
type HealthProber func(ctx context.Context) bool

// AgentStats returns per-agent latency summaries for the stats endpoint.
type AgentStats func() map[string]metrics.LatencyStats

// Handler serves the demo control API.
type Handler struct {
	sessions   *session.Controller
	tracker    *progress.Tracker
	reviews    *review.Exchange
	probe      HealthProber
	agentStats AgentStats
	logger     *slog.Logger
}

// NewHandler creates the demo API handler.
func NewHandler(sessions *session.Controller, tracker *progress.Tracker, reviews *review.Exchange, probe HealthProber, agentStats AgentStats, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:   sessions,
		tracker:    tracker,
		reviews:    reviews,
		probe:      probe,
		agentStats: agentStats,
		logger:     logger,
	}
}

// Routes registers all demo API endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/start_interactive_demo", h.handleStartDemo)
	r.Get("/api/get_current_scenario", h.handleCurrentScenario)
	r.Post("/api/process_current_scenario", h.handleProcessCurrent)
	r.Post("/api/process_custom_input", h.handleProcessCustom)
	r.Get("/api/get_pipeline_progress", h.handleProgress)
	r.Post("/api/next_scenario", h.handleNextScenario)
	r.Get("/api/get_demo_status", h.handleDemoStatus)
	r.Post("/api/reset_demo", h.handleResetDemo)
	r.Get("/api/get_review", h.handleGetReview)
	r.Post("/api/submit_review", h.handleSubmitReview)
	r.Get("/api/get_stats", h.handleStats)
	r.Get("/api/health", h.handleHealth)
}

func (h *Handler) handleStartDemo(w http.ResponseWriter, r *http.Request) {
	sc := h.sessions.Start()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"total_scenarios":  sc.Total,
		"current_scenario": sc.Number,
	})
}

func (h *Handler) handleCurrentScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.sessions.CurrentScenario()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_scenario"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"scenario":        sc.Text,
		"scenario_number": sc.Number,
		"total_scenarios": sc.Total,
		"can_process":     true,
	})
}

func (h *Handler) handleProcessCurrent(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := h.sessions.ProcessCurrent(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "processing",
		"scenario_id": scenarioID,
	})
}

func (h *Handler) handleProcessCustom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid request body"})
		return
	}
	if body.Input == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "No input provided"})
		return
	}

	scenarioID, err := h.sessions.ProcessCustom(r.Context(), body.Input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "processing",
		"scenario_id": scenarioID,
	})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.URL.Query().Get("scenario_id")
	if scenarioID == "" {
		scenarioID = h.sessions.Status().CurrentScenarioID
	}
	if scenarioID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_progress"})
		return
	}

	snap, ok := h.tracker.Snapshot(scenarioID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_progress"})
		return
	}

	steps := make([]map[string]any, len(snap.Steps))
	for i := range snap.Steps {
		step := &snap.Steps[i]
		steps[i] = map[string]any{
			"step_name":   step.Name,
			"status":      step.Status,
			"details":     step.Detail,
			"duration_ms": float64(step.Duration()) / float64(time.Millisecond),
			"model_used":  step.Model,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "success",
		"scenario_id":       snap.ScenarioID,
		"customer_input":    snap.CustomerInput,
		"current_step":      snap.CurrentStep,
		"total_steps":       snap.TotalSteps,
		"steps":             steps,
		"total_duration_ms": float64(snap.TotalDuration()) / float64(time.Millisecond),
		"completed":         snap.Completed(),
	})
}

func (h *Handler) handleNextScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.sessions.Advance()
	if err != nil {
		writeError(w, err)
		return
	}
	if h.sessions.Completed() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "completed",
			"message": "All scenarios completed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"scenario_number": sc.Number,
		"total_scenarios": sc.Total,
	})
}

func (h *Handler) handleDemoStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

func (h *Handler) handleResetDemo(w http.ResponseWriter, r *http.Request) {
	h.sessions.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (h *Handler) handleGetReview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.reviews.Claim()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "no_reviews"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"review_id":      req.ID,
		"customer_input": req.CustomerInput,
		"ai_response":    req.Draft,
	})
}

func (h *Handler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReviewID       string `json:"review_id"`
		EditedResponse string `json:"edited_response"`
		Notes          string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid request body"})
		return
	}

	if err := h.reviews.Resolve(body.ReviewID, body.EditedResponse, body.Notes); err != nil {
		if errors.Is(err, review.ErrUnknownRequest) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Invalid review ID"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "success",
		"session": h.sessions.Stats(),
	}
	if h.agentStats != nil {
		resp["agents"] = h.agentStats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	modelService := "skipped"
	if h.probe != nil {
		if h.probe(r.Context()) {
			modelService = "ok"
		} else {
			modelService = "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                  "healthy",
		"demo_state":              h.sessions.Status().State,
		"active_reviews":          h.reviews.ActiveCount(),
		"pending_reviews":         h.reviews.PendingCount(),
		"pipeline_progress_count": h.tracker.Count(),
		"model_service":           modelService,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoScenario):
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "No scenario available"})
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]any{"status": "error", "message": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
