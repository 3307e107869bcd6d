package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
)

// safetyCategories maps LlamaGuard category codes to issue names.
// Ordered so issue lists come out stable.
var safetyCategories = []struct {
	code string
	name string
}{
	{"O1", "violence_hate"},
	{"O2", "sexual_content"},
	{"O3", "weapons"},
	{"O4", "substances"},
	{"O5", "self_harm"},
	{"O6", "criminal_planning"},
}

// SafetyAgent classifies text against the LlamaGuard violation taxonomy.
type SafetyAgent struct {
	caller    Caller
	modelID   string
	maxTokens int
	logger    *slog.Logger
	latency   *metrics.LatencyTracker
}

// NewSafetyAgent creates a safety agent.
func NewSafetyAgent(caller Caller, modelID string, maxTokens int, logger *slog.Logger) *SafetyAgent {
	return &SafetyAgent{
		caller:    caller,
		modelID:   modelID,
		maxTokens: maxTokens,
		logger:    logger,
		latency:   metrics.NewLatencyTracker(),
	}
}

// Model returns the configured model identifier.
func (a *SafetyAgent) Model() string { return a.modelID }

// Stats returns per-agent latency statistics.
func (a *SafetyAgent) Stats() metrics.LatencyStats { return a.latency.Stats() }

// Check classifies content for safety violations. On model failure it
// fails open: passes=true with the safety_check_error issue code, so a
// transient infrastructure fault never silently blocks a response.
func (a *SafetyAgent) Check(ctx context.Context, content string) (ModerationResult, time.Duration) {
	start := time.Now()

	raw, err := a.caller.Call(ctx, a.modelID, []model.Message{
		{Role: "system", Content: safetyTaxonomy},
		{Role: "user", Content: "Classify this content:\n\n" + content},
	}, a.maxTokens, 0.1)
	latency := track(a.latency, start)

	if err != nil {
		a.logger.Error("safety check failed, failing open", slog.String("error", err.Error()))
		return ModerationResult{
			Passes:  true,
			Issues:  []string{IssueSafetyCheckError},
			Latency: latency,
		}, latency
	}

	passes, issues := parseSafetyResponse(raw)
	result := ModerationResult{
		Passes:     passes,
		Confidence: 0.95,
		Issues:     issues,
		Latency:    latency,
	}

	if !passes {
		a.logger.Warn("safety violations detected", slog.Any("issues", issues))
	}
	return result, latency
}

// parseSafetyResponse scans a classifier response for the UNSAFE marker
// and extracts category codes. A failing classification always carries
// at least one issue code.
func parseSafetyResponse(raw string) (bool, []string) {
	clean := strings.ToUpper(strings.TrimSpace(raw))

	if strings.Contains(clean, "UNSAFE") {
		var issues []string
		for _, cat := range safetyCategories {
			if strings.Contains(clean, cat.code) {
				issues = append(issues, cat.name)
			}
		}
		if len(issues) == 0 {
			issues = []string{"content_violation"}
		}
		return false, issues
	}

	// Some models hedge instead of using the UNSAFE marker.
	for _, kw := range []string{"HARMFUL", "VIOLATION", "INAPPROPRIATE", "DANGEROUS"} {
		if strings.Contains(clean, kw) {
			return false, []string{"potential_violation"}
		}
	}

	return true, nil
}
