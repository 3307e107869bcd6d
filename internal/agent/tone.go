package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
)

// toneIssuePatterns maps markers in the validator response to issue
// codes. Ordered so issue lists come out stable.
var toneIssuePatterns = []struct {
	marker string
	code   string
}{
	{"CASUAL", "casual_language"},
	{"DISMISSIVE", "dismissive_language"},
	{"UNPROFESSIONAL", "unprofessional_tone"},
	{"JARGON", "technical_jargon"},
	{"BLAME", "blame_language"},
	{"ABSOLUTE", "absolute_statements"},
	{"INAPPROPRIATE", "inappropriate_language"},
	{"URGENCY", "inappropriate_urgency"},
	{"EMOTION", "inappropriate_emotions"},
}

// ToneAgent validates the professionalism of a drafted response.
type ToneAgent struct {
	caller    Caller
	modelID   string
	maxTokens int
	prompt    string
	logger    *slog.Logger
	latency   *metrics.LatencyTracker
}

// NewToneAgent creates a tone agent for the given identity.
func NewToneAgent(caller Caller, modelID string, maxTokens int, id Identity, logger *slog.Logger) *ToneAgent {
	return &ToneAgent{
		caller:    caller,
		modelID:   modelID,
		maxTokens: maxTokens,
		prompt:    tonePrompt(id.withDefaults()),
		logger:    logger,
		latency:   metrics.NewLatencyTracker(),
	}
}

// Model returns the configured model identifier.
func (a *ToneAgent) Model() string { return a.modelID }

// Stats returns per-agent latency statistics.
func (a *ToneAgent) Stats() metrics.LatencyStats { return a.latency.Stats() }

// Validate checks tone and professionalism. Same fail-open policy as
// the safety agent, with the tone_validation_error issue code.
func (a *ToneAgent) Validate(ctx context.Context, content string) (ModerationResult, time.Duration) {
	start := time.Now()

	raw, err := a.caller.Call(ctx, a.modelID, []model.Message{
		{Role: "system", Content: a.prompt},
		{Role: "user", Content: "Validate this customer service response:\n\n" + content},
	}, a.maxTokens, 0.1)
	latency := track(a.latency, start)

	if err != nil {
		a.logger.Error("tone validation failed, failing open", slog.String("error", err.Error()))
		return ModerationResult{
			Passes:  true,
			Issues:  []string{IssueToneValidationError},
			Latency: latency,
		}, latency
	}

	passes, issues := parseToneResponse(raw)
	result := ModerationResult{
		Passes:     passes,
		Confidence: 0.90,
		Issues:     issues,
		Latency:    latency,
	}

	if !passes {
		a.logger.Warn("tone issues detected", slog.Any("issues", issues))
	}
	return result, latency
}

// parseToneResponse scans for the FAIL marker and maps known issue
// markers to codes. A failing validation always carries at least one
// issue code.
func parseToneResponse(raw string) (bool, []string) {
	clean := strings.ToUpper(strings.TrimSpace(raw))

	if !strings.Contains(clean, "FAIL") {
		return true, nil
	}

	var issues []string
	for _, p := range toneIssuePatterns {
		if strings.Contains(clean, p.marker) {
			issues = append(issues, p.code)
		}
	}
	if len(issues) == 0 {
		issues = []string{"tone_violation"}
	}
	return false, issues
}
