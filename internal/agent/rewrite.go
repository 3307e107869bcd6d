package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
)

// issueGuidance turns tone issue codes into concrete rewrite
// instructions appended to the system prompt.
var issueGuidance = map[string]string{
	"casual_language":        "Replace casual expressions with professional language",
	"unprofessional_tone":    "Use more empathetic and professional tone",
	"inappropriate_urgency":  "Replace urgent slang with professional alternatives",
	"inappropriate_language": "Remove colloquial or inappropriate expressions",
	"dismissive_language":    "Make language more helpful and solution-focused",
	"blame_language":         "Remove blame and focus on solutions",
	"technical_jargon":       "Simplify technical terms for customer understanding",
	"absolute_statements":    "Soften absolute statements and provide alternatives",
	"inappropriate_emotions": "Maintain professional emotional tone",
}

// RewriteAgent revises a draft that failed tone validation.
type RewriteAgent struct {
	caller    Caller
	modelID   string
	maxTokens int
	prompt    string
	logger    *slog.Logger
	latency   *metrics.LatencyTracker
}

// NewRewriteAgent creates a rewrite agent for the given identity.
func NewRewriteAgent(caller Caller, modelID string, maxTokens int, id Identity, logger *slog.Logger) *RewriteAgent {
	return &RewriteAgent{
		caller:    caller,
		modelID:   modelID,
		maxTokens: maxTokens,
		prompt:    rewritePrompt(id.withDefaults()),
		logger:    logger,
		latency:   metrics.NewLatencyTracker(),
	}
}

// Model returns the configured model identifier.
func (a *RewriteAgent) Model() string { return a.modelID }

// Stats returns per-agent latency statistics.
func (a *RewriteAgent) Stats() metrics.LatencyStats { return a.latency.Stats() }

// Rewrite produces a revised draft addressing the given issues. It
// never returns an error: on model failure, implausibly short output,
// or output identical to the input, the original text is returned.
func (a *RewriteAgent) Rewrite(ctx context.Context, content string, issues []string) (string, time.Duration) {
	start := time.Now()

	prompt := a.prompt
	if guidance := formatIssueGuidance(issues); guidance != "" {
		prompt += guidance
	}

	raw, err := a.caller.Call(ctx, a.modelID, []model.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: content},
	}, a.maxTokens, 0.2)
	latency := track(a.latency, start)

	if err != nil {
		a.logger.Error("rewrite failed, keeping original", slog.String("error", err.Error()))
		return content, latency
	}

	rewritten := strings.TrimSpace(raw)

	if len(rewritten) < minResponseLength {
		a.logger.Warn("rewrite too short, keeping original", slog.Int("chars", len(rewritten)))
		return content, latency
	}

	if rewritten == strings.TrimSpace(content) {
		a.logger.Info("rewrite identical to original, no rewrite needed")
		return content, latency
	}

	a.logger.Info("content rewritten",
		slog.Int("original_chars", len(content)),
		slog.Int("rewritten_chars", len(rewritten)),
	)
	return rewritten, latency
}

func formatIssueGuidance(issues []string) string {
	var lines []string
	for _, issue := range issues {
		if g, ok := issueGuidance[issue]; ok {
			lines = append(lines, "- "+g)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\nSPECIFIC IMPROVEMENTS NEEDED:\n" + strings.Join(lines, "\n")
}
