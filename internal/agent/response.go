package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
)

// minResponseLength guards against truncated or degenerate completions.
const minResponseLength = 20

// ResponseAgent generates the candidate customer-service reply.
type ResponseAgent struct {
	caller    Caller
	modelID   string
	maxTokens int
	identity  Identity
	prompt    string
	fallback  string
	logger    *slog.Logger
	latency   *metrics.LatencyTracker
}

// NewResponseAgent creates a response agent for the given identity.
func NewResponseAgent(caller Caller, modelID string, maxTokens int, id Identity, logger *slog.Logger) *ResponseAgent {
	id = id.withDefaults()
	return &ResponseAgent{
		caller:    caller,
		modelID:   modelID,
		maxTokens: maxTokens,
		identity:  id,
		prompt:    responsePrompt(id),
		fallback:  fallbackResponse(id),
		logger:    logger,
		latency:   metrics.NewLatencyTracker(),
	}
}

// Model returns the configured model identifier.
func (a *ResponseAgent) Model() string { return a.modelID }

// Stats returns per-agent latency statistics.
func (a *ResponseAgent) Stats() metrics.LatencyStats { return a.latency.Stats() }

// Generate produces a reply for the customer message. It never returns
// an error: when the model is unreachable a canned fallback keeps the
// pipeline supplied with a draft.
func (a *ResponseAgent) Generate(ctx context.Context, customerInput string) (string, time.Duration) {
	start := time.Now()

	raw, err := a.caller.Call(ctx, a.modelID, []model.Message{
		{Role: "system", Content: a.prompt},
		{Role: "user", Content: "Customer message: " + customerInput},
	}, a.maxTokens, 0.1)
	latency := track(a.latency, start)

	if err != nil {
		a.logger.Error("response generation failed, using fallback", slog.String("error", err.Error()))
		return a.fallback, latency
	}

	cleaned := a.clean(raw)
	a.logger.Info("response generated",
		slog.Int("chars", len(cleaned)),
		slog.Duration("latency", latency),
	)
	return cleaned, latency
}

// clean strips system artifacts the model sometimes prepends and
// rejects implausibly short output.
func (a *ResponseAgent) clean(raw string) string {
	cleaned := strings.TrimSpace(raw)

	for _, prefix := range []string{"Response:", "Customer service response:"} {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
		}
	}

	if len(cleaned) < minResponseLength {
		a.logger.Warn("generated response too short, using fallback", slog.String("response", cleaned))
		return a.fallback
	}

	return cleaned
}
