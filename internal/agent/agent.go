// Package agent implements the four model-backed pipeline stages:
// safety moderation, response generation, tone validation, and rewrite.
//
// Moderation stages fail open: when the model service is unreachable
// the check reports a pass carrying a diagnostic issue code instead of
// blocking the customer response. This favors availability over
// precision; a prolonged service outage means no moderation actually
// happens. Changing that is a product decision, not an engineering one.
package agent

import (
	"context"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
)

// Caller is the slice of the model client the agents depend on.
type Caller interface {
	Call(ctx context.Context, modelID string, messages []model.Message, maxTokens int, temperature float32) (string, error)
}

// ModerationResult is the outcome of a safety or tone check. Immutable
// once returned.
type ModerationResult struct {
	Passes     bool
	Confidence float64
	Issues     []string
	Latency    time.Duration
}

// Issue codes emitted when a check cannot run and fails open.
const (
	IssueSafetyCheckError    = "safety_check_error"
	IssueToneValidationError = "tone_validation_error"
)

// Identity describes the company the agents speak for. Prompt text is
// templated from it.
type Identity struct {
	Company    string
	Domain     string
	BrandVoice string
}

func (id Identity) withDefaults() Identity {
	if id.Company == "" {
		id.Company = "Your Company"
	}
	if id.Domain == "" {
		id.Domain = "customer service"
	}
	if id.BrandVoice == "" {
		id.BrandVoice = "professional and empathetic"
	}
	return id
}

// track measures an agent operation and records it in the per-agent
// latency tracker when one is configured.
func track(lat *metrics.LatencyTracker, start time.Time) time.Duration {
	d := time.Since(start)
	if lat != nil {
		lat.Add(d)
	}
	return d
}
