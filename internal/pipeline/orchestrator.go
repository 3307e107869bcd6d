// Package pipeline sequences the customer-service stages: safety check
// on the input, response generation, optional human review, safety
// check on the response, tone validation, and a conditional rewrite
// with one recheck. The orchestrator is single-threaded per scenario;
// all concurrency lives in the caller that spawns Run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/agent"
	"github.com/careloop/careloop/internal/review"
)

// Step names reported through the sink.
const (
	stepSafetyCheck    = "safety_check"
	stepResponseGen    = "response_generation"
	stepHumanReview    = "human_review"
	stepFinalSafety    = "final_safety"
	stepToneValidation = "tone_validation"
	stepContentRewrite = "content_rewrite"
)

// SafetyChecker moderates text against the violation taxonomy.
type SafetyChecker interface {
	Check(ctx context.Context, content string) (agent.ModerationResult, time.Duration)
	Model() string
}

// ResponseGenerator drafts the candidate reply.
type ResponseGenerator interface {
	Generate(ctx context.Context, customerInput string) (string, time.Duration)
	Model() string
}

// ToneValidator classifies professionalism.
type ToneValidator interface {
	Validate(ctx context.Context, content string) (agent.ModerationResult, time.Duration)
	Model() string
}

// Rewriter revises a draft that failed tone validation.
type Rewriter interface {
	Rewrite(ctx context.Context, content string, issues []string) (string, time.Duration)
	Model() string
}

// Reviewer is the human-review rendezvous.
type Reviewer interface {
	Submit(customerInput, draft string) string
	Await(ctx context.Context, requestID string, timeout time.Duration) review.Outcome
}

// TokenCounter estimates token counts for step details.
type TokenCounter interface {
	Count(text string) int
}

// RunRecorder receives terminal run measurements.
type RunRecorder interface {
	ObservePipelineRun(outcome string, d time.Duration)
}

// Options configures an orchestrator.
type Options struct {
	// ReviewTimeout bounds the human-review wait. Zero disables the
	// review stage entirely.
	ReviewTimeout time.Duration
	Tokens        TokenCounter
	Recorder      RunRecorder
	Logger        *slog.Logger
}

// Orchestrator drives one scenario through the stage sequence.
type Orchestrator struct {
	safety        SafetyChecker
	responder     ResponseGenerator
	tone          ToneValidator
	rewriter      Rewriter
	reviews       Reviewer
	reviewTimeout time.Duration
	tokens        TokenCounter
	recorder      RunRecorder
	logger        *slog.Logger
}

// New creates an orchestrator over the four stage agents and the
// review exchange.
func New(safety SafetyChecker, responder ResponseGenerator, tone ToneValidator, rewriter Rewriter, reviews Reviewer, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		safety:        safety,
		responder:     responder,
		tone:          tone,
		rewriter:      rewriter,
		reviews:       reviews,
		reviewTimeout: opts.ReviewTimeout,
		tokens:        opts.Tokens,
		recorder:      opts.Recorder,
		logger:        logger,
	}
}

// Run processes one customer message end to end and always returns a
// well-formed Result. An unexpected panic in a stage is recovered and
// converted into a failed result carrying the fault text, so callers
// never see an unhandled fault.
func (o *Orchestrator) Run(ctx context.Context, scenarioID, customerInput string, sink Sink) (result Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline run panicked",
				slog.String("scenario_id", scenarioID),
				slog.Any("panic", r),
			)
			sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Pipeline FAILED: %v", r), "failed")
			result = failedResult(scenarioID, customerInput, fmt.Sprintf("%v", r), OutcomeFailedInternal, nil)
			result.TotalTime = time.Since(start)
		}
		sink.CompleteScenario(scenarioID)
		if o.recorder != nil {
			o.recorder.ObservePipelineRun(string(result.Outcome), result.TotalTime)
		}
	}()

	o.logger.Info("pipeline run started",
		slog.String("scenario_id", scenarioID),
		slog.String("input", truncate(customerInput, 50)),
	)

	// Stage 1: safety check on the raw customer input. A failure here
	// terminates the run before any generation cost is incurred.
	sink.AddStep(scenarioID, stepSafetyCheck, "Checking customer input for safety violations", o.safety.Model())
	inputSafety, guard1Time := o.safety.Check(ctx, customerInput)
	if !inputSafety.Passes {
		sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Safety check FAILED: %s", strings.Join(inputSafety.Issues, ", ")), "failed")
		result = failedResult(scenarioID, customerInput, "Initial safety check failed", OutcomeFailedSafetyInput, inputSafety.Issues)
		result.AITime = guard1Time
		result.TotalTime = time.Since(start)
		return result
	}
	sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Safety check PASSED in %s", fmtMS(guard1Time)), "completed")

	// Stage 2: draft the response. The agent never fails; a model
	// outage yields the canned fallback.
	sink.AddStep(scenarioID, stepResponseGen, "Generating professional customer service response", o.responder.Model())
	draft, responseTime := o.responder.Generate(ctx, customerInput)
	sink.CompleteCurrentStep(scenarioID, o.describeDraft(draft, responseTime), "completed")

	// Stage 3: human review rendezvous, when enabled.
	finalResponse := draft
	var humanTime time.Duration
	if o.reviewTimeout > 0 && o.reviews != nil {
		sink.AddStep(scenarioID, stepHumanReview, "Waiting for human review and approval", "")
		requestID := o.reviews.Submit(customerInput, draft)
		outcome := o.reviews.Await(ctx, requestID, o.reviewTimeout)
		humanTime = outcome.HumanTime
		if outcome.TimedOut {
			sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Human review TIMED OUT after %s - using original response", o.reviewTimeout), "completed")
		} else {
			finalResponse = outcome.Edited
			detail := "No changes"
			if finalResponse != draft {
				detail = "Changes made"
			}
			sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Human review completed in %s - %s", fmtMS(humanTime), detail), "completed")
		}
	} else {
		sink.AddStep(scenarioID, stepHumanReview, "Human review disabled - skipping", "")
		sink.CompleteCurrentStep(scenarioID, "Human review skipped (disabled in config)", "completed")
	}

	// Stage 4: safety check on whatever exits review. Human edits get
	// the same scrutiny as model output.
	sink.AddStep(scenarioID, stepFinalSafety, "Final safety check on approved response", o.safety.Model())
	finalSafety, guard2Time := o.safety.Check(ctx, finalResponse)
	if !finalSafety.Passes {
		sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Final safety check FAILED: %s", strings.Join(finalSafety.Issues, ", ")), "failed")
		result = failedResult(scenarioID, customerInput, "Final safety check failed", OutcomeFailedSafetyResponse, finalSafety.Issues)
		result.AITime = guard1Time + responseTime + guard2Time
		result.HumanTime = humanTime
		result.TotalTime = time.Since(start)
		return result
	}
	sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Final safety check PASSED in %s", fmtMS(guard2Time)), "completed")

	// Stage 5: tone validation.
	sink.AddStep(scenarioID, stepToneValidation, "Validating professional tone and language", o.tone.Model())
	toneResult, toneTime := o.tone.Validate(ctx, finalResponse)

	// Stage 6: conditional rewrite plus one recheck. The issues that
	// triggered the rewrite are what get reported, even when the
	// rewrite fixes them; audit needs the trigger, not the end state.
	var rewriteTime time.Duration
	var triggeringIssues []string
	if !toneResult.Passes {
		triggeringIssues = append([]string(nil), toneResult.Issues...)
		sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Tone validation FAILED: %s", strings.Join(toneResult.Issues, ", ")), "completed")
		sink.AddStep(scenarioID, stepContentRewrite, "Rewriting content to improve professional tone", o.rewriter.Model())

		finalResponse, rewriteTime = o.rewriter.Rewrite(ctx, finalResponse, toneResult.Issues)

		recheck, recheckTime := o.tone.Validate(ctx, finalResponse)
		rewriteTime += recheckTime

		if !recheck.Passes {
			// Best effort: the rewritten text is still delivered.
			o.logger.Warn("tone issues persist after rewrite", slog.Any("issues", recheck.Issues))
			sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Content rewritten in %s - some tone issues persist", fmtMS(rewriteTime)), "completed")
		} else {
			sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Content successfully rewritten in %s", fmtMS(rewriteTime)), "completed")
		}
	} else {
		sink.CompleteCurrentStep(scenarioID, fmt.Sprintf("Tone validation PASSED in %s", fmtMS(toneTime)), "completed")
	}

	result = Result{
		ScenarioID:    scenarioID,
		CustomerInput: customerInput,
		FinalResponse: finalResponse,
		Outcome:       OutcomeSucceeded,
		AITime:        guard1Time + responseTime + guard2Time + toneTime + rewriteTime,
		TotalTime:     time.Since(start),
		HumanTime:     humanTime,
		ToneIssues:    triggeringIssues,
		Success:       true,
	}

	o.logger.Info("pipeline run completed",
		slog.String("scenario_id", scenarioID),
		slog.Duration("total", result.TotalTime),
		slog.Duration("ai_time", result.AITime),
	)
	return result
}

func (o *Orchestrator) describeDraft(draft string, d time.Duration) string {
	if o.tokens != nil {
		return fmt.Sprintf("Response generated (%d chars, ~%d tokens) in %s", len(draft), o.tokens.Count(draft), fmtMS(d))
	}
	return fmt.Sprintf("Response generated (%d chars) in %s", len(draft), fmtMS(d))
}

func fmtMS(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
