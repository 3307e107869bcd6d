package pipeline

import "time"

// Outcome tags the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomeSucceeded means a final response was produced. Tone issues
	// may still be attached when a rewrite was triggered.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailedSafetyInput means the customer input itself was
	// flagged; nothing past the first safety check ran.
	OutcomeFailedSafetyInput Outcome = "failed_safety_input"
	// OutcomeFailedSafetyResponse means the drafted (possibly human
	// edited) response was flagged by the second safety check.
	OutcomeFailedSafetyResponse Outcome = "failed_safety_response"
	// OutcomeFailedInternal means the run hit an unexpected fault; the
	// panic text is embedded in the final response.
	OutcomeFailedInternal Outcome = "failed_internal"
)

// failedResponsePrefix starts every failed run's final response text.
const failedResponsePrefix = "Processing failed: "

// Result is the terminal artifact of one pipeline run. It is never
// mutated after creation.
type Result struct {
	ScenarioID    string        `json:"scenario_id"`
	CustomerInput string        `json:"customer_input"`
	FinalResponse string        `json:"final_response"`
	Outcome       Outcome       `json:"outcome"`
	AITime        time.Duration `json:"-"`
	TotalTime     time.Duration `json:"-"`
	HumanTime     time.Duration `json:"-"`
	SafetyIssues  []string      `json:"safety_issues"`
	ToneIssues    []string      `json:"tone_issues"`
	Success       bool          `json:"success"`
}

func failedResult(scenarioID, customerInput, reason string, outcome Outcome, safetyIssues []string) Result {
	return Result{
		ScenarioID:    scenarioID,
		CustomerInput: customerInput,
		FinalResponse: failedResponsePrefix + reason,
		Outcome:       outcome,
		SafetyIssues:  safetyIssues,
		Success:       false,
	}
}
