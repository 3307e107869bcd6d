// Package progress tracks per-scenario pipeline steps for the live
// status poller. One goroutine writes while HTTP handlers read; a
// single mutex guards every access and is never held across I/O.
package progress

import "time"

// Step statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// displayTotalSteps is the nominal step count shown by the UI. Runs
// can emit more logical events (rewrite recheck, timeout notices); the
// value is display metadata, not a cap.
const displayTotalSteps = 6

// Step is one pipeline stage transition with timing.
type Step struct {
	Name      string     `json:"step_name"`
	StartTime time.Time  `json:"-"`
	EndTime   *time.Time `json:"-"`
	Status    string     `json:"status"`
	Detail    string     `json:"details"`
	Model     string     `json:"model_used,omitempty"`
}

// Duration returns the step's elapsed time, live while still running.
func (s *Step) Duration() time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Progress is the complete step log for one scenario. Steps are
// append-only within a run.
type Progress struct {
	ScenarioID    string     `json:"scenario_id"`
	CustomerInput string     `json:"customer_input"`
	Steps         []Step     `json:"steps"`
	CurrentStep   int        `json:"current_step"`
	TotalSteps    int        `json:"total_steps"`
	StartTime     time.Time  `json:"-"`
	EndTime       *time.Time `json:"-"`
}

// TotalDuration returns the run's elapsed time, live while running.
func (p *Progress) TotalDuration() time.Duration {
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// Completed reports whether the run has finished.
func (p *Progress) Completed() bool { return p.EndTime != nil }
