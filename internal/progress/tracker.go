package progress

import (
	"sync"
	"time"
)

// Tracker is a thread-safe scenarioID -> Progress store. Every
// mutation is a no-op on an unknown ID, so a late write from an
// in-flight run that outlived a reset cannot corrupt new state.
type Tracker struct {
	mu        sync.Mutex
	scenarios map[string]*Progress
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{scenarios: make(map[string]*Progress)}
}

// StartScenario registers a new scenario run.
func (t *Tracker) StartScenario(scenarioID, customerInput string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scenarios[scenarioID] = &Progress{
		ScenarioID:    scenarioID,
		CustomerInput: customerInput,
		TotalSteps:    displayTotalSteps,
		StartTime:     time.Now(),
	}
}

// AddStep appends a running step to the scenario's log.
func (t *Tracker) AddStep(scenarioID, name, detail, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.scenarios[scenarioID]
	if !ok {
		return
	}
	p.Steps = append(p.Steps, Step{
		Name:      name,
		StartTime: time.Now(),
		Status:    StatusRunning,
		Detail:    detail,
		Model:     model,
	})
	p.CurrentStep = len(p.Steps)
}

// CompleteCurrentStep finishes the most recent step with the given
// status and detail.
func (t *Tracker) CompleteCurrentStep(scenarioID, detail, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.scenarios[scenarioID]
	if !ok || len(p.Steps) == 0 {
		return
	}
	step := &p.Steps[len(p.Steps)-1]
	now := time.Now()
	step.EndTime = &now
	step.Status = status
	if detail != "" {
		step.Detail = detail
	}
}

// CompleteScenario marks the run finished.
func (t *Tracker) CompleteScenario(scenarioID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.scenarios[scenarioID]
	if !ok {
		return
	}
	now := time.Now()
	p.EndTime = &now
}

// Snapshot returns a deep copy of a scenario's progress, so readers
// never observe concurrent mutation.
func (t *Tracker) Snapshot(scenarioID string) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.scenarios[scenarioID]
	if !ok {
		return Progress{}, false
	}

	snap := *p
	snap.Steps = make([]Step, len(p.Steps))
	copy(snap.Steps, p.Steps)
	if p.EndTime != nil {
		end := *p.EndTime
		snap.EndTime = &end
	}
	return snap, true
}

// Reset clears every tracked scenario atomically with respect to
// readers: no reader can observe a partially cleared map.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scenarios = make(map[string]*Progress)
}

// Count reports the number of tracked scenarios.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.scenarios)
}
