// Package session manages the one-scenario-at-a-time interactive demo
// state machine on top of the pipeline orchestrator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/pipeline"
	"github.com/careloop/careloop/internal/progress"
)

// State is the demo lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateError     State = "error"
)

var (
	// ErrNoScenario is returned when no scenario is available in the
	// current state.
	ErrNoScenario = errors.New("no scenario available")
	// ErrBusy is returned when a scenario run is already in flight.
	ErrBusy = errors.New("a scenario is already being processed")
)

// Runner abstracts the orchestrator for the controller.
type Runner interface {
	Run(ctx context.Context, scenarioID, customerInput string, sink pipeline.Sink) pipeline.Result
}

// Resetter is anything whose state must be cleared on demo reset; the
// review exchange implements it.
type Resetter interface {
	Reset()
}

// Scenario describes the scenario the demo is positioned at.
type Scenario struct {
	Text   string `json:"scenario"`
	Number int    `json:"scenario_number"`
	Total  int    `json:"total_scenarios"`
}

// Status is a point-in-time snapshot of the demo.
type Status struct {
	State             State            `json:"state"`
	CurrentScenario   int              `json:"current_scenario"`
	TotalScenarios    int              `json:"total_scenarios"`
	ResultsCount      int              `json:"results_count"`
	CurrentScenarioID string           `json:"current_scenario_id,omitempty"`
	CurrentResult     *pipeline.Result `json:"results,omitempty"`
}

// Stats aggregates completed runs.
type Stats struct {
	TotalProcessed int                  `json:"total_processed"`
	Successful     int                  `json:"successful"`
	SuccessRate    float64              `json:"success_rate"`
	Pipeline       metrics.LatencyStats `json:"pipeline"`
}

// Controller drives the fixed scenario list. All fields are guarded by
// one mutex; pipeline runs happen on their own goroutine so callers
// return immediately.
type Controller struct {
	runner    Runner
	tracker   *progress.Tracker
	reviews   Resetter
	scenarios []string
	logger    *slog.Logger
	runTimes  *metrics.LatencyTracker

	mu            sync.Mutex
	state         State
	index         int
	results       []pipeline.Result
	currentResult *pipeline.Result
	currentID     string
	inFlight      bool
	// generation increments on every reset/start so a run that
	// outlives a reset cannot write into the next session's history.
	generation uint64
}

// NewController creates an idle controller over the given scenarios.
func NewController(runner Runner, tracker *progress.Tracker, reviews Resetter, scenarios []string, logger *slog.Logger) *Controller {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		runner:    runner,
		tracker:   tracker,
		reviews:   reviews,
		scenarios: scenarios,
		logger:    logger,
		runTimes:  metrics.NewLatencyTracker(),
		state:     StateIdle,
	}
}

// Start begins (or restarts) the interactive demo at the first
// scenario, discarding prior results and tracked progress.
func (c *Controller) Start() Scenario {
	c.mu.Lock()
	c.state = StateRunning
	c.index = 0
	c.results = nil
	c.currentResult = nil
	c.currentID = ""
	c.generation++
	c.mu.Unlock()

	c.tracker.Reset()
	c.logger.Info("interactive demo started", slog.Int("scenarios", len(c.scenarios)))

	return Scenario{Number: 1, Total: len(c.scenarios)}
}

// CurrentScenario returns the scenario the demo is positioned at.
func (c *Controller) CurrentScenario() (Scenario, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning || c.index >= len(c.scenarios) {
		return Scenario{}, ErrNoScenario
	}
	return Scenario{
		Text:   c.scenarios[c.index],
		Number: c.index + 1,
		Total:  len(c.scenarios),
	}, nil
}

// ProcessCurrent spawns a tracked pipeline run for the current scenario
// and returns its scenario ID immediately. At most one run may be in
// flight at a time.
func (c *Controller) ProcessCurrent(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != StateRunning || c.index >= len(c.scenarios) {
		c.mu.Unlock()
		return "", ErrNoScenario
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrBusy
	}

	input := c.scenarios[c.index]
	scenarioID := fmt.Sprintf("interactive_%d", c.index+1)
	c.currentID = scenarioID
	c.currentResult = nil
	c.inFlight = true
	gen := c.generation
	c.mu.Unlock()

	c.spawn(ctx, gen, scenarioID, input)
	return scenarioID, nil
}

// ProcessCustom runs an ad-hoc customer message through the tracked
// pipeline, outside the fixed scenario list.
func (c *Controller) ProcessCustom(ctx context.Context, input string) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrBusy
	}
	scenarioID := fmt.Sprintf("custom_%d", time.Now().Unix())
	c.currentID = scenarioID
	c.currentResult = nil
	c.inFlight = true
	gen := c.generation
	c.mu.Unlock()

	c.spawn(ctx, gen, scenarioID, input)
	return scenarioID, nil
}

// spawn starts the background run. The run inherits request-scoped
// values but not the request's cancellation; it must outlive the HTTP
// call that triggered it.
func (c *Controller) spawn(ctx context.Context, gen uint64, scenarioID, input string) {
	c.tracker.StartScenario(scenarioID, input)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		result := c.runner.Run(runCtx, scenarioID, input, c.tracker)

		c.mu.Lock()
		defer c.mu.Unlock()

		c.inFlight = false
		if gen != c.generation {
			// The demo was reset while this run was in flight; its
			// result belongs to a session that no longer exists.
			c.logger.Info("discarding result from reset session", slog.String("scenario_id", scenarioID))
			return
		}

		c.results = append(c.results, result)
		c.currentResult = &result
		c.runTimes.Add(result.TotalTime)
	}()
}

// Advance moves to the next scenario, or completes the demo at the end
// of the list.
func (c *Controller) Advance() (Scenario, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return Scenario{}, ErrNoScenario
	}

	c.index++
	c.currentID = ""
	c.currentResult = nil

	if c.index >= len(c.scenarios) {
		c.state = StateCompleted
		return Scenario{Number: c.index, Total: len(c.scenarios)}, nil
	}
	return Scenario{
		Text:   c.scenarios[c.index],
		Number: c.index + 1,
		Total:  len(c.scenarios),
	}, nil
}

// Completed reports whether every scenario has been advanced past.
func (c *Controller) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateCompleted
}

// Reset returns the demo to idle and clears history, tracked progress,
// and pending review requests. In-flight runs keep executing but their
// late writes are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = StateIdle
	c.index = 0
	c.results = nil
	c.currentResult = nil
	c.currentID = ""
	c.generation++
	c.mu.Unlock()

	c.runTimes.Reset()
	c.tracker.Reset()
	if c.reviews != nil {
		c.reviews.Reset()
	}

	c.logger.Info("demo reset - all state cleared")
}

// Status returns a snapshot of the demo state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := 0
	if len(c.scenarios) > 0 {
		current = c.index + 1
	}
	return Status{
		State:             c.state,
		CurrentScenario:   current,
		TotalScenarios:    len(c.scenarios),
		ResultsCount:      len(c.results),
		CurrentScenarioID: c.currentID,
		CurrentResult:     c.currentResult,
	}
}

// History returns a copy of all completed results, oldest first.
func (c *Controller) History() []pipeline.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pipeline.Result, len(c.results))
	copy(out, c.results)
	return out
}

// Stats aggregates all completed runs in the current session.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	total := len(c.results)
	successful := 0
	for _, r := range c.results {
		if r.Success {
			successful++
		}
	}
	c.mu.Unlock()

	s := Stats{
		TotalProcessed: total,
		Successful:     successful,
		Pipeline:       c.runTimes.Stats(),
	}
	if total > 0 {
		s.SuccessRate = float64(successful) / float64(total) * 100
	}
	return s
}
