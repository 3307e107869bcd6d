package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/careloop/careloop/internal/pipeline"
	"github.com/careloop/careloop/internal/progress"
)

// fakeRunner returns an immediate success, optionally blocking until
// released first.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, scenarioID, customerInput string, sink pipeline.Sink) pipeline.Result {
	r.mu.Lock()
	r.calls = append(r.calls, scenarioID)
	release := r.release
	r.mu.Unlock()

	if release != nil {
		<-release
	}
	return pipeline.Result{
		ScenarioID:    scenarioID,
		CustomerInput: customerInput,
		FinalResponse: "resolved",
		Outcome:       pipeline.OutcomeSucceeded,
		TotalTime:     10 * time.Millisecond,
		Success:       true,
	}
}

type fakeResetter struct {
	mu     sync.Mutex
	resets int
}

func (r *fakeResetter) Reset() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}

func (r *fakeResetter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

var testLogger = slog.New(slog.DiscardHandler)

func newTestController(runner Runner, reviews Resetter) *Controller {
	return NewController(runner, progress.NewTracker(), reviews, []string{
		"Where is my order?",
		"My table arrived damaged.",
		"I demand a refund right now!",
	}, testLogger)
}

// waitForResult polls until the controller has recorded n results.
func waitForResult(t *testing.T, c *Controller, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(c.History()) >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d results", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLifecycle(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(runner, nil)

	if _, err := c.CurrentScenario(); err != ErrNoScenario {
		t.Errorf("CurrentScenario() before start error = %v, want ErrNoScenario", err)
	}

	sc := c.Start()
	if sc.Number != 1 || sc.Total != 3 {
		t.Errorf("Start() = %+v, want scenario 1 of 3", sc)
	}

	sc, err := c.CurrentScenario()
	if err != nil {
		t.Fatalf("CurrentScenario() error = %v", err)
	}
	if sc.Text != "Where is my order?" {
		t.Errorf("scenario text = %q", sc.Text)
	}

	id, err := c.ProcessCurrent(context.Background())
	if err != nil {
		t.Fatalf("ProcessCurrent() error = %v", err)
	}
	if id != "interactive_1" {
		t.Errorf("scenario ID = %s, want interactive_1", id)
	}
	waitForResult(t, c, 1)

	status := c.Status()
	if status.State != StateRunning {
		t.Errorf("state = %s, want running", status.State)
	}
	if status.ResultsCount != 1 {
		t.Errorf("ResultsCount = %d, want 1", status.ResultsCount)
	}
	if status.CurrentResult == nil || status.CurrentResult.ScenarioID != id {
		t.Errorf("CurrentResult = %+v, want result for %s", status.CurrentResult, id)
	}

	// Advance through the remaining scenarios.
	if sc, err = c.Advance(); err != nil || sc.Number != 2 {
		t.Fatalf("Advance() = %+v, %v", sc, err)
	}
	if _, err = c.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if _, err = c.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if !c.Completed() {
		t.Error("Completed() = false after advancing past the last scenario")
	}
	if _, err = c.CurrentScenario(); err != ErrNoScenario {
		t.Errorf("CurrentScenario() after completion error = %v, want ErrNoScenario", err)
	}
}

func TestProcessCurrentRejectsConcurrentRuns(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	c := newTestController(runner, nil)
	c.Start()

	if _, err := c.ProcessCurrent(context.Background()); err != nil {
		t.Fatalf("ProcessCurrent() error = %v", err)
	}
	if _, err := c.ProcessCurrent(context.Background()); err != ErrBusy {
		t.Errorf("second ProcessCurrent() error = %v, want ErrBusy", err)
	}
	if _, err := c.ProcessCustom(context.Background(), "custom input"); err != ErrBusy {
		t.Errorf("ProcessCustom() while busy error = %v, want ErrBusy", err)
	}

	close(runner.release)
	waitForResult(t, c, 1)

	// Free again once the run lands.
	if _, err := c.ProcessCurrent(context.Background()); err != nil {
		t.Errorf("ProcessCurrent() after completion error = %v", err)
	}
}

func TestProcessCurrentRequiresStart(t *testing.T) {
	c := newTestController(&fakeRunner{}, nil)
	if _, err := c.ProcessCurrent(context.Background()); err != ErrNoScenario {
		t.Errorf("ProcessCurrent() before start error = %v, want ErrNoScenario", err)
	}
}

func TestProcessCustom(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(runner, nil)

	// Custom inputs work without starting the scripted demo.
	id, err := c.ProcessCustom(context.Background(), "Can I change my delivery address?")
	if err != nil {
		t.Fatalf("ProcessCustom() error = %v", err)
	}
	if !strings.HasPrefix(id, "custom_") {
		t.Errorf("scenario ID = %s, want custom_ prefix", id)
	}
	waitForResult(t, c, 1)

	history := c.History()
	if history[0].CustomerInput != "Can I change my delivery address?" {
		t.Errorf("history input = %q", history[0].CustomerInput)
	}
}

// A run that outlives a reset must not leak its result into the new
// session.
func TestResetDiscardsInFlightResult(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	reviews := &fakeResetter{}
	c := newTestController(runner, reviews)
	c.Start()

	if _, err := c.ProcessCurrent(context.Background()); err != nil {
		t.Fatalf("ProcessCurrent() error = %v", err)
	}

	c.Reset()
	close(runner.release)

	// Give the stale goroutine time to finish and (incorrectly) record.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		inFlight := c.inFlight
		c.mu.Unlock()
		if !inFlight {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := len(c.History()); got != 0 {
		t.Errorf("history has %d results after reset, want 0", got)
	}
	if st := c.Status(); st.State != StateIdle || st.CurrentResult != nil {
		t.Errorf("Status() after reset = %+v, want idle with no result", st)
	}
	if reviews.count() != 1 {
		t.Errorf("review exchange reset %d times, want 1", reviews.count())
	}
}

func TestStartRestartsSession(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(runner, nil)
	c.Start()

	if _, err := c.ProcessCurrent(context.Background()); err != nil {
		t.Fatalf("ProcessCurrent() error = %v", err)
	}
	waitForResult(t, c, 1)

	c.Start()
	if got := len(c.History()); got != 0 {
		t.Errorf("history has %d results after restart, want 0", got)
	}
	sc, err := c.CurrentScenario()
	if err != nil || sc.Number != 1 {
		t.Errorf("CurrentScenario() after restart = %+v, %v", sc, err)
	}
}

func TestStats(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(runner, nil)
	c.Start()

	stats := c.Stats()
	if stats.TotalProcessed != 0 || stats.SuccessRate != 0 {
		t.Errorf("fresh Stats() = %+v, want zeros", stats)
	}

	if _, err := c.ProcessCurrent(context.Background()); err != nil {
		t.Fatalf("ProcessCurrent() error = %v", err)
	}
	waitForResult(t, c, 1)

	stats = c.Stats()
	if stats.TotalProcessed != 1 || stats.Successful != 1 {
		t.Errorf("Stats() = %+v, want 1 processed, 1 successful", stats)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100", stats.SuccessRate)
	}
	if stats.Pipeline.Count != 1 {
		t.Errorf("Pipeline.Count = %d, want 1", stats.Pipeline.Count)
	}
}

func TestDefaultScenariosWhenEmpty(t *testing.T) {
	c := NewController(&fakeRunner{}, progress.NewTracker(), nil, nil, testLogger)
	sc := c.Start()
	if sc.Total != len(DefaultScenarios) {
		t.Errorf("Total = %d, want %d default scenarios", sc.Total, len(DefaultScenarios))
	}
}
