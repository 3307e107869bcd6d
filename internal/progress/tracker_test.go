package progress

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStepLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.StartScenario("s1", "My package is late")

	tr.AddStep("s1", "safety_check", "Checking input", "llama-guard")
	tr.CompleteCurrentStep("s1", "Passed", StatusCompleted)
	tr.AddStep("s1", "response_generation", "Generating", "llama-3.3")

	p, ok := tr.Snapshot("s1")
	if !ok {
		t.Fatal("Snapshot() found no scenario")
	}
	if len(p.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(p.Steps))
	}
	if p.Steps[0].Status != StatusCompleted {
		t.Errorf("step 0 status = %s, want %s", p.Steps[0].Status, StatusCompleted)
	}
	if p.Steps[0].Detail != "Passed" {
		t.Errorf("step 0 detail = %q, want %q", p.Steps[0].Detail, "Passed")
	}
	if p.Steps[1].Status != StatusRunning {
		t.Errorf("step 1 status = %s, want %s", p.Steps[1].Status, StatusRunning)
	}
	if p.CurrentStep != 2 {
		t.Errorf("CurrentStep = %d, want 2", p.CurrentStep)
	}
	if p.Completed() {
		t.Error("Completed() = true before CompleteScenario")
	}

	tr.CompleteCurrentStep("s1", "", StatusCompleted)
	tr.CompleteScenario("s1")

	p, _ = tr.Snapshot("s1")
	if !p.Completed() {
		t.Error("Completed() = false after CompleteScenario")
	}
	if p.Steps[1].Detail != "Generating" {
		t.Errorf("empty detail overwrote step detail, got %q", p.Steps[1].Detail)
	}
}

func TestMutationsIgnoreUnknownScenario(t *testing.T) {
	tr := NewTracker()

	tr.AddStep("ghost", "safety_check", "", "")
	tr.CompleteCurrentStep("ghost", "", StatusCompleted)
	tr.CompleteScenario("ghost")

	if tr.Count() != 0 {
		t.Errorf("Count() = %d, want 0", tr.Count())
	}
	if _, ok := tr.Snapshot("ghost"); ok {
		t.Error("Snapshot(ghost) found a scenario")
	}
}

func TestCompleteCurrentStepWithoutSteps(t *testing.T) {
	tr := NewTracker()
	tr.StartScenario("s1", "input")

	// No steps yet; must not panic.
	tr.CompleteCurrentStep("s1", "done", StatusCompleted)

	p, _ := tr.Snapshot("s1")
	if len(p.Steps) != 0 {
		t.Errorf("got %d steps, want 0", len(p.Steps))
	}
}

// A writer that outlives a reset must not resurrect its scenario.
func TestResetDiscardsLateWrites(t *testing.T) {
	tr := NewTracker()
	tr.StartScenario("s1", "input")
	tr.AddStep("s1", "safety_check", "", "")

	tr.Reset()

	tr.AddStep("s1", "response_generation", "", "")
	tr.CompleteCurrentStep("s1", "", StatusCompleted)
	tr.CompleteScenario("s1")

	if tr.Count() != 0 {
		t.Errorf("Count() after reset = %d, want 0", tr.Count())
	}
	if _, ok := tr.Snapshot("s1"); ok {
		t.Error("late writes recreated a scenario after reset")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	tr := NewTracker()
	tr.StartScenario("s1", "input")
	tr.AddStep("s1", "safety_check", "original", "")

	snap, _ := tr.Snapshot("s1")
	snap.Steps[0].Detail = "mutated"

	p, _ := tr.Snapshot("s1")
	if p.Steps[0].Detail != "original" {
		t.Errorf("snapshot mutation leaked into tracker: %q", p.Steps[0].Detail)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			tr.StartScenario(id, "input")
			for j := 0; j < 50; j++ {
				tr.AddStep(id, "step", "", "")
				tr.CompleteCurrentStep(id, "", StatusCompleted)
				tr.Snapshot(id)
			}
			tr.CompleteScenario(id)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				tr.Count()
				tr.Snapshot("s0")
			}
		}
	}()

	wg.Wait()
	close(done)

	if tr.Count() != 8 {
		t.Errorf("Count() = %d, want 8", tr.Count())
	}
}

func TestStepDurationLiveWhileRunning(t *testing.T) {
	s := Step{Name: "safety_check", StartTime: time.Now().Add(-time.Second), Status: StatusRunning}
	if d := s.Duration(); d < time.Second {
		t.Errorf("Duration() = %v, want >= 1s", d)
	}

	end := s.StartTime.Add(500 * time.Millisecond)
	s.EndTime = &end
	if d := s.Duration(); d != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", d)
	}
}
