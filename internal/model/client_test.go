package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careloop/careloop/internal/api/groq"
)

// fakeChatAPI returns scripted results and records call timestamps.
type fakeChatAPI struct {
	mu      sync.Mutex
	calls   []time.Time
	results []fakeResult
}

type fakeResult struct {
	content string
	err     error
}

func (f *fakeChatAPI) CreateChatCompletion(ctx context.Context, req *groq.ChatCompletionRequest) (*groq.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.calls)
	f.calls = append(f.calls, time.Now())

	res := f.results[len(f.results)-1]
	if n < len(f.results) {
		res = f.results[n]
	}
	if res.err != nil {
		return nil, res.err
	}
	return &groq.ChatCompletionResponse{
		Choices: []groq.Choice{
			{Message: groq.ChatCompletionMessage{Role: "assistant", Content: res.content}},
		},
	}, nil
}

func (f *fakeChatAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingRecorder struct {
	mu      sync.Mutex
	samples int
	retries int
}

func (r *countingRecorder) ObserveModelLatency(string, time.Duration) {
	r.mu.Lock()
	r.samples++
	r.mu.Unlock()
}

func (r *countingRecorder) IncModelRetry(string) {
	r.mu.Lock()
	r.retries++
	r.mu.Unlock()
}

var serverErr = &groq.APIError{StatusCode: 500, Message: "internal error"}

func TestCallSucceedsFirstAttempt(t *testing.T) {
	api := &fakeChatAPI{results: []fakeResult{{content: "  hello there  "}}}
	rec := &countingRecorder{}
	c := New(api, WithRecorder(rec))

	got, err := c.Call(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0.7)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "hello there" {
		t.Errorf("Call() = %q, want trimmed content", got)
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times, want 1", api.callCount())
	}
	if rec.samples != 1 || rec.retries != 0 {
		t.Errorf("recorder samples=%d retries=%d, want 1/0", rec.samples, rec.retries)
	}
}

func TestCallRetriesTransientFailures(t *testing.T) {
	api := &fakeChatAPI{results: []fakeResult{
		{err: serverErr},
		{err: serverErr},
		{content: "recovered"},
	}}
	rec := &countingRecorder{}
	c := New(api, WithMaxRetries(3), WithBaseDelay(10*time.Millisecond), WithRecorder(rec))

	got, err := c.Call(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "recovered" {
		t.Errorf("Call() = %q, want %q", got, "recovered")
	}
	if api.callCount() != 3 {
		t.Errorf("API called %d times, want 3", api.callCount())
	}
	if rec.retries != 2 {
		t.Errorf("recorded %d retries, want 2", rec.retries)
	}
	// Only the successful attempt is sampled.
	if rec.samples != 1 {
		t.Errorf("recorded %d latency samples, want 1", rec.samples)
	}
}

func TestCallBackoffDelaysGrow(t *testing.T) {
	api := &fakeChatAPI{results: []fakeResult{
		{err: serverErr},
		{err: serverErr},
		{content: "ok"},
	}}
	const base = 20 * time.Millisecond
	c := New(api, WithMaxRetries(3), WithBaseDelay(base))

	if _, err := c.Call(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	gap1 := api.calls[1].Sub(api.calls[0])
	gap2 := api.calls[2].Sub(api.calls[1])
	if gap1 < base {
		t.Errorf("first retry waited %v, want >= %v", gap1, base)
	}
	if gap2 < 2*base {
		t.Errorf("second retry waited %v, want >= %v", gap2, 2*base)
	}
	if gap2 < gap1 {
		t.Errorf("delays shrank: %v then %v", gap1, gap2)
	}
}

func TestCallExhaustsRetries(t *testing.T) {
	api := &fakeChatAPI{results: []fakeResult{{err: serverErr}}}
	c := New(api, WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	_, err := c.Call(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0)

	var exhausted *ExhaustedRetriesError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Call() error = %v, want ExhaustedRetriesError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if api.callCount() != 3 {
		t.Errorf("API called %d times, want 3", api.callCount())
	}
	var apiErr *groq.APIError
	if !errors.As(err, &apiErr) {
		t.Error("exhaustion does not unwrap to the last cause")
	}
}

func TestCallDoesNotRetryCallerErrors(t *testing.T) {
	badKey := &groq.APIError{StatusCode: 401, Message: "invalid api key"}
	api := &fakeChatAPI{results: []fakeResult{{err: badKey}}}
	c := New(api, WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	_, err := c.Call(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0)
	if err == nil {
		t.Fatal("Call() error = nil, want auth error")
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times, want 1 (no retries on 401)", api.callCount())
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		t.Error("401 classified as transient")
	}
}

func TestCallRetriesEmptyContent(t *testing.T) {
	api := &fakeChatAPI{results: []fakeResult{
		{content: "   "},
		{content: "substantive answer"},
	}}
	c := New(api, WithMaxRetries(3), WithBaseDelay(time.Millisecond))

	got, err := c.Call(context.Background(), "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "substantive answer" {
		t.Errorf("Call() = %q", got)
	}
	if api.callCount() != 2 {
		t.Errorf("API called %d times, want 2", api.callCount())
	}
}

func TestCallStopsOnContextCancel(t *testing.T) {
	api := &fakeChatAPI{results: []fakeResult{{err: serverErr}}}
	c := New(api, WithMaxRetries(5), WithBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, "test-model", []Message{{Role: "user", Content: "hi"}}, 100, 0)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Call() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Call() did not return after cancellation")
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times after cancel, want 1", api.callCount())
	}
}

func TestHealthy(t *testing.T) {
	ok := New(&fakeChatAPI{results: []fakeResult{{content: "pong"}}})
	if !ok.Healthy(context.Background(), "test-model") {
		t.Error("Healthy() = false for reachable service")
	}

	down := New(&fakeChatAPI{results: []fakeResult{{err: serverErr}}},
		WithMaxRetries(1), WithBaseDelay(time.Millisecond))
	if down.Healthy(context.Background(), "test-model") {
		t.Error("Healthy() = true for failing service")
	}
}
