// Package review implements the human-review rendezvous: the pipeline
// submits a draft and blocks for an outcome while a reviewer claims and
// resolves requests over the HTTP surface. Outcomes are matched to the
// exact originating request ID, never to queue position, so two
// concurrent reviews cannot cross-wire.
package review

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownRequest is returned when resolving an ID that was never
// claimed, was already resolved, or was dropped by a reset.
var ErrUnknownRequest = errors.New("unknown review request")

// TimeoutNotes is the notes text on a synthetic timeout outcome.
const TimeoutNotes = "Timed out - using original response"

// Request is a draft awaiting human review.
type Request struct {
	ID            string    `json:"review_id"`
	CustomerInput string    `json:"customer_input"`
	Draft         string    `json:"ai_response"`
	SubmittedAt   time.Time `json:"-"`
}

// Outcome is the reviewer's verdict for one request. A timed-out
// request yields a synthetic outcome whose edited text equals the
// original draft; that is a terminal fallback, not an error.
type Outcome struct {
	RequestID string
	Original  string
	Edited    string
	HumanTime time.Duration
	Notes     string
	TimedOut  bool
}

type pendingReview struct {
	req       Request
	claimedAt time.Time
	claimed   bool
	done      chan Outcome
}

// Exchange is the single-slot-per-request handoff between one producer
// (the pipeline) and one consumer (the reviewer UI). The mutex guards
// only map and queue operations; it is never held across a wait.
type Exchange struct {
	mu     sync.Mutex
	queue  []*pendingReview          // FIFO, unclaimed
	byID   map[string]*pendingReview // all live requests, claimed or not
	logger *slog.Logger
}

// NewExchange creates an empty exchange.
func NewExchange(logger *slog.Logger) *Exchange {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchange{
		byID:   make(map[string]*pendingReview),
		logger: logger,
	}
}

// Submit enqueues a draft for review and returns its request ID
// immediately; it never blocks.
func (e *Exchange) Submit(customerInput, draft string) string {
	p := &pendingReview{
		req: Request{
			ID:            uuid.New().String(),
			CustomerInput: customerInput,
			Draft:         draft,
			SubmittedAt:   time.Now(),
		},
		done: make(chan Outcome, 1),
	}

	e.mu.Lock()
	e.queue = append(e.queue, p)
	e.byID[p.req.ID] = p
	e.mu.Unlock()

	e.logger.Info("review request submitted", slog.String("review_id", p.req.ID))
	return p.req.ID
}

// Claim hands the oldest unclaimed request to the reviewer, marking it
// in flight. Non-blocking; ok is false when nothing is waiting.
func (e *Exchange) Claim() (Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return Request{}, false
	}

	p := e.queue[0]
	e.queue = e.queue[1:]
	p.claimed = true
	p.claimedAt = time.Now()

	return p.req, true
}

// Resolve posts the reviewer's outcome for a specific in-flight
// request. The elapsed human time is measured from the claim.
func (e *Exchange) Resolve(requestID, edited, notes string) error {
	e.mu.Lock()
	p, ok := e.byID[requestID]
	if !ok || !p.claimed {
		e.mu.Unlock()
		return ErrUnknownRequest
	}
	delete(e.byID, requestID)
	e.mu.Unlock()

	outcome := Outcome{
		RequestID: requestID,
		Original:  p.req.Draft,
		Edited:    edited,
		HumanTime: time.Since(p.claimedAt),
		Notes:     notes,
	}
	if outcome.Edited == "" {
		outcome.Edited = p.req.Draft
	}

	p.done <- outcome
	e.logger.Info("review resolved",
		slog.String("review_id", requestID),
		slog.Duration("human_time", outcome.HumanTime),
	)
	return nil
}

// Await blocks until the outcome for exactly requestID arrives or the
// timeout elapses. On timeout (or context cancellation) it removes the
// request and returns a synthetic outcome that keeps the original
// draft, so the pipeline always completes.
func (e *Exchange) Await(ctx context.Context, requestID string, timeout time.Duration) Outcome {
	e.mu.Lock()
	p, ok := e.byID[requestID]
	e.mu.Unlock()
	if !ok {
		// Dropped by a reset before the wait began; same fallback as a
		// timeout but without burning the full wait.
		return Outcome{RequestID: requestID, TimedOut: true, Notes: TimeoutNotes, HumanTime: timeout}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-p.done:
		return outcome
	case <-timer.C:
	case <-ctx.Done():
	}

	e.drop(requestID)
	e.logger.Warn("review request timed out",
		slog.String("review_id", requestID),
		slog.Duration("timeout", timeout),
	)
	return Outcome{
		RequestID: requestID,
		Original:  p.req.Draft,
		Edited:    p.req.Draft,
		HumanTime: timeout,
		Notes:     TimeoutNotes,
		TimedOut:  true,
	}
}

// drop removes a request from both the FIFO queue and the ID index.
func (e *Exchange) drop(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.byID[requestID]; !ok {
		return
	}
	delete(e.byID, requestID)
	for i, p := range e.queue {
		if p.req.ID == requestID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
}

// Reset discards all pending and in-flight requests. Producers already
// waiting fall back to their timeout outcome; a late Resolve for a
// dropped ID gets ErrUnknownRequest.
func (e *Exchange) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = nil
	e.byID = make(map[string]*pendingReview)
}

// PendingCount reports unclaimed requests.
func (e *Exchange) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// ActiveCount reports claimed requests still awaiting resolution.
func (e *Exchange) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byID) - len(e.queue)
}
