package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/careloop/careloop/internal/api/groq"
)

// TransientError marks a failure that is safe to retry: transport or
// timeout errors, retryable API statuses, and empty completions.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient model service error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ExhaustedRetriesError is returned when every attempt for a single
// call failed. It is terminal for that call only; callers decide what
// a dead model service means for their stage.
type ExhaustedRetriesError struct {
	Model    string
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("model call to %s failed after %d attempts: %v", e.Model, e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

// errEmptyContent marks a completion with no content, which the service
// occasionally returns under load. Eligible for retry, never success.
var errEmptyContent = errors.New("empty completion content")

// classify decides whether an error from the API client is retryable.
func classify(err error) error {
	var apiErr *groq.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() {
			return &TransientError{Err: apiErr}
		}
		return apiErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Transport-level failures (connection refused, timeouts, EOF) all
	// arrive as wrapped url.Error values; treat them as transient.
	return &TransientError{Err: err}
}
