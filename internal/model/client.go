// Package model wraps the Groq chat API with retry, backoff, and
// latency accounting. Stages call through this client so that transient
// service failures are absorbed before they reach pipeline logic.
package model

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/api/groq"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultTimeout    = 30 * time.Second
)

// Message is one entry in a chat conversation.
type Message struct {
	Role    string
	Content string
}

// ChatAPI is the slice of the Groq client the model client depends on.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req *groq.ChatCompletionRequest) (*groq.ChatCompletionResponse, error)
}

// Recorder receives latency samples and retry counts.
type Recorder interface {
	ObserveModelLatency(model string, d time.Duration)
	IncModelRetry(model string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveModelLatency(string, time.Duration) {}
func (nopRecorder) IncModelRetry(string)                      {}

// Option configures the client.
type Option func(*Client)

// WithMaxRetries sets the number of attempts per call.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the backoff unit; attempt n waits baseDelay << n.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithRequestTimeout bounds each individual attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRecorder sets the metrics sink for latency samples.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client calls the chat API with retries and exponential backoff.
type Client struct {
	api        ChatAPI
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	recorder   Recorder
	logger     *slog.Logger
}

// New creates a model client around an API client.
func New(api ChatAPI, opts ...Option) *Client {
	c := &Client{
		api:        api,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		timeout:    defaultTimeout,
		recorder:   nopRecorder{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends one chat completion and returns the trimmed content of the
// first choice. Transient failures are retried up to the configured
// attempt count with exponential backoff; on exhaustion the last cause
// is returned wrapped in ExhaustedRetriesError. Only the successful
// attempt's latency is recorded.
func (c *Client) Call(ctx context.Context, modelID string, messages []Message, maxTokens int, temperature float32) (string, error) {
	req := &groq.ChatCompletionRequest{
		Model:       modelID,
		Messages:    make([]groq.ChatCompletionMessage, len(messages)),
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	for i, m := range messages {
		req.Messages[i] = groq.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.recorder.IncModelRetry(modelID)
			wait := c.baseDelay << (attempt - 1)
			c.logger.Info("retrying model call",
				slog.String("model", modelID),
				slog.Int("attempt", attempt+1),
				slog.Duration("wait", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		content, err := c.attempt(ctx, modelID, req)
		if err == nil {
			return content, nil
		}
		lastErr = err

		var transient *TransientError
		if !errors.As(err, &transient) {
			// Caller errors (bad request, bad key) and cancellation
			// are not worth retrying.
			return "", err
		}

		c.logger.Warn("model call attempt failed",
			slog.String("model", modelID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	return "", &ExhaustedRetriesError{Model: modelID, Attempts: c.maxRetries, Last: lastErr}
}

func (c *Client) attempt(ctx context.Context, modelID string, req *groq.ChatCompletionRequest) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(attemptCtx, req)
	if err != nil {
		return "", classify(err)
	}

	content := strings.TrimSpace(resp.FirstContent())
	if content == "" {
		return "", &TransientError{Err: errEmptyContent}
	}

	c.recorder.ObserveModelLatency(modelID, time.Since(start))
	return content, nil
}

// Healthy performs a shallow probe against the model service with a
// minimal request. It reports reachability, nothing more.
func (c *Client) Healthy(ctx context.Context, modelID string) bool {
	_, err := c.Call(ctx, modelID, []Message{{Role: "user", Content: "ping"}}, 10, 0)
	if err != nil {
		c.logger.Warn("model health probe failed", slog.String("error", err.Error()))
		return false
	}
	return true
}
