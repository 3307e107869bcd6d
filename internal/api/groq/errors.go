package groq

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-200 response from the Groq API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("groq API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("groq API error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the error is worth retrying. Rate limits and
// server-side failures are transient; everything else is a caller error.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ParseErrorResponse parses an API error body. Returns (nil, nil) when the
// body does not carry a structured error object.
func ParseErrorResponse(statusCode int, body []byte) (*APIError, error) {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, err
	}
	if er.Error == nil {
		return nil, nil
	}
	return &APIError{
		StatusCode: statusCode,
		Type:       er.Error.Type,
		Message:    er.Error.Message,
	}, nil
}
