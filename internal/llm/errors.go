package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when no response arrives within the request ceiling.
	ErrTimeout = errors.New("gemini request timed out")
	// ErrNoCandidates is returned when the response carries no candidates.
	ErrNoCandidates = errors.New("gemini returned no candidates")
	// ErrBlocked is returned when a safety filter suppressed the response.
	ErrBlocked = errors.New("gemini response blocked by safety filters")
	// ErrEmptyContent is returned when the first candidate has no text.
	ErrEmptyContent = errors.New("gemini candidate has no text content")
	// ErrInvalidEnvelope is returned when a 2xx body is not a generateContent response.
	ErrInvalidEnvelope = errors.New("gemini response is not valid JSON")
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini API error (%d): %s", e.StatusCode, e.Message)
}

// NetworkError wraps transport-level failures (DNS, refused connections, resets).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gemini request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
