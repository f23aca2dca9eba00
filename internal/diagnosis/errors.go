package diagnosis

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a diagnosis run failed.
type Kind string

const (
	KindEmptyInput          Kind = "empty_input"
	KindTimeout             Kind = "timeout"
	KindNetworkFailure      Kind = "network_failure"
	KindUpstreamError       Kind = "upstream_error"
	KindContentBlocked      Kind = "content_blocked"
	KindEmptyResponse       Kind = "empty_response"
	KindInvalidJSON         Kind = "invalid_json"
	KindMissingDiagnosisKey Kind = "missing_diagnosis_key"
	KindIncompleteDiagnosis Kind = "incomplete_diagnosis"
	KindCanceled            Kind = "canceled"
)

var userMessages = map[Kind]string{
	KindEmptyInput:          "Please enter at least one error code.",
	KindTimeout:             "Request timed out. The AI service is taking too long to respond. Please try again.",
	KindNetworkFailure:      "Network error. Please check your connection and try again.",
	KindContentBlocked:      "Response was blocked by safety filters. Try different or rephrased error codes.",
	KindEmptyResponse:       "AI returned no usable response. Please try again.",
	KindInvalidJSON:         "AI response was not valid. Please try again.",
	KindMissingDiagnosisKey: "AI response was incomplete. Please try again.",
	KindIncompleteDiagnosis: "AI response was incomplete. Please try again.",
	KindCanceled:            "Request was cancelled.",
}

// Error is the only error type returned by Pipeline.Diagnose.
//
// Message is safe to show to users. Detail and Err are for logs only.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int      // upstream HTTP status, UpstreamError only
	Fields     []string // failing fields, IncompleteDiagnosis only
	Detail     string
	Err        error
}

func newError(kind Kind, detail string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: userMessages[kind],
		Detail:  detail,
		Err:     err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Kind == KindUpstreamError && e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, ": fields %s", strings.Join(e.Fields, ", "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the short, actionable text shown to users.
// Upstream errors keep the provider's message and status verbatim.
func (e *Error) UserMessage() string {
	if e.Kind == KindUpstreamError {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	if e.Message != "" {
		return e.Message
	}
	return "An unknown error occurred. Please try again."
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
