package diagnosis

import (
	"fmt"
	"io"

	"github.com/obdai/obdai/pkg/models"
)

// Progress event types.
const (
	EventStep  = "step"
	EventInfo  = "info"
	EventDone  = "done"
	EventError = "error"
)

// ProgressEvent represents a single progress update during a diagnosis run.
type ProgressEvent struct {
	Type      string                  `json:"type"`                // "step", "info", "done", "error"
	Step      int                     `json:"step,omitempty"`      // current step
	MaxStep   int                     `json:"max,omitempty"`       // number of steps
	Message   string                  `json:"message,omitempty"`   // human-readable message
	Kind      Kind                    `json:"kind,omitempty"`      // failure kind (for "error" type)
	Status    int                     `json:"status,omitempty"`    // upstream HTTP status (for "error" type)
	Diagnosis *models.DiagnosisResult `json:"diagnosis,omitempty"` // final result (for "done" type)
}

// ProgressEmitter receives progress events during a diagnosis run.
type ProgressEmitter interface {
	Emit(event ProgressEvent)
}

// ErrorEvent builds the terminal event for a failed run.
func ErrorEvent(err error) ProgressEvent {
	if e, ok := AsError(err); ok {
		return ProgressEvent{Type: EventError, Message: e.UserMessage(), Kind: e.Kind, Status: e.StatusCode}
	}
	return ProgressEvent{Type: EventError, Message: err.Error()}
}

// TextEmitter formats progress events as human-readable text for CLI output.
type TextEmitter struct {
	W io.Writer
}

// Emit writes a formatted progress line to the underlying writer.
func (e *TextEmitter) Emit(ev ProgressEvent) {
	switch ev.Type {
	case EventStep:
		fmt.Fprintf(e.W, "[step %d/%d] %s\n", ev.Step, ev.MaxStep, ev.Message)
	case EventInfo:
		fmt.Fprintf(e.W, "  %s\n", ev.Message)
	case EventError:
		fmt.Fprintf(e.W, "Error: %s\n", ev.Message)
	}
}
