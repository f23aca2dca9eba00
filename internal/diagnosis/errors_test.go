package diagnosis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "timeout", err: newError(KindTimeout, "", nil), want: "Request timed out. The AI service is taking too long to respond. Please try again."},
		{name: "blocked", err: newError(KindContentBlocked, "", nil), want: "Response was blocked by safety filters. Try different or rephrased error codes."},
		{name: "upstream", err: &Error{Kind: KindUpstreamError, Message: "API key not valid", StatusCode: 400}, want: "API key not valid (HTTP 400)"},
		{name: "unknown kind", err: &Error{Kind: Kind("mystery")}, want: "An unknown error occurred. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.UserMessage())
		})
	}
}

func TestError_ErrorString(t *testing.T) {
	e := &Error{Kind: KindIncompleteDiagnosis, Fields: []string{"explanation", "suggestedFixes"}}
	assert.Equal(t, "incomplete_diagnosis: fields explanation, suggestedFixes", e.Error())

	e = &Error{Kind: KindUpstreamError, Message: "quota exceeded", StatusCode: 429}
	assert.Equal(t, "upstream_error (HTTP 429): quota exceeded", e.Error())
}

func TestAsErrorAndIsKind(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("diagnose: %w", newError(KindNetworkFailure, "", cause))

	e, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindNetworkFailure, e.Kind)
	assert.True(t, IsKind(wrapped, KindNetworkFailure))
	assert.False(t, IsKind(wrapped, KindTimeout))
	assert.ErrorIs(t, wrapped, cause)

	_, ok = AsError(cause)
	assert.False(t, ok)
	assert.False(t, IsKind(nil, KindTimeout))
}

func TestErrorEvent(t *testing.T) {
	ev := ErrorEvent(&Error{Kind: KindUpstreamError, Message: "quota exceeded", StatusCode: 429})
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, KindUpstreamError, ev.Kind)
	assert.Equal(t, 429, ev.Status)
	assert.Equal(t, "quota exceeded (HTTP 429)", ev.Message)

	ev = ErrorEvent(errors.New("plain"))
	assert.Equal(t, "plain", ev.Message)
	assert.Empty(t, ev.Kind)
}
