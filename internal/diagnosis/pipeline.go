// Package diagnosis turns a vehicle and a set of OBD2 codes into a validated
// AI diagnosis: prompt construction, one completion call, and defensive
// extraction of the structured result.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/obdai/obdai/internal/llm"
	"github.com/obdai/obdai/pkg/models"
	"github.com/rs/zerolog"
)

const (
	pipelineSteps = 3
	// rawLogLimit bounds how much upstream text is written to logs.
	rawLogLimit = 2000
)

// Completer produces raw text for a prompt. *llm.Client satisfies it.
type Completer interface {
	Generate(ctx context.Context, prompt string) (*llm.Completion, error)
}

// Pipeline runs diagnoses. It holds no per-request state and is safe for
// concurrent use; it does not deduplicate or order concurrent calls.
type Pipeline struct {
	completer Completer
	extractor Extractor
	logger    zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStrict rejects payloads that would otherwise be repaired.
func WithStrict(strict bool) Option {
	return func(p *Pipeline) {
		p.extractor.Strict = strict
	}
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline backed by the given completer.
func New(completer Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer: completer,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Diagnose runs one attempt. On failure the error is always a *Error.
func (p *Pipeline) Diagnose(ctx context.Context, vehicle models.VehicleContext, rawCodes string) (*models.DiagnosisResult, error) {
	return p.DiagnoseWithProgress(ctx, vehicle, rawCodes, nil)
}

// DiagnoseWithProgress is Diagnose with step events sent to emitter (may be nil).
// Terminal done/error events are left to the caller.
func (p *Pipeline) DiagnoseWithProgress(ctx context.Context, vehicle models.VehicleContext, rawCodes string, emitter ProgressEmitter) (*models.DiagnosisResult, error) {
	codes := models.NormalizeCodes(rawCodes)
	log := p.logger.With().
		Str("vehicle", vehicle.String()).
		Str("codes", codes).
		Logger()

	if codes == "" {
		return nil, newError(KindEmptyInput, "no error codes after normalization", nil)
	}

	start := time.Now()

	emit(emitter, ProgressEvent{Type: EventStep, Step: 1, MaxStep: pipelineSteps, Message: "Building prompt..."})
	prompt := BuildPrompt(vehicle, codes)

	emit(emitter, ProgressEvent{Type: EventStep, Step: 2, MaxStep: pipelineSteps, Message: "Calling model..."})
	completion, err := p.completer.Generate(ctx, prompt)
	if err != nil {
		derr := classify(err)
		log.Warn().Err(err).Str("kind", string(derr.Kind)).Int("status", derr.StatusCode).Msg("completion failed")
		return nil, derr
	}

	emit(emitter, ProgressEvent{Type: EventStep, Step: 3, MaxStep: pipelineSteps, Message: "Parsing response..."})
	result, repaired, err := p.extractor.extract(completion.Text)
	if err != nil {
		derr, _ := AsError(err)
		log.Warn().
			Str("kind", string(derr.Kind)).
			Strs("fields", derr.Fields).
			Str("detail", derr.Detail).
			Str("raw", truncate(completion.Text, rawLogLimit)).
			Msg("unusable diagnosis response")
		return nil, derr
	}

	for _, field := range repaired {
		log.Debug().Str("field", field).Msg("repaired diagnosis field")
	}
	if len(repaired) > 0 {
		emit(emitter, ProgressEvent{Type: EventInfo, Message: fmt.Sprintf("Adjusted %d response field(s): %s", len(repaired), strings.Join(repaired, ", "))})
	}

	ev := log.Info().
		Int("fixes", len(result.SuggestedFixes)).
		Int("repaired", len(repaired)).
		Dur("elapsed", time.Since(start)).
		Str("model", completion.Model)
	if fix := result.MostLikely(); fix != nil {
		ev = ev.Str("most_likely", fix.Name)
	}
	if completion.Usage != nil {
		ev = ev.Int("total_tokens", completion.Usage.TotalTokenCount)
	}
	ev.Msg("diagnosis complete")

	return result, nil
}

// classify maps a completer failure onto the error taxonomy.
func classify(err error) *Error {
	var statusErr *llm.StatusError
	var netErr *llm.NetworkError

	switch {
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, "", err)
	case errors.Is(err, context.Canceled):
		return newError(KindCanceled, "", err)
	case errors.As(err, &statusErr):
		e := newError(KindUpstreamError, "", err)
		e.Message = statusErr.Message
		e.StatusCode = statusErr.StatusCode
		return e
	case errors.Is(err, llm.ErrBlocked):
		return newError(KindContentBlocked, "", err)
	case errors.Is(err, llm.ErrNoCandidates),
		errors.Is(err, llm.ErrEmptyContent),
		errors.Is(err, llm.ErrInvalidEnvelope):
		return newError(KindEmptyResponse, "", err)
	case errors.As(err, &netErr):
		return newError(KindNetworkFailure, "", err)
	default:
		return newError(KindNetworkFailure, "unclassified completer error", err)
	}
}

func emit(emitter ProgressEmitter, ev ProgressEvent) {
	if emitter != nil {
		emitter.Emit(ev)
	}
}
