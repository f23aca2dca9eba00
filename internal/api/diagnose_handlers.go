package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/auth"
	"github.com/obdai/obdai/internal/database"
	"github.com/obdai/obdai/internal/diagnosis"
	"github.com/obdai/obdai/pkg/models"
	"github.com/rs/zerolog/hlog"
)

const (
	vehicleRequiredMessage = "Please select your vehicle year, make, and model."
	rateLimitedMessage     = "Too many diagnosis requests. Please wait a moment and try again."

	// statusClientClosedRequest is logged when the caller goes away mid-diagnosis.
	statusClientClosedRequest = 499

	maxHistoryLimit = 100
)

type diagnoseRequest struct {
	Vehicle   models.VehicleContext `json:"vehicle"`
	VehicleID string                `json:"vehicle_id,omitempty"`
	Codes     string                `json:"codes"`
}

type diagnoseResponse struct {
	Diagnosis *models.DiagnosisResult `json:"diagnosis"`
	// ID is the history entry, set when the caller is signed in.
	ID *uuid.UUID `json:"id,omitempty"`
}

type diagnosisErrorResponse struct {
	Error          string         `json:"error"`
	Kind           diagnosis.Kind `json:"kind"`
	UpstreamStatus int            `json:"upstream_status,omitempty"`
}

type historyResponse struct {
	ID        uuid.UUID               `json:"id"`
	VehicleID *uuid.UUID              `json:"vehicle_id,omitempty"`
	Vehicle   models.VehicleContext   `json:"vehicle"`
	Codes     string                  `json:"codes"`
	Diagnosis *models.DiagnosisResult `json:"diagnosis"`
	CreatedAt time.Time               `json:"created_at"`
}

func newHistoryResponse(d *database.Diagnosis) historyResponse {
	return historyResponse{
		ID:        d.ID,
		VehicleID: d.VehicleID,
		Vehicle:   d.Vehicle,
		Codes:     d.Codes,
		Diagnosis: d.Result,
		CreatedAt: d.CreatedAt,
	}
}

// statusForKind maps a diagnosis failure to an HTTP status.
func statusForKind(kind diagnosis.Kind) int {
	switch kind {
	case diagnosis.KindEmptyInput:
		return http.StatusBadRequest
	case diagnosis.KindTimeout:
		return http.StatusGatewayTimeout
	case diagnosis.KindContentBlocked:
		return http.StatusUnprocessableEntity
	case diagnosis.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

func writeDiagnosisError(w http.ResponseWriter, err error) {
	e, ok := diagnosis.AsError(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "An unknown error occurred. Please try again.")
		return
	}
	writeJSON(w, statusForKind(e.Kind), diagnosisErrorResponse{
		Error:          e.UserMessage(),
		Kind:           e.Kind,
		UpstreamStatus: e.StatusCode,
	})
}

// diagnoseInput is a validated request.
type diagnoseInput struct {
	vehicle   models.VehicleContext
	vehicleID *uuid.UUID
	codes     string
}

// resolveInput validates the request and resolves a garage vehicle. On
// failure it writes the response and returns false.
func (s *Server) resolveInput(w http.ResponseWriter, r *http.Request, req diagnoseRequest) (*diagnoseInput, bool) {
	codes := models.NormalizeCodes(req.Codes)
	if codes == "" {
		writeDiagnosisError(w, &diagnosis.Error{
			Kind:    diagnosis.KindEmptyInput,
			Message: "Please enter at least one error code.",
		})
		return nil, false
	}

	in := &diagnoseInput{vehicle: req.Vehicle, codes: codes}

	if id := strings.TrimSpace(req.VehicleID); id != "" {
		if s.store == nil || !auth.IsAuthenticated(r.Context()) {
			writeError(w, http.StatusUnauthorized, "sign in to use a saved vehicle")
			return nil, false
		}
		vehicleID, err := uuid.Parse(id)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid vehicle ID")
			return nil, false
		}
		user, ok := s.requireUser(w, r)
		if !ok {
			return nil, false
		}
		vehicle, err := s.store.GetVehicle(r.Context(), user.ID, vehicleID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "database error")
			return nil, false
		}
		if vehicle == nil {
			writeError(w, http.StatusNotFound, "vehicle not found")
			return nil, false
		}
		in.vehicle = vehicle.Context()
		in.vehicleID = &vehicle.ID
	}

	if !in.vehicle.IsComplete() {
		writeError(w, http.StatusBadRequest, vehicleRequiredMessage)
		return nil, false
	}
	return in, true
}

// handleDiagnose runs one diagnosis and returns the result as JSON.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, ok := s.resolveInput(w, r, req)
	if !ok {
		return
	}

	// Only requests that would reach the model are charged.
	if !s.limiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, rateLimitedMessage)
		return
	}

	result, err := s.diagnoser.DiagnoseWithProgress(r.Context(), in.vehicle, in.codes, nil)
	if err != nil {
		if diagnosis.IsKind(err, diagnosis.KindCanceled) {
			hlog.FromRequest(r).Info().Msg("client went away during diagnosis")
		}
		writeDiagnosisError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, diagnoseResponse{
		Diagnosis: result,
		ID:        s.recordDiagnosis(r, in, result),
	})
}

// handleDiagnoseStream runs one diagnosis and reports progress as Server-Sent
// Events, ending with a "done" or "error" event.
func (s *Server) handleDiagnoseStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := diagnoseRequest{
		Vehicle: models.VehicleContext{
			Year:  q.Get("year"),
			Make:  q.Get("make"),
			Model: q.Get("model"),
			Trim:  q.Get("trim"),
		},
		VehicleID: q.Get("vehicle_id"),
		Codes:     q.Get("codes"),
	}

	in, ok := s.resolveInput(w, r, req)
	if !ok {
		return
	}

	if !s.limiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, rateLimitedMessage)
		return
	}

	emitter := NewSSEEmitter(w)
	if emitter == nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stopKeepAlive := emitter.StartKeepAlive(s.keepAlive)
	result, err := s.diagnoser.DiagnoseWithProgress(r.Context(), in.vehicle, in.codes, emitter)
	stopKeepAlive()
	if err != nil {
		emitter.Emit(diagnosis.ErrorEvent(err))
		return
	}

	s.recordDiagnosis(r, in, result)
	emitter.Emit(diagnosis.ProgressEvent{Type: diagnosis.EventDone, Message: "Diagnosis complete", Diagnosis: result})
}

// recordDiagnosis stores the result for signed-in callers. Failures are
// logged and do not affect the response.
func (s *Server) recordDiagnosis(r *http.Request, in *diagnoseInput, result *models.DiagnosisResult) *uuid.UUID {
	if s.store == nil || !auth.IsAuthenticated(r.Context()) {
		return nil
	}
	log := hlog.FromRequest(r)

	user, err := s.getCurrentUser(r)
	if err != nil {
		log.Warn().Err(err).Msg("cannot record diagnosis: unknown user")
		return nil
	}

	// Record even when the caller has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()

	saved, err := s.store.CreateDiagnosis(ctx, database.CreateDiagnosisParams{
		UserID:    user.ID,
		VehicleID: in.vehicleID,
		Vehicle:   in.vehicle,
		Codes:     in.codes,
		Result:    result,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record diagnosis")
		return nil
	}
	return &saved.ID
}

func (s *Server) handleListDiagnoses(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	params := database.ListDiagnosesParams{UserID: user.ID}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		params.Limit = min(n, maxHistoryLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		params.Offset = n
	}
	if v := q.Get("vehicle_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid vehicle ID")
			return
		}
		params.VehicleID = &id
	}

	history, err := s.store.ListDiagnoses(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list diagnoses")
		return
	}

	resp := make([]historyResponse, 0, len(history))
	for i := range history {
		resp = append(resp, newHistoryResponse(&history[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDiagnosis(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	id, err := parseDiagnosisID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid diagnosis ID")
		return
	}

	d, err := s.store.GetDiagnosis(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "diagnosis not found")
		return
	}

	writeJSON(w, http.StatusOK, newHistoryResponse(d))
}
