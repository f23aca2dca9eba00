package api

import (
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/auth"
	"github.com/obdai/obdai/internal/database"
)

var (
	errNotAuthenticated = errors.New("not authenticated")
	errUserNotFound     = errors.New("user not found")
)

// getCurrentUser resolves the caller to a stored user. Provider tokens are
// matched by subject, with the account created on first use.
func (s *Server) getCurrentUser(r *http.Request) (*database.User, error) {
	ctx := r.Context()
	claims := auth.FromContext(ctx)
	if claims == nil {
		return nil, errNotAuthenticated
	}

	if claims.Provider {
		return s.store.GetOrCreateExternalUser(ctx, claims.Subject, claims.Email, claims.EmailVerified)
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errNotAuthenticated
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUserNotFound
	}
	return user, nil
}

// requireUser writes the error response and returns false when the caller
// cannot be resolved.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*database.User, bool) {
	user, err := s.getCurrentUser(r)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, errNotAuthenticated), errors.Is(err, errUserNotFound):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, database.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered to another account")
	default:
		writeError(w, http.StatusInternalServerError, "database error")
	}
	return nil, false
}

// parseVehicleID parses the vehicle ID from the path parameter.
func parseVehicleID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("vehicleID"))
}

// parseDiagnosisID parses the diagnosis ID from the path parameter.
func parseDiagnosisID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("diagnosisID"))
}

// clientKey identifies the caller for rate limiting: the account when signed
// in, otherwise the remote IP.
func clientKey(r *http.Request) string {
	if claims := auth.FromContext(r.Context()); claims != nil {
		if claims.UserID != "" {
			return "user:" + claims.UserID
		}
		return "sub:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
