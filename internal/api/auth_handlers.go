package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/auth"
	"github.com/obdai/obdai/internal/database"
	"github.com/rs/zerolog/hlog"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	ExternalID   string    `json:"external_id,omitempty"`
	HasPassword  bool      `json:"has_password"`
	CreatedAt    time.Time `json:"created_at"`
	VehicleCount *int      `json:"vehicle_count,omitempty"`
	// LatestVehicle is the most recently saved garage vehicle.
	LatestVehicle *vehicleResponse `json:"latest_vehicle,omitempty"`
}

func newUserResponse(u *database.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		ExternalID:  u.ExternalID,
		HasPassword: u.HasPassword(),
		CreatedAt:   u.CreatedAt,
	}
}

// handleRegister creates a password account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if err := auth.ValidateCredentials(email, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("password hashing failed")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	if _, err := s.store.CreateUser(r.Context(), email, hash); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email is already registered")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("registration failed")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

// handleLogin exchanges email and password for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), auth.NormalizeEmail(req.Email))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if user == nil || !user.HasPassword() || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.issuer.Issue(user.ID.String(), user.Email)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("token signing failed")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"message": "Logged in successfully",
	})
}

// handleAuthSync links an identity provider session to a stored user.
// Clients call it after provider sign-in.
func (s *Server) handleAuthSync(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if claims.Provider && claims.Email == "" {
		writeError(w, http.StatusBadRequest, "email not available in token")
		return
	}

	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// handleGetMe returns the current user's information and garage summary.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	vehicles, err := s.store.ListVehicles(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list vehicles")
		return
	}

	resp := newUserResponse(user)
	count := len(vehicles)
	resp.VehicleCount = &count
	if count > 0 {
		latest := newVehicleResponse(&vehicles[0])
		resp.LatestVehicle = &latest
	}

	writeJSON(w, http.StatusOK, resp)
}
