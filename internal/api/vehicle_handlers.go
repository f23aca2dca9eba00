package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/database"
	"github.com/obdai/obdai/pkg/models"
)

// maxGarageSize caps how many vehicles one account may save.
const maxGarageSize = 50

type vehicleRequest struct {
	Year     string `json:"year"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Trim     string `json:"trim"`
	Nickname string `json:"nickname"`
}

type vehicleResponse struct {
	ID        uuid.UUID `json:"id"`
	Year      string    `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Trim      string    `json:"trim,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newVehicleResponse(v *database.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:        v.ID,
		Year:      v.Year,
		Make:      v.Make,
		Model:     v.Model,
		Trim:      v.Trim,
		Nickname:  v.Nickname,
		CreatedAt: v.CreatedAt,
	}
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	vehicles, err := s.store.ListVehicles(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list vehicles")
		return
	}

	resp := make([]vehicleResponse, 0, len(vehicles))
	for i := range vehicles {
		resp = append(resp, newVehicleResponse(&vehicles[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req vehicleRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v := models.VehicleContext{
		Year:  strings.TrimSpace(req.Year),
		Make:  strings.TrimSpace(req.Make),
		Model: strings.TrimSpace(req.Model),
		Trim:  strings.TrimSpace(req.Trim),
	}
	if !v.IsComplete() {
		writeError(w, http.StatusBadRequest, vehicleRequiredMessage)
		return
	}

	count, err := s.store.CountVehicles(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if count >= maxGarageSize {
		writeError(w, http.StatusConflict, "garage is full")
		return
	}

	vehicle, err := s.store.CreateVehicle(r.Context(), database.CreateVehicleParams{
		UserID:   user.ID,
		Year:     v.Year,
		Make:     v.Make,
		Model:    v.Model,
		Trim:     v.Trim,
		Nickname: strings.TrimSpace(req.Nickname),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save vehicle")
		return
	}

	writeJSON(w, http.StatusCreated, newVehicleResponse(vehicle))
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	id, err := parseVehicleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vehicle ID")
		return
	}

	deleted, err := s.store.DeleteVehicle(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete vehicle")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
