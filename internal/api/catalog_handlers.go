package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/obdai/obdai/internal/catalog"
	"github.com/rs/zerolog/hlog"
)

type optionsResponse struct {
	Options []string `json:"options"`
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{Options: catalog.Years(time.Now())})
}

func (s *Server) handleMakes(w http.ResponseWriter, r *http.Request) {
	year, ok := requireParams(w, r, "year")
	if !ok {
		return
	}
	makes, err := s.catalog.Makes(r.Context(), year[0])
	s.writeOptions(w, r, makes, err)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	p, ok := requireParams(w, r, "year", "make")
	if !ok {
		return
	}
	models, err := s.catalog.Models(r.Context(), p[0], p[1])
	s.writeOptions(w, r, models, err)
}

func (s *Server) handleTrims(w http.ResponseWriter, r *http.Request) {
	p, ok := requireParams(w, r, "year", "make", "model")
	if !ok {
		return
	}
	trims, err := s.catalog.Trims(r.Context(), p[0], p[1], p[2])
	s.writeOptions(w, r, trims, err)
}

func (s *Server) writeOptions(w http.ResponseWriter, r *http.Request, options []string, err error) {
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("query", r.URL.RawQuery).Msg("catalog lookup failed")
		writeError(w, http.StatusBadGateway, "vehicle catalog unavailable")
		return
	}
	if options == nil {
		options = []string{}
	}
	writeJSON(w, http.StatusOK, optionsResponse{Options: options})
}

// requireParams returns the trimmed query values in order, or writes a 400
// naming the first one missing.
func requireParams(w http.ResponseWriter, r *http.Request, names ...string) ([]string, bool) {
	q := r.URL.Query()
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = strings.TrimSpace(q.Get(name))
		if values[i] == "" {
			writeError(w, http.StatusBadRequest, name+" is required")
			return nil, false
		}
	}
	return values, true
}
