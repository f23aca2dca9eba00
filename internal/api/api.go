// Package api provides the obdai HTTP API server.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/obdai/obdai/internal/auth"
	"github.com/obdai/obdai/internal/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server is the API server.
type Server struct {
	store     Store
	verifier  auth.Verifier
	issuer    *auth.Issuer
	diagnoser Diagnoser
	catalog   catalog.Lookup
	limiter   *clientLimiter
	keepAlive time.Duration
	logger    zerolog.Logger
	origin    string
	mux       *http.ServeMux
	handler   http.Handler
}

// Config holds API server configuration. Store, Verifier and Issuer may be
// nil, in which case account routes are not registered and diagnoses are not
// recorded.
type Config struct {
	Store     Store
	Verifier  auth.Verifier
	Issuer    *auth.Issuer
	Diagnoser Diagnoser
	Catalog   catalog.Lookup
	Logger    zerolog.Logger

	// CORSOrigin is sent as Access-Control-Allow-Origin; empty means "*".
	CORSOrigin string
	// RatePerMinute and Burst limit diagnose requests per client; zero disables.
	RatePerMinute float64
	Burst         int
	// KeepAlive is the interval between comment lines on an idle diagnosis
	// stream; zero means 15s.
	KeepAlive time.Duration
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	s := &Server{
		store:     cfg.Store,
		verifier:  cfg.Verifier,
		issuer:    cfg.Issuer,
		diagnoser: cfg.Diagnoser,
		catalog:   cfg.Catalog,
		limiter:   newClientLimiter(cfg.RatePerMinute, cfg.Burst),
		keepAlive: keepAlive,
		logger:    cfg.Logger,
		origin:    origin,
		mux:       http.NewServeMux(),
	}

	s.registerRoutes()
	s.handler = s.withLogging(s.mux)
	return s
}

func (s *Server) registerRoutes() {
	// Public endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/catalog/years", s.handleYears)
	if s.catalog != nil {
		s.mux.HandleFunc("GET /api/catalog/makes", s.handleMakes)
		s.mux.HandleFunc("GET /api/catalog/models", s.handleModels)
		s.mux.HandleFunc("GET /api/catalog/trims", s.handleTrims)
	}

	if s.store == nil || s.verifier == nil || s.issuer == nil {
		s.mux.HandleFunc("POST /api/diagnose", s.handleDiagnose)
		s.mux.HandleFunc("GET /api/diagnose/stream", s.handleDiagnoseStream)
		return
	}

	authMiddleware := auth.Middleware(s.verifier)
	optionalAuth := auth.OptionalMiddleware(s.verifier)

	s.mux.HandleFunc("POST /api/diagnose", s.withAuth(optionalAuth, s.handleDiagnose))
	s.mux.HandleFunc("GET /api/diagnose/stream", s.withAuth(optionalAuth, s.handleDiagnoseStream))

	// Account endpoints
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/sync", s.withAuth(authMiddleware, s.handleAuthSync))

	// Protected endpoints
	s.mux.HandleFunc("GET /api/me", s.withAuth(authMiddleware, s.handleGetMe))
	s.mux.HandleFunc("GET /api/vehicles", s.withAuth(authMiddleware, s.handleListVehicles))
	s.mux.HandleFunc("POST /api/vehicles", s.withAuth(authMiddleware, s.handleCreateVehicle))
	s.mux.HandleFunc("DELETE /api/vehicles/{vehicleID}", s.withAuth(authMiddleware, s.handleDeleteVehicle))
	s.mux.HandleFunc("GET /api/diagnoses", s.withAuth(authMiddleware, s.handleListDiagnoses))
	s.mux.HandleFunc("GET /api/diagnoses/{diagnosisID}", s.withAuth(authMiddleware, s.handleGetDiagnosis))
}

func (s *Server) withAuth(middleware func(http.Handler) http.Handler, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware(http.HandlerFunc(handler)).ServeHTTP(w, r)
	}
}

// withLogging attaches a request logger and request id, and logs one line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
	h = hlog.RequestIDHandler("request_id", "X-Request-Id")(h)
	return hlog.NewHandler(s.logger)(h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", s.origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
