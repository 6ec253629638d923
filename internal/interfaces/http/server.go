package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quantfort/riskgov/internal/application"
	"github.com/quantfort/riskgov/internal/config"
)

// Server exposes the engine's operations over JSON. It is an internal
// service surface for collaborating services, not a public API: no auth,
// no rate tiers, bind it to a private interface.
type Server struct {
	router *mux.Router
	server *http.Server
	eng    *application.Engine
}

// NewServer builds the HTTP server around an engine.
func NewServer(cfg config.ServerConfig, eng *application.Engine) *Server {
	s := &Server{
		router: mux.NewRouter(),
		eng:    eng,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/regime/classify", s.handleClassifyRegime).Methods("POST")
	api.HandleFunc("/workspaces/{workspace}/flow", s.handleComputeFlow).Methods("POST")
	api.HandleFunc("/workspaces/{workspace}/evaluate", s.handleEvaluate).Methods("POST")
	api.HandleFunc("/workspaces/{workspace}/guard", s.handleGuardState).Methods("GET")
	api.HandleFunc("/workspaces/{workspace}/guard/disable", s.handleGuardDisable).Methods("POST")
	api.HandleFunc("/workspaces/{workspace}/guard/cancel", s.handleGuardCancel).Methods("POST")
	api.HandleFunc("/workspaces/{workspace}/guard/enable", s.handleGuardEnable).Methods("POST")
	api.HandleFunc("/workspaces/{workspace}/evolve", s.handleEvolve).Methods("POST")
	api.HandleFunc("/packets/fingerprint", s.handleFingerprint).Methods("POST")
	api.HandleFunc("/weights", s.handleWeights).Methods("GET")
}

// Handler returns the routed handler; tests drive it through httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
