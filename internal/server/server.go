// Package server provides the HTTP and WebSocket surface for the Mudra
// gesture session engine.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/assets"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/infer"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/training"
)

// Config holds the server configuration. Dataset, Registry, Engine and
// Orchestrator are required; the rest are optional surfaces.
type Config struct {
	StaticDir    string
	Store        *store.Store
	Dataset      *dataset.Store
	Registry     *assets.Registry
	Engine       *infer.Engine
	Orchestrator *training.Orchestrator
	Camera       capture.Camera
}

// Server is the HTTP server for the Mudra application.
type Server struct {
	config   Config
	mux      *http.ServeMux
	sessions *SessionHandler
	start    time.Time
}

// New creates a Server and wires the training orchestrator's progress
// events into the session broadcast channel.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}

	s.sessions = NewSessionHandler(SessionConfig{
		Dataset:      config.Dataset,
		Registry:     config.Registry,
		Engine:       config.Engine,
		Orchestrator: config.Orchestrator,
		Store:        config.Store,
	})
	if config.Orchestrator != nil {
		config.Orchestrator.SetNotify(s.sessions.NotifyTraining)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.Handle("/ws", s.sessions)

	if s.config.Store != nil {
		bindingHandler := api.NewBindingHandler(s.config.Store)
		s.mux.Handle("/api/bindings", bindingHandler)
		s.mux.Handle("/api/bindings/", bindingHandler)

		runHandler := api.NewRunHandler(s.config.Store)
		s.mux.Handle("/api/runs", runHandler)
	}

	// Camera preview is only available when a camera is configured.
	if s.config.Camera != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Camera))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, modelReady := s.config.Registry.Current()

	response := map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(s.start).String(),
		"model_ready": modelReady,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
