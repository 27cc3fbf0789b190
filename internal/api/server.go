// Package api serves analysis results over HTTP: run summary, per-chunk
// artifacts, and rendered reports. Read-only; runs are started from the CLI.
package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes one output directory.
type Server struct {
	router chi.Router
	dir    string
	apiKey string
	log    *slog.Logger
}

// NewServer creates the HTTP server over an output directory. With an empty
// apiKey the API endpoints are open; otherwise they require a bearer token.
func NewServer(dir, apiKey string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{dir: dir, apiKey: apiKey, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(AuthMiddleware(s.apiKey, s.log))
		}

		r.Get("/api/run", s.handleRun)
		r.Get("/api/chunks", s.handleListChunks)
		r.Get("/api/chunks/{index}", s.handleGetChunk)
		r.Get("/schema", s.handleSchema)
		r.Get("/report", s.handleReport)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
