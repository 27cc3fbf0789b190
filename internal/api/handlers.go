package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sqldigest/internal/pipeline"
	"sqldigest/internal/report"
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// openStore rescans the directory on every request so artifacts committed by
// a run in progress show up without restarting the server.
func (s *Server) openStore(w http.ResponseWriter) *pipeline.FSStore {
	store, err := pipeline.OpenFSStore(s.dir, s.log)
	if err != nil {
		jsonError(w, "open output dir: "+err.Error(), http.StatusInternalServerError)
		return nil
	}
	return store
}

// handleRun serves the summary persisted by the last invocation.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.dir, "run.json"))
	if err != nil {
		jsonError(w, "no run summary yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	store := s.openStore(w)
	if store == nil {
		return
	}
	indices := store.Indices()
	if indices == nil {
		indices = []int{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(indices),
		"indices": indices,
	})
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		jsonError(w, "invalid chunk index", http.StatusBadRequest)
		return
	}

	store := s.openStore(w)
	if store == nil {
		return
	}
	if !store.Done(index) {
		jsonError(w, "chunk not analyzed", http.StatusNotFound)
		return
	}
	text, err := store.Load(index)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

// handleSchema renders schema.md from the output directory as HTML.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	md, err := os.ReadFile(filepath.Join(s.dir, "schema.md"))
	if err != nil {
		jsonError(w, "schema report not generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, "Database Schema", md); err != nil {
		s.log.Error("render schema html", "error", err)
	}
}

// handleReport stitches the artifacts into the combined document and renders
// it as HTML.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	store := s.openStore(w)
	if store == nil {
		return
	}

	var md bytes.Buffer
	if err := report.WriteCombined(&md, store, 0); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, "Combined Analysis", md.Bytes()); err != nil {
		s.log.Error("render report html", "error", err)
	}
}
