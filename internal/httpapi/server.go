// Package httpapi exposes the planning service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"transfer-planner/internal/domain"
	"transfer-planner/internal/runner"
)

// RunStore lists finished runs. Satisfied by history.Store.
type RunStore interface {
	Recent(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Diagnoser runs health checks. Satisfied by diagnostics.Checker.
type Diagnoser interface {
	Run(ctx context.Context) domain.DiagnosticReport
}

type Server struct {
	Runner       *runner.Runner
	Runs         RunStore // optional
	Checker      Diagnoser
	OutputDir    string
	HistoryLimit int
}

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Get("/status", s.handleStatus)
		r.Get("/download/{file}", s.handleDownload)
		r.Delete("/reset", s.handleReset)
		r.Get("/runs", s.handleRuns)
		r.Get("/diagnostics", s.handleDiagnostics)
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	params := domain.DefaultParameters()
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	if err := params.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	if err := s.Runner.Start(params); err != nil {
		if errors.Is(err, runner.ErrBusy) {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

func (s Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Runner.Status()
	if st.OutputFiles == nil {
		st.OutputFiles = []string{}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	clean := filepath.Clean(name)
	if clean != name || clean == "." || strings.ContainsAny(clean, "/\\") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid file name"))
		return
	}

	path := filepath.Join(s.OutputDir, clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeErr(w, http.StatusNotFound, fmt.Errorf("file not found: %s", clean))
		return
	}

	if strings.EqualFold(filepath.Ext(clean), ".xlsx") {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clean))
	http.ServeFile(w, r, path)
}

func (s Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Runner.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func (s Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		writeJSON(w, http.StatusOK, []domain.RunRecord{})
		return
	}

	limit := s.HistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", raw))
			return
		}
		if value > 200 {
			value = 200
		}
		limit = value
	}

	runs, err := s.Runs.Recent(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.Checker == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("diagnostics are not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.Checker.Run(r.Context()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
