package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
)

// ModuleState is a module as reported by the daemon.
type ModuleState struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Version string `json:"version"`
	Dirty   bool   `json:"dirty"`
}

// Backend supplies the project state the daemon reports.
type Backend interface {
	ModuleCount() int
	Modules(ctx context.Context) ([]ModuleState, error)
	Invalidations() int64
	Result(ctx context.Context, key domain.TaskKey) (*domain.StoredResult, error)
}

// Handler returns the HTTP API. Every request counts as activity.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.touch)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/modules", s.handleModules)
		r.Get("/results/{key}", s.handleResult)
		r.Post("/shutdown", s.handleShutdown)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Status reports the daemon's current state.
func (s *Server) Status() *ports.DaemonStatus {
	return &ports.DaemonStatus{
		Running:       true,
		PID:           os.Getpid(),
		Uptime:        s.lifecycle.Uptime(),
		LastActivity:  s.lifecycle.LastActivity(),
		IdleRemaining: s.lifecycle.IdleRemaining(),
		Modules:       s.backend.ModuleCount(),
		Invalidations: s.backend.Invalidations(),
	}
}

func (s *Server) touch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lifecycle.ResetTimer()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	modules, err := s.backend.Modules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, modules)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "key")
	if _, _, err := domain.ParseTaskKey(raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.backend.Result(r.Context(), domain.TaskKey(raw))
	switch {
	case errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.logger.Info("shutdown requested")
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
	s.lifecycle.Shutdown()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
