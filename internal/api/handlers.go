package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/plugkit/internal/runlog"
)

// maxListLimit bounds GET /runs?limit=.
const maxListLimit = 500

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		PluginsLoaded: len(s.registry.All()),
	})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.All()
	resp := PluginListResponse{Plugins: make([]PluginResponse, 0, len(plugins))}
	for _, p := range plugins {
		resp.Plugins = append(resp.Plugins, pluginResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.registry.Get(chi.URLParam(r, "pluginID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "plugin not found")
		return
	}
	respondJSON(w, http.StatusOK, pluginResponse(p))
}

// handleListRuns handles GET /runs?plugin=&status=&limit=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := runlog.ListFilter{Plugin: q.Get("plugin")}

	if v := q.Get("status"); v != "" {
		status := runlog.Status(v)
		if status != runlog.StatusRunning && !status.Terminal() {
			s.writeError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(v))
			return
		}
		filter.Status = status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		filter.Limit = n
	}

	runs, err := s.runs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []runlog.Run{}
	}
	respondJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		s.writeRunError(w, runID, err)
		return
	}
	logs, err := s.runs.Logs(r.Context(), runID)
	if err != nil {
		s.writeRunError(w, runID, err)
		return
	}
	if logs == nil {
		logs = []runlog.LogEntry{}
	}
	respondJSON(w, http.StatusOK, RunResponse{Run: *run, Logs: logs})
}

func (s *Server) handleGetRunLogs(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.runs.Get(r.Context(), runID); err != nil {
		s.writeRunError(w, runID, err)
		return
	}
	logs, err := s.runs.Logs(r.Context(), runID)
	if err != nil {
		s.writeRunError(w, runID, err)
		return
	}
	if logs == nil {
		logs = []runlog.LogEntry{}
	}
	respondJSON(w, http.StatusOK, RunLogsResponse{RunID: runID, Logs: logs})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.registry.All()))
}

func (s *Server) writeRunError(w http.ResponseWriter, runID string, err error) {
	if errors.Is(err, runlog.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.logger.Error("failed to load run", "run_id", runID, "error", err)
	s.writeError(w, http.StatusInternalServerError, "failed to load run")
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
