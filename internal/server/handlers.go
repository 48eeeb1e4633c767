package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/search"
)

const defaultRunsLimit = 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("k", query.K))
	response, err := s.service.Query(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type documentResponse struct {
	Position int `json:"position"`
	models.DocumentRecord
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "position must be an integer")
		return
	}
	rec, err := s.service.Record(pos)
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, documentResponse{Position: pos, DocumentRecord: rec})
}

type statusResponse struct {
	search.Status
	LastRun        *models.IngestRun `json:"last_run,omitempty"`
	DiskUsageBytes *int64            `json:"disk_usage_bytes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: s.service.Status()}
	if s.runs != nil {
		run, err := s.runs.LatestRun(r.Context())
		if err == nil {
			resp.LastRun = run
		} else {
			s.logger.Debug("status: no ingest run", zap.Error(err))
		}
		if du, ok := s.runs.(interface{ DiskUsage() (int64, error) }); ok {
			if n, err := du.DiskUsage(); err == nil {
				resp.DiskUsageBytes = &n
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, http.StatusNotImplemented, "not_enabled", "run log not enabled")
		return
	}
	run, err := s.runs.LatestRun(r.Context())
	if err != nil {
		s.fail(w, "latest run failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, http.StatusNotImplemented, "not_enabled", "run log not enabled")
		return
	}
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get run failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, http.StatusNotImplemented, "not_enabled", "run log not enabled")
		return
	}
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, "list runs failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Healthy(); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "aborted", "error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status, kind := errorKind(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.String("kind", kind), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.String("kind", kind), zap.Error(err))
	}
	s.respondError(w, status, kind, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, kind, message string) {
	s.respondJSON(w, status, map[string]string{"error": message, "kind": kind})
}
