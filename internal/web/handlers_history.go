package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stagepipe/omcbridge/internal/core"
)

// handleListRuns returns persisted conversion history, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.service.Status().Persistence {
		s.respondError(w, r, errors.New("conversion history not configured"), http.StatusServiceUnavailable)
		return
	}

	page := parseIntParam(r, "page", 1)
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)

	runs, err := s.service.ListRuns(r.Context(), limit, (page-1)*limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"runs":  runs,
		"page":  page,
		"limit": limit,
	})
}

// handleGetRun returns a single persisted run record.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	run, err := s.service.GetRunRecord(r.Context(), runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}

	writeJSON(w, run)
}

// handleAuditLog returns audit entries with filtering and pagination.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if !s.service.Status().Persistence {
		s.respondError(w, r, errors.New("conversion history not configured"), http.StatusServiceUnavailable)
		return
	}

	page := parseIntParam(r, "page", 1)
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)

	filter := core.AuditLogFilter{
		RunID:  r.URL.Query().Get("run_id"),
		Action: core.AuditAction(r.URL.Query().Get("action")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	entries, err := s.service.GetAuditLog(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	writeJSON(w, map[string]any{
		"entries": entries,
		"page":    page,
		"limit":   limit,
	})
}
