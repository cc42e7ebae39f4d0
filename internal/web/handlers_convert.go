package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stagepipe/omcbridge/internal/core"
)

// readSourceFile extracts the uploaded CSV from a multipart request. The
// bytes are buffered in full: the multipart temp file is removed when the
// handler returns, while a conversion run keeps reading in the background.
func (s *Server) readSourceFile(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	maxSize := s.cfg.Convert.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, "", fmt.Errorf("file too large or invalid form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("no file provided")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return data, header.Filename, nil
}

// handleConvert starts an asynchronous conversion run over the uploaded
// ShotGrid export and returns its run ID.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, fileName, err := s.readSourceFile(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	policy := core.RawCopyPolicy(r.FormValue("policy"))

	ctx := WithRequestMetadata(r.Context(), r)
	runID, err := s.service.StartConversion(ctx, fileName, bytes.NewReader(data), int64(len(data)), policy)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, core.ErrTooManyConversions):
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", "30")
		case strings.Contains(err.Error(), "file too large"):
			status = http.StatusRequestEntityTooLarge
		}
		s.respondError(w, r, err, status)
		return
	}

	writeJSON(w, map[string]string{"run_id": runID})
}

// handlePreview analyzes an export and reports what a conversion would
// produce, without starting a run.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.readSourceFile(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := core.AnalyzeSource(data)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, result)
}

// handleConvertProgress streams conversion progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleConvertProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - run complete or cancelled
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			currentPercent := progress.Percent()

			// Skip events that were already sent (for resumption)
			if lastEventIDStr != "" && currentPercent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", currentPercent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancelConvert cancels an in-progress conversion run.
func (s *Server) handleCancelConvert(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.CancelRun(ctx, runID); err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"cancelled"}`))
}

// handleConvertResult returns the final result of a conversion run.
// Blocks until the run finishes.
func (s *Server) handleConvertResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	result, err := s.service.GetRunResult(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, result)
}

// handleDownloadDocument serves the produced OMC document as a download.
func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	document, name, err := s.service.GetRunDocument(ctx, runID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrRunNotFound):
			s.respondError(w, r, err, http.StatusNotFound)
		case strings.Contains(err.Error(), "still running"),
			strings.Contains(err.Error(), "produced no document"):
			s.respondError(w, r, err, http.StatusConflict)
		default:
			s.respondError(w, r, err, http.StatusInternalServerError)
		}
		return
	}

	s.service.LogAudit(ctx, core.AuditLogParams{
		Action:   core.ActionExport,
		RunID:    runID,
		FileName: name,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Write(document)
}

// handleVerifyRun submits a finished run's document to the external schema
// checker and returns the classified outcome.
func (s *Server) handleVerifyRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.VerifyRun(ctx, runID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrRunNotFound):
			s.respondError(w, r, err, http.StatusNotFound)
		case strings.Contains(err.Error(), "still running"),
			strings.Contains(err.Error(), "produced no document"):
			s.respondError(w, r, err, http.StatusConflict)
		case strings.Contains(err.Error(), "not configured"):
			s.respondError(w, r, err, http.StatusServiceUnavailable)
		default:
			// Checker unreachable, error status, or malformed report
			s.respondError(w, r, err, http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, result)
}
