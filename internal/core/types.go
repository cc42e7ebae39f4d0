// Package core provides the business logic for converting ShotGrid task
// exports into OMC Task documents. This package has no UI dependencies and
// can be used by any frontend.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TaskRow is one normalized source row from a ShotGrid task export.
// Cells arrive cleaned (CleanCell); an empty string means the column was
// missing or blank, i.e. the field was not provided. ID is the only field
// a row cannot exist without.
type TaskRow struct {
	ID           int64
	TaskName     string
	Link         string
	PipelineStep string
	Status       string
	AssignedTo   string
	Reviewer     string
	StartDate    string
	DueDate      string
	ShotStatus   string
	Project      string
	Thumbnail    string
}

// RawCopyPolicy selects how the original source row is embedded in each
// entity's customData.
type RawCopyPolicy string

const (
	// RawCopyVerbatim embeds the row as a nested object with every source
	// column present, null for columns the row did not provide.
	RawCopyVerbatim RawCopyPolicy = "verbatim"

	// RawCopyEncoded embeds the row as one compact JSON-encoded string with
	// absent columns omitted.
	RawCopyEncoded RawCopyPolicy = "encoded"
)

// ParseRawCopyPolicy validates a policy string from config or a request.
func ParseRawCopyPolicy(s string) (RawCopyPolicy, error) {
	switch RawCopyPolicy(s) {
	case RawCopyVerbatim, RawCopyEncoded:
		return RawCopyPolicy(s), nil
	}
	return "", fmt.Errorf("unknown raw copy policy %q (want %q or %q)", s, RawCopyVerbatim, RawCopyEncoded)
}

// ConversionPhase indicates the current stage of a conversion run.
type ConversionPhase string

const (
	PhaseStarting     ConversionPhase = "starting"
	PhaseReading      ConversionPhase = "reading"
	PhaseTransforming ConversionPhase = "transforming"
	PhaseEncoding     ConversionPhase = "encoding"
	PhaseComplete     ConversionPhase = "complete"
	PhaseFailed       ConversionPhase = "failed"
	PhaseCancelled    ConversionPhase = "cancelled"
)

// Terminal reports whether the phase is a final state.
func (p ConversionPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// ConversionProgress represents the current state of a conversion run.
type ConversionProgress struct {
	RunID      string          `json:"runId"`
	Phase      ConversionPhase `json:"phase"`
	FileName   string          `json:"fileName"`
	TotalRows  int             `json:"totalRows"`
	CurrentRow int             `json:"currentRow"`
	Converted  int             `json:"converted"`
	Skipped    int             `json:"skipped"`
	Error      string          `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
	// Byte-based progress while reading (rows are not counted yet).
	BytesRead  int64 `json:"bytesRead,omitempty"`
	BytesTotal int64 `json:"bytesTotal,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
// Uses row-based progress once TotalRows is known, otherwise falls back to
// byte-based progress from the reading phase.
func (p ConversionProgress) Percent() int {
	if p.TotalRows > 0 {
		return (p.CurrentRow * 100) / p.TotalRows
	}
	if p.BytesTotal > 0 {
		return int((p.BytesRead * 100) / p.BytesTotal)
	}
	return 0
}

// ConversionResult contains the final result of a conversion run.
type ConversionResult struct {
	RunID       string          `json:"runId"`
	FileName    string          `json:"fileName"`
	Policy      RawCopyPolicy   `json:"policy"`
	TotalRows   int             `json:"totalRows"`
	Converted   int             `json:"converted"`
	Skipped     int             `json:"skipped"`
	Stats       ConversionStats `json:"stats"`
	OutputBytes int64           `json:"outputBytes"`
	OutputSize  string          `json:"outputSize"` // humanized, for display
	ExportPath  string          `json:"exportPath,omitempty"`
	DurationMs  int64           `json:"durationMs"`
	Error       string          `json:"error,omitempty"` // Non-empty if the run failed

	Duration time.Duration `json:"-"`
}

// VerificationResult records the outcome of submitting a run's document to
// the external schema checker. The report is kept as returned; the core
// never interprets it beyond the classified outcome.
type VerificationResult struct {
	Outcome   string          `json:"outcome"`
	Report    json.RawMessage `json:"report,omitempty"`
	CheckedAt time.Time       `json:"checkedAt"`
}
