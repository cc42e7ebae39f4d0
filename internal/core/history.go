package core

// history.go persists finished conversion runs so documents and their
// outcomes survive restarts. Persistence is optional: with no database
// configured the service keeps runs in memory for their retention window
// and every Store path is skipped.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrRunNotFound is returned when a run id matches nothing, live or
// persisted.
var ErrRunNotFound = errors.New("conversion not found")

// DefaultHistoryLimit caps list queries when the caller does not specify one.
const DefaultHistoryLimit = 50

// ConversionRun is one persisted run record. Document holds the full OMC
// JSON and is only populated by GetRun; listings leave it nil.
type ConversionRun struct {
	ID           string              `json:"id"`
	FileName     string              `json:"fileName"`
	Policy       RawCopyPolicy       `json:"policy"`
	Phase        ConversionPhase     `json:"phase"`
	TotalRows    int                 `json:"totalRows"`
	Converted    int                 `json:"converted"`
	Skipped      int                 `json:"skipped"`
	Stats        *ConversionStats    `json:"stats,omitempty"`
	OutputBytes  int64               `json:"outputBytes"`
	ExportPath   string              `json:"exportPath,omitempty"`
	DurationMs   int64               `json:"durationMs"`
	Error        string              `json:"error,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`

	Document []byte `json:"-"`
}

// Store wraps the database handle for run history and audit persistence.
type Store struct {
	db DBTX
}

// NewStore creates a store over a pool or transaction.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// schemaSQL bootstraps the two tables on startup. Statements are idempotent
// so every boot can run them.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversion_runs (
	id UUID PRIMARY KEY,
	file_name TEXT NOT NULL,
	policy TEXT NOT NULL,
	phase TEXT NOT NULL,
	total_rows INT NOT NULL DEFAULT 0,
	converted INT NOT NULL DEFAULT 0,
	skipped INT NOT NULL DEFAULT 0,
	stats JSONB,
	output_bytes BIGINT NOT NULL DEFAULT 0,
	export_path TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error TEXT,
	document BYTEA,
	verification JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS conversion_runs_created_at_idx
	ON conversion_runs (created_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id UUID PRIMARY KEY,
	action TEXT NOT NULL,
	severity TEXT NOT NULL,
	run_id UUID,
	file_name TEXT,
	ip_address TEXT,
	user_agent TEXT,
	detail TEXT,
	rows_affected INT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS audit_log_created_at_idx
	ON audit_log (created_at DESC);
`

// EnsureSchema creates the history tables if they do not exist yet.
func (st *Store) EnsureSchema(ctx context.Context) error {
	if _, err := st.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const insertRunSQL = `
INSERT INTO conversion_runs
	(id, file_name, policy, phase, total_rows, converted, skipped, stats,
	 output_bytes, export_path, duration_ms, error, document, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// InsertRun persists a finished run, including its document.
func (st *Store) InsertRun(ctx context.Context, run *ConversionRun) error {
	var statsJSON []byte
	if run.Stats != nil {
		var err error
		statsJSON, err = json.Marshal(run.Stats)
		if err != nil {
			return fmt.Errorf("marshal run stats: %w", err)
		}
	}

	_, err := st.db.Exec(ctx, insertRunSQL,
		toPgUUID(run.ID),
		run.FileName,
		string(run.Policy),
		string(run.Phase),
		run.TotalRows,
		run.Converted,
		run.Skipped,
		statsJSON,
		run.OutputBytes,
		toPgText(run.ExportPath),
		run.DurationMs,
		toPgText(run.Error),
		run.Document,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion run: %w", err)
	}
	return nil
}

// RecordVerification attaches a verification outcome to a persisted run.
func (st *Store) RecordVerification(ctx context.Context, runID string, v *VerificationResult) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	tag, err := st.db.Exec(ctx,
		`UPDATE conversion_runs SET verification = $2 WHERE id = $1`,
		toPgUUID(runID), payload)
	if err != nil {
		return fmt.Errorf("record verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

const listRunsSQL = `
SELECT id, file_name, policy, phase, total_rows, converted, skipped, stats,
       output_bytes, export_path, duration_ms, error, verification, created_at
FROM conversion_runs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

// ListRuns returns persisted runs newest first, without their documents.
func (st *Store) ListRuns(ctx context.Context, limit, offset int) ([]ConversionRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := st.db.Query(ctx, listRunsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversion runs: %w", err)
	}
	defer rows.Close()

	var runs []ConversionRun
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const getRunSQL = `
SELECT id, file_name, policy, phase, total_rows, converted, skipped, stats,
       output_bytes, export_path, duration_ms, error, verification, created_at,
       document
FROM conversion_runs
WHERE id = $1`

// GetRun fetches one persisted run with its document.
func (st *Store) GetRun(ctx context.Context, id string) (*ConversionRun, error) {
	row := st.db.QueryRow(ctx, getRunSQL, toPgUUID(id))
	run, err := scanRun(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// PurgeRunsBefore deletes runs older than the cutoff and reports how many
// were removed.
func (st *Store) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := st.db.Exec(ctx, `DELETE FROM conversion_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge conversion runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountRuns returns the number of persisted runs.
func (st *Store) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	if err := st.db.QueryRow(ctx, `SELECT count(*) FROM conversion_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conversion runs: %w", err)
	}
	return count, nil
}

func scanRun(row rowScanner, withDocument bool) (ConversionRun, error) {
	var (
		id           pgtype.UUID
		policy       string
		phase        string
		statsJSON    []byte
		exportPath   pgtype.Text
		runErr       pgtype.Text
		verification []byte
		run          ConversionRun
	)

	dest := []any{
		&id, &run.FileName, &policy, &phase, &run.TotalRows, &run.Converted,
		&run.Skipped, &statsJSON, &run.OutputBytes, &exportPath,
		&run.DurationMs, &runErr, &verification, &run.CreatedAt,
	}
	if withDocument {
		dest = append(dest, &run.Document)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversionRun{}, err
		}
		return ConversionRun{}, fmt.Errorf("scan conversion run: %w", err)
	}

	run.ID = uuidToString(id)
	run.Policy = RawCopyPolicy(policy)
	run.Phase = ConversionPhase(phase)
	if exportPath.Valid {
		run.ExportPath = exportPath.String
	}
	if runErr.Valid {
		run.Error = runErr.String
	}
	if len(statsJSON) > 0 {
		var stats ConversionStats
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			return ConversionRun{}, fmt.Errorf("decode run stats: %w", err)
		}
		run.Stats = &stats
	}
	if len(verification) > 0 {
		var v VerificationResult
		if err := json.Unmarshal(verification, &v); err != nil {
			return ConversionRun{}, fmt.Errorf("decode verification: %w", err)
		}
		run.Verification = &v
	}
	return run, nil
}
