package core

// audit.go records who did what to which conversion run. Entries go to the
// audit_log table when history persistence is configured; without a database
// the service runs fine and auditing is simply disabled.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionConvert       AuditAction = "convert"
	ActionConvertCancel AuditAction = "convert_cancel"
	ActionExport        AuditAction = "export"
	ActionVerify        AuditAction = "verify"
	ActionHistoryPurge  AuditAction = "history_purge"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionConvertCancel, ActionVerify:
		return SeverityLow
	case ActionHistoryPurge:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// AuditEntry is a single audit log record.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	RunID        string        `json:"runId,omitempty"`
	FileName     string        `json:"fileName,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogParams contains the caller-supplied fields of a new entry.
// IP address and user agent are taken from the context when present.
type AuditLogParams struct {
	Action       AuditAction
	RunID        string
	FileName     string
	Detail       string
	RowsAffected int
}

// AuditLogFilter restricts audit queries.
type AuditLogFilter struct {
	RunID  string
	Action AuditAction
	Limit  int
	Offset int
}

const insertAuditSQL = `
INSERT INTO audit_log (id, action, severity, run_id, file_name, ip_address, user_agent, detail, rows_affected, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const auditColumns = `id, action, severity, run_id, file_name, ip_address, user_agent, detail, rows_affected, created_at`

// InsertAudit persists a fully built entry.
func (st *Store) InsertAudit(ctx context.Context, entry *AuditEntry) error {
	_, err := st.db.Exec(ctx, insertAuditSQL,
		toPgUUID(entry.ID),
		string(entry.Action),
		string(entry.Severity),
		toPgUUID(entry.RunID),
		toPgText(entry.FileName),
		toPgText(entry.IPAddress),
		toPgText(entry.UserAgent),
		toPgText(entry.Detail),
		toPgInt4(entry.RowsAffected),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns entries newest first, optionally filtered by run or
// action.
func (st *Store) ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log`
	var conds []string
	var args []any
	if filter.RunID != "" {
		args = append(args, toPgUUID(filter.RunID))
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := st.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountAudit returns the number of entries matching the filter.
func (st *Store) CountAudit(ctx context.Context, filter AuditLogFilter) (int64, error) {
	query := `SELECT count(*) FROM audit_log`
	var conds []string
	var args []any
	if filter.RunID != "" {
		args = append(args, toPgUUID(filter.RunID))
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var count int64
	if err := st.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit log: %w", err)
	}
	return count, nil
}

// StreamAudit walks entries matching the filter oldest first, calling fn
// for each row. Streaming avoids holding a full export in memory.
func (st *Store) StreamAudit(ctx context.Context, filter AuditLogFilter, fn func(AuditEntry) error) error {
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	var conds []string
	var args []any
	if filter.RunID != "" {
		args = append(args, toPgUUID(filter.RunID))
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := st.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

// PurgeAuditBefore deletes entries older than the cutoff and reports how
// many were removed.
func (st *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := st.db.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (AuditEntry, error) {
	var (
		id        pgtype.UUID
		runID     pgtype.UUID
		action    string
		severity  string
		fileName  pgtype.Text
		ip        pgtype.Text
		ua        pgtype.Text
		detail    pgtype.Text
		affected  pgtype.Int4
		createdAt time.Time
	)
	err := row.Scan(&id, &action, &severity, &runID, &fileName, &ip, &ua, &detail, &affected, &createdAt)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	entry := AuditEntry{
		ID:        uuidToString(id),
		Action:    AuditAction(action),
		Severity:  AuditSeverity(severity),
		RunID:     uuidToString(runID),
		CreatedAt: createdAt,
	}
	if fileName.Valid {
		entry.FileName = fileName.String
	}
	if ip.Valid {
		entry.IPAddress = ip.String
	}
	if ua.Valid {
		entry.UserAgent = ua.String
	}
	if detail.Valid {
		entry.Detail = detail.String
	}
	if affected.Valid {
		entry.RowsAffected = int(affected.Int32)
	}
	return entry, nil
}

// LogAudit records an action against the audit log. It is a no-op when
// history persistence is not configured. Client IP and User-Agent are pulled
// from the context when the web layer has attached them.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	if s.store == nil {
		return nil, nil
	}

	entry := &AuditEntry{
		ID:           uuid.New().String(),
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		RunID:        params.RunID,
		FileName:     params.FileName,
		IPAddress:    ClientIPFromContext(ctx),
		UserAgent:    UserAgentFromContext(ctx),
		Detail:       params.Detail,
		RowsAffected: params.RowsAffected,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetAuditLog retrieves audit entries. It returns no entries when history
// persistence is not configured.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListAudit(ctx, filter)
}

// StreamAuditLog streams audit entries through fn, oldest first. It is a
// no-op when history persistence is not configured.
func (s *Service) StreamAuditLog(ctx context.Context, filter AuditLogFilter, fn func(AuditEntry) error) error {
	if s.store == nil {
		return nil
	}
	return s.store.StreamAudit(ctx, filter, fn)
}

// Helper functions for pgtype conversion.

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgInt4(i int) pgtype.Int4 {
	if i == 0 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
