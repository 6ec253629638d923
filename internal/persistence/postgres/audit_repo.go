package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfort/riskgov/internal/audit"
)

// auditRepo implements audit.Repo for PostgreSQL. The table is append-only;
// nothing in the service updates or deletes rows.
type auditRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAuditRepo creates a PostgreSQL audit repository.
func NewAuditRepo(db *sqlx.DB, timeout time.Duration) audit.Repo {
	return &auditRepo{
		db:      db,
		timeout: timeout,
	}
}

// Append writes one audit entry.
func (r *auditRepo) Append(ctx context.Context, e audit.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if e.Workspace == "" || e.Action == "" {
		return fmt.Errorf("audit entry missing workspace or action")
	}

	query := `
		INSERT INTO guard_audit
		(workspace, action, from_mode, to_mode, at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query,
		e.Workspace, e.Action, e.FromMode, e.ToMode, e.At); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries for a workspace, newest first.
func (r *auditRepo) ListRecent(ctx context.Context, workspace string, limit int) ([]audit.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT workspace, action, from_mode, to_mode, at
		FROM guard_audit
		WHERE workspace = $1
		ORDER BY at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, workspace, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.StructScan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return entries, nil
}
