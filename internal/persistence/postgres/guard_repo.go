package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfort/riskgov/internal/domain/guard"
)

// guardRepo implements guard.Repo for PostgreSQL. Writes are versioned
// compare-and-swap: an UPDATE guarded by the expected version, so two
// concurrent toggles cannot both win.
type guardRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewGuardRepo creates a PostgreSQL guard toggle repository.
func NewGuardRepo(db *sqlx.DB, timeout time.Duration) guard.Repo {
	return &guardRepo{
		db:      db,
		timeout: timeout,
	}
}

// Get returns the stored record for a workspace, if any.
func (r *guardRepo) Get(ctx context.Context, workspace string) (guard.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT workspace, mode, requested_at, disabled_at, version, updated_at
		FROM guard_toggles
		WHERE workspace = $1`

	var rec guard.Record
	var requestedAt, disabledAt sql.NullTime
	err := r.db.QueryRowxContext(ctx, query, workspace).Scan(
		&rec.Workspace, &rec.Mode, &requestedAt, &disabledAt,
		&rec.Version, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return guard.Record{}, false, nil
		}
		return guard.Record{}, false, fmt.Errorf("failed to get guard record: %w", err)
	}

	if requestedAt.Valid {
		rec.RequestedAt = requestedAt.Time
	}
	if disabledAt.Valid {
		rec.DisabledAt = disabledAt.Time
	}
	return rec, true, nil
}

// Put writes the record iff the stored version equals expectVersion.
// expectVersion zero inserts a fresh row. A version mismatch returns
// guard.ErrConflict so callers retry from a fresh read.
func (r *guardRepo) Put(ctx context.Context, rec guard.Record, expectVersion int64) (guard.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if !rec.Mode.Valid() {
		return guard.Record{}, fmt.Errorf("invalid guard mode: %s", rec.Mode)
	}

	rec.Version = expectVersion + 1
	requestedAt := nullTime(rec.RequestedAt)
	disabledAt := nullTime(rec.DisabledAt)

	if expectVersion == 0 {
		query := `
			INSERT INTO guard_toggles
			(workspace, mode, requested_at, disabled_at, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (workspace) DO NOTHING
			RETURNING version`

		var v int64
		err := r.db.QueryRowxContext(ctx, query,
			rec.Workspace, rec.Mode, requestedAt, disabledAt,
			rec.Version, rec.UpdatedAt).Scan(&v)
		if err != nil {
			if err == sql.ErrNoRows {
				// Row already exists, so version 0 was stale.
				return guard.Record{}, guard.ErrConflict
			}
			return guard.Record{}, fmt.Errorf("failed to insert guard record: %w", err)
		}
		return rec, nil
	}

	query := `
		UPDATE guard_toggles SET
			mode = $1,
			requested_at = $2,
			disabled_at = $3,
			version = $4,
			updated_at = $5
		WHERE workspace = $6 AND version = $7`

	res, err := r.db.ExecContext(ctx, query,
		rec.Mode, requestedAt, disabledAt, rec.Version, rec.UpdatedAt,
		rec.Workspace, expectVersion)
	if err != nil {
		return guard.Record{}, fmt.Errorf("failed to update guard record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return guard.Record{}, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return guard.Record{}, guard.ErrConflict
	}
	return rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
