package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/persistence"
)

// adjustmentRepo implements AdjustmentRepo for PostgreSQL. Weight vectors
// are stored as JSONB so the schema survives weight-set changes.
type adjustmentRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAdjustmentRepo creates a PostgreSQL evolution adjustment repository.
func NewAdjustmentRepo(db *sqlx.DB, timeout time.Duration) persistence.AdjustmentRepo {
	return &adjustmentRepo{
		db:      db,
		timeout: timeout,
	}
}

// Insert appends one adjustment record. Existing records are never updated.
func (r *adjustmentRepo) Insert(ctx context.Context, adj evolve.Adjustment) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := adj.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid adjustment weights: %w", err)
	}

	weightsJSON, err := json.Marshal(adj.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	query := `
		INSERT INTO evolution_adjustments
		(workspace, symbol_group, cadence, weights, armed_confidence,
		 window_from, window_to, sample_count, mode, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := r.db.ExecContext(ctx, query,
		adj.Workspace, adj.SymbolGroup, adj.Cadence, weightsJSON,
		adj.ArmedConfidence, adj.WindowFrom, adj.WindowTo,
		adj.SampleCount, adj.Mode, adj.ComputedAt); err != nil {
		return fmt.Errorf("failed to insert adjustment: %w", err)
	}
	return nil
}

// Latest returns the most recent adjustment for a workspace and symbol
// group, or nil when none exists.
func (r *adjustmentRepo) Latest(ctx context.Context, workspace, symbolGroup string) (*evolve.Adjustment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT workspace, symbol_group, cadence, weights, armed_confidence,
		       window_from, window_to, sample_count, mode, computed_at
		FROM evolution_adjustments
		WHERE workspace = $1 AND symbol_group = $2
		ORDER BY computed_at DESC
		LIMIT 1`

	var adj evolve.Adjustment
	var weightsJSON []byte
	err := r.db.QueryRowxContext(ctx, query, workspace, symbolGroup).Scan(
		&adj.Workspace, &adj.SymbolGroup, &adj.Cadence, &weightsJSON,
		&adj.ArmedConfidence, &adj.WindowFrom, &adj.WindowTo,
		&adj.SampleCount, &adj.Mode, &adj.ComputedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest adjustment: %w", err)
	}

	if err := json.Unmarshal(weightsJSON, &adj.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	return &adj, nil
}

// outcomeRepo implements OutcomeRepo for PostgreSQL.
type outcomeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOutcomeRepo creates a PostgreSQL outcome sample repository.
func NewOutcomeRepo(db *sqlx.DB, timeout time.Duration) persistence.OutcomeRepo {
	return &outcomeRepo{
		db:      db,
		timeout: timeout,
	}
}

// ListWindow returns the labeled outcomes closed inside [from, to],
// oldest first.
func (r *outcomeRepo) ListWindow(ctx context.Context, workspace string, from, to time.Time) ([]evolve.OutcomeSample, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT category, weights_used, result_r, closed_at
		FROM outcome_samples
		WHERE workspace = $1 AND closed_at >= $2 AND closed_at <= $3
		ORDER BY closed_at ASC`

	rows, err := r.db.QueryxContext(ctx, query, workspace, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome samples: %w", err)
	}
	defer rows.Close()

	var samples []evolve.OutcomeSample
	for rows.Next() {
		var s evolve.OutcomeSample
		var weightsJSON []byte
		if err := rows.Scan(&s.Category, &weightsJSON, &s.ResultR, &s.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome sample: %w", err)
		}
		if err := json.Unmarshal(weightsJSON, &s.WeightsUsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample weights: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sample rows: %w", err)
	}
	return samples, nil
}
