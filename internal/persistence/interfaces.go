package persistence

import (
	"context"
	"time"

	"github.com/quantfort/riskgov/internal/audit"
	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/guard"
)

// GuardRepo persists per-workspace guard toggle records with versioned
// compare-and-swap writes. The domain package defines the contract; the
// alias lets wiring code name the concern without importing guard.
type GuardRepo = guard.Repo

// AuditRepo is the durable append-only store consumed by audit.Sink.
type AuditRepo = audit.Repo

// AdjustmentRepo stores evolution adjustment records. Records are
// immutable: Insert only appends, Latest returns the newest row for a
// workspace and symbol group.
type AdjustmentRepo interface {
	Insert(ctx context.Context, adj evolve.Adjustment) error
	Latest(ctx context.Context, workspace, symbolGroup string) (*evolve.Adjustment, error)
}

// OutcomeRepo reads labeled trade outcomes used as evolution input.
type OutcomeRepo interface {
	ListWindow(ctx context.Context, workspace string, from, to time.Time) ([]evolve.OutcomeSample, error)
}
