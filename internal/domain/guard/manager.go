package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/quantfort/riskgov/internal/audit"
)

// ErrConflict signals a lost compare-and-swap race on a guard write. The
// caller retries; the requested transition is never silently dropped.
var ErrConflict = errors.New("guard state write conflict")

// ErrRateLimited signals toggle spam for a workspace.
var ErrRateLimited = errors.New("guard toggle rate limited")

// Repo is the guard state store. Get reports found=false for workspaces
// that never toggled (implicitly enabled). Put performs a compare-and-swap
// on expectVersion and returns ErrConflict when the stored version moved.
type Repo interface {
	Get(ctx context.Context, workspace string) (Record, bool, error)
	Put(ctx context.Context, rec Record, expectVersion int64) (Record, error)
}

// Manager drives the guard toggle state machine. Writes are serialized per
// workspace; reads derive state lazily from stored timestamps so no
// background timer exists anywhere.
type Manager struct {
	repo     Repo
	recorder audit.Recorder
	now      func() time.Time

	mu       sync.Mutex
	wsLocks  map[string]*sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewManager builds a manager. recorder may be audit.NopRecorder{} for
// tooling without an audit store.
func NewManager(repo Repo, recorder audit.Recorder) *Manager {
	return &Manager{
		repo:     repo,
		recorder: recorder,
		now:      time.Now,
		wsLocks:  make(map[string]*sync.Mutex),
		limiters: make(map[string]*rate.Limiter),
	}
}

// WithClock overrides the clock. Tests only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) lockFor(workspace string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.wsLocks[workspace]
	if !ok {
		l = &sync.Mutex{}
		m.wsLocks[workspace] = l
	}
	return l
}

func (m *Manager) limiterFor(workspace string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[workspace]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Second), 10)
		m.limiters[workspace] = l
	}
	return l
}

// Read returns the derived guard state for a workspace. When a time-based
// transition has matured, the stored record is updated best-effort so audit
// history reflects it; a racing writer wins and the read re-derives.
func (m *Manager) Read(ctx context.Context, workspace string) (State, error) {
	rec, found, err := m.repo.Get(ctx, workspace)
	if err != nil {
		return State{}, fmt.Errorf("failed to read guard state: %w", err)
	}
	now := m.now()
	if !found {
		return State{Mode: ModeEnabled}, nil
	}
	derived := DeriveState(rec, now)
	if derived.Mode != rec.Mode {
		m.materialize(ctx, workspace, rec, derived, now)
	}
	return derived, nil
}

// materialize persists a lazily observed transition. Best effort: a CAS
// conflict means a concurrent writer already moved the record.
func (m *Manager) materialize(ctx context.Context, workspace string, rec Record, derived State, now time.Time) {
	next := Record{Workspace: workspace, Mode: derived.Mode, UpdatedAt: now}
	switch derived.Mode {
	case ModeDisabled:
		if derived.DisabledAt != nil {
			next.DisabledAt = *derived.DisabledAt
		}
	case ModePendingDisable:
		if derived.RequestedAt != nil {
			next.RequestedAt = *derived.RequestedAt
		}
	}
	if _, err := m.repo.Put(ctx, next, rec.Version); err != nil {
		if !errors.Is(err, ErrConflict) {
			log.Warn().Str("workspace", workspace).Err(err).
				Msg("Failed to materialize lazy guard transition")
		}
		return
	}
	m.recorder.Record(ctx, audit.Entry{
		Workspace: workspace,
		Action:    "auto_" + string(derived.Mode),
		FromMode:  string(rec.Mode),
		ToMode:    string(derived.Mode),
		At:        now,
	})
}

// RequestDisable starts the disable cooldown. Idempotent while pending or
// disabled.
func (m *Manager) RequestDisable(ctx context.Context, workspace string) (State, error) {
	return m.transition(ctx, workspace, "request_disable", func(cur State, now time.Time) (Record, bool) {
		if cur.Mode != ModeEnabled {
			return Record{}, false
		}
		return Record{Workspace: workspace, Mode: ModePendingDisable, RequestedAt: now, UpdatedAt: now}, true
	})
}

// Cancel aborts a pending disable.
func (m *Manager) Cancel(ctx context.Context, workspace string) (State, error) {
	return m.transition(ctx, workspace, "cancel_disable", func(cur State, now time.Time) (Record, bool) {
		if cur.Mode != ModePendingDisable {
			return Record{}, false
		}
		return Record{Workspace: workspace, Mode: ModeEnabled, UpdatedAt: now}, true
	})
}

// Enable re-enables immediately. No cooldown applies to turning protection
// back on.
func (m *Manager) Enable(ctx context.Context, workspace string) (State, error) {
	return m.transition(ctx, workspace, "enable", func(cur State, now time.Time) (Record, bool) {
		if cur.Mode == ModeEnabled {
			return Record{}, false
		}
		return Record{Workspace: workspace, Mode: ModeEnabled, UpdatedAt: now}, true
	})
}

func (m *Manager) transition(ctx context.Context, workspace, action string,
	next func(cur State, now time.Time) (Record, bool)) (State, error) {

	if !m.limiterFor(workspace).Allow() {
		return State{}, fmt.Errorf("%w: workspace %s", ErrRateLimited, workspace)
	}

	l := m.lockFor(workspace)
	l.Lock()
	defer l.Unlock()

	rec, found, err := m.repo.Get(ctx, workspace)
	if err != nil {
		return State{}, fmt.Errorf("failed to read guard state: %w", err)
	}
	now := m.now()
	var cur State
	version := int64(0)
	if found {
		cur = DeriveState(rec, now)
		version = rec.Version
	} else {
		cur = State{Mode: ModeEnabled}
	}

	nextRec, ok := next(cur, now)
	if !ok {
		return cur, nil
	}

	stored, err := m.repo.Put(ctx, nextRec, version)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return State{}, fmt.Errorf("%s for workspace %s: %w", action, workspace, ErrConflict)
		}
		return State{}, fmt.Errorf("failed to write guard state: %w", err)
	}

	// Audit is fire-and-forget: the transition already happened and must not
	// be rolled back or blocked by a down audit store.
	m.recorder.Record(ctx, audit.Entry{
		Workspace: workspace,
		Action:    action,
		FromMode:  string(cur.Mode),
		ToMode:    string(stored.Mode),
		At:        now,
	})

	log.Info().
		Str("workspace", workspace).
		Str("action", action).
		Str("from", string(cur.Mode)).
		Str("to", string(stored.Mode)).
		Msg("Guard transition")

	return DeriveState(stored, now), nil
}
