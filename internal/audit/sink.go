package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Entry is one guard-transition evidence record.
type Entry struct {
	Workspace string    `json:"workspace" db:"workspace"`
	Action    string    `json:"action" db:"action"`
	FromMode  string    `json:"from_mode" db:"from_mode"`
	ToMode    string    `json:"to_mode" db:"to_mode"`
	At        time.Time `json:"at" db:"at"`
}

// Repo is the durable audit store.
type Repo interface {
	Append(ctx context.Context, e Entry) error
}

// Recorder is what state machines depend on. Record never returns an error:
// audit failures must not block a state transition.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

const fallbackCapacity = 256

// Sink writes audit entries through a circuit breaker. When the store is
// down or the breaker is open, entries land in a bounded in-memory ring so
// operators are not blind to recent transitions.
type Sink struct {
	repo       Repo
	breaker    *gobreaker.CircuitBreaker
	onFallback func()

	mu       sync.Mutex
	fallback []Entry
}

// NewSink wraps the repo with breaker protection.
func NewSink(repo Repo) *Sink {
	settings := gobreaker.Settings{
		Name:    "audit-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Audit store breaker state change")
		},
	}
	return &Sink{repo: repo, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// WithFallbackHook registers fn to run every time an entry is diverted to
// the in-memory ring, typically a metrics counter increment.
func (s *Sink) WithFallbackHook(fn func()) *Sink {
	s.onFallback = fn
	return s
}

// Record appends the entry, degrading to the in-memory ring on any failure.
func (s *Sink) Record(ctx context.Context, e Entry) {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.repo.Append(ctx, e)
	})
	if err == nil {
		return
	}
	log.Warn().
		Str("workspace", e.Workspace).
		Str("action", e.Action).
		Err(err).
		Msg("Audit append failed, holding entry in memory")

	if s.onFallback != nil {
		s.onFallback()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fallback) >= fallbackCapacity {
		s.fallback = s.fallback[1:]
	}
	s.fallback = append(s.fallback, e)
}

// Pending returns a copy of entries held in memory after store failures.
func (s *Sink) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.fallback...)
}

// NopRecorder discards entries. For tooling that has no audit store at all.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Entry) {}
