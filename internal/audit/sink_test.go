package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	entries []Entry
	err     error
}

func (f *fakeRepo) Append(_ context.Context, e Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func entry(action string) Entry {
	return Entry{
		Workspace: "ws-1",
		Action:    action,
		FromMode:  "enabled",
		ToMode:    "pending_disable",
		At:        time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
	}
}

func TestSink_RecordsThrough(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSink(repo)

	s.Record(context.Background(), entry("request_disable"))

	require.Len(t, repo.entries, 1)
	assert.Empty(t, s.Pending())
}

func TestSink_FallsBackWhenStoreDown(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection refused")}
	s := NewSink(repo)

	s.Record(context.Background(), entry("request_disable"))
	s.Record(context.Background(), entry("cancel"))

	pending := s.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "request_disable", pending[0].Action)
	assert.Equal(t, "cancel", pending[1].Action)
}

func TestSink_FallbackHookFiresOnDiversion(t *testing.T) {
	repo := &fakeRepo{err: errors.New("down")}
	diverted := 0
	s := NewSink(repo).WithFallbackHook(func() { diverted++ })

	s.Record(context.Background(), entry("request_disable"))
	s.Record(context.Background(), entry("cancel"))
	assert.Equal(t, 2, diverted)

	repo.err = nil
	s2 := NewSink(repo).WithFallbackHook(func() { diverted++ })
	s2.Record(context.Background(), entry("enable"))
	assert.Equal(t, 2, diverted)
}

func TestSink_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	repo := &fakeRepo{err: errors.New("down")}
	s := NewSink(repo)

	for i := 0; i < 5; i++ {
		s.Record(context.Background(), entry("request_disable"))
	}

	// Store recovers but the breaker is still open; entries keep landing in
	// the fallback ring rather than erroring out.
	repo.err = nil
	s.Record(context.Background(), entry("enable"))
	assert.Len(t, s.Pending(), 6)
	assert.Empty(t, repo.entries)
}

func TestSink_FallbackBounded(t *testing.T) {
	repo := &fakeRepo{err: errors.New("down")}
	s := NewSink(repo)

	for i := 0; i < fallbackCapacity+10; i++ {
		s.Record(context.Background(), entry("request_disable"))
	}
	assert.Len(t, s.Pending(), fallbackCapacity)
}
