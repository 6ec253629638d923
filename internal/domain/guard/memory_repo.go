package guard

import (
	"context"
	"sync"
)

// MemoryRepo is an in-process Repo with compare-and-swap semantics. Used by
// tests and single-tenant tooling; production deployments use the postgres
// repo.
type MemoryRepo struct {
	mu   sync.Mutex
	recs map[string]Record
}

// NewMemoryRepo builds an empty repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{recs: make(map[string]Record)}
}

// Get implements Repo.
func (r *MemoryRepo) Get(_ context.Context, workspace string) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[workspace]
	return rec, ok, nil
}

// Put implements Repo with CAS on expectVersion.
func (r *MemoryRepo) Put(_ context.Context, rec Record, expectVersion int64) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.recs[rec.Workspace]
	curVersion := int64(0)
	if ok {
		curVersion = cur.Version
	}
	if curVersion != expectVersion {
		return Record{}, ErrConflict
	}
	rec.Version = curVersion + 1
	r.recs[rec.Workspace] = rec
	return rec, nil
}
