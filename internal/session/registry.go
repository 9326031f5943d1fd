package session

import (
	"context"
	"sort"
	"sync"

	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/mpcerr"
)

// Record is anything the registry can own. Records are identified by a
// stable string id; the registry tracks their version itself.
type Record interface {
	RecordID() string
}

// PersistFunc is invoked after every accepted mutation, while the record's
// lock is still held, so durable state never interleaves out of order for
// one record.
type PersistFunc[T Record] func(ctx context.Context, rec T, version int64) error

// ForceVersion skips the optimistic-concurrency check in Update. Reserved
// for engine-internal transitions (combination results, abort signals);
// client-driven mutations always present the version they observed.
const ForceVersion int64 = -1

type entry[T Record] struct {
	mu      sync.Mutex
	rec     T
	version int64
}

// Registry owns a set of live session records and serializes access to each
// one. Mutations go through Update, which enforces compare-and-increment on
// the record's version: a writer presenting a stale version is rejected and
// must re-read. Records are independent; no lock spans more than one.
type Registry[T Record] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
	persist PersistFunc[T]
}

// NewRegistry creates an empty registry. persist may be nil for purely
// in-memory use (tests construct isolated instances this way).
func NewRegistry[T Record](persist PersistFunc[T]) *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]*entry[T]),
		persist: persist,
	}
}

// Add registers a new record at version 0 and persists it.
func (r *Registry[T]) Add(ctx context.Context, rec T) (int64, error) {
	id := rec.RecordID()
	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return 0, mpcerr.New(mpcerr.CodeInvalidRequest, "session %s already exists", id)
	}
	e := &entry[T]{rec: rec}
	r.entries[id] = e
	r.mu.Unlock()

	if r.persist != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := r.persist(ctx, e.rec, e.version); err != nil {
			r.mu.Lock()
			delete(r.entries, id)
			r.mu.Unlock()
			return 0, err
		}
	}
	return 0, nil
}

func (r *Registry[T]) lookup(id string) (*entry[T], error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, mpcerr.New(mpcerr.CodeUnknownSession, "session %s not found", id)
	}
	return e, nil
}

// Update applies mutator to the record under its lock. The stored version
// must equal expectedVersion (unless ForceVersion is given) or the update
// aborts with VERSION_CONFLICT and the record is untouched. A mutator error
// also leaves the version unchanged; mutators validate before they mutate.
// On success the version increments by exactly one and the record is
// persisted before Update returns.
func (r *Registry[T]) Update(ctx context.Context, id string, expectedVersion int64, mutator func(rec T) error) (int64, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if expectedVersion != ForceVersion && e.version != expectedVersion {
		return e.version, mpcerr.New(mpcerr.CodeVersionConflict,
			"session %s is at version %d, update expected %d", id, e.version, expectedVersion)
	}
	if err := mutator(e.rec); err != nil {
		return e.version, err
	}
	e.version++
	if r.persist != nil {
		if err := r.persist(ctx, e.rec, e.version); err != nil {
			// The in-memory record is ahead of durable state now; the next
			// accepted mutation rewrites the whole snapshot.
			logger.Log.Errorf("failed to persist session %s at version %d: %v", id, e.version, err)
			return e.version, err
		}
	}
	return e.version, nil
}

// View runs fn against the record under its lock, so reads observe the
// latest committed version and nothing mid-mutation. fn must not retain the
// record.
func (r *Registry[T]) View(id string, fn func(rec T, version int64) error) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.rec, e.version)
}

// Version returns the current committed version of a record.
func (r *Registry[T]) Version(id string) (int64, error) {
	var v int64
	err := r.View(id, func(_ T, version int64) error {
		v = version
		return nil
	})
	return v, err
}

// IDs returns the ids of all live records in stable order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Remove drops a record from the registry. Durable state is untouched.
func (r *Registry[T]) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}
