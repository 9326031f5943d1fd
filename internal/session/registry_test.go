package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpc-wallet/internal/mpcerr"
)

type counterRecord struct {
	id    string
	count int
}

func (r *counterRecord) RecordID() string { return r.id }

func TestRegistryVersionIncrementsPerMutation(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	_, err := reg.Add(ctx, &counterRecord{id: "a"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		v, err := reg.Update(ctx, "a", int64(i), func(r *counterRecord) error {
			r.count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), v)
	}

	v, err := reg.Version("a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestRegistryStaleVersionRejected(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	_, err := reg.Add(ctx, &counterRecord{id: "a"})
	require.NoError(t, err)

	_, err = reg.Update(ctx, "a", 0, func(r *counterRecord) error {
		r.count++
		return nil
	})
	require.NoError(t, err)

	// Second writer still holds version 0.
	_, err = reg.Update(ctx, "a", 0, func(r *counterRecord) error {
		r.count = 100
		return nil
	})
	require.ErrorIs(t, err, mpcerr.ErrVersionConflict)

	err = reg.View("a", func(r *counterRecord, version int64) error {
		assert.Equal(t, 1, r.count, "rejected update must not touch the record")
		assert.Equal(t, int64(1), version)
		return nil
	})
	require.NoError(t, err)
}

func TestRegistryMutatorErrorLeavesVersion(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	_, err := reg.Add(ctx, &counterRecord{id: "a"})
	require.NoError(t, err)

	boom := errors.New("boom")
	v, err := reg.Update(ctx, "a", 0, func(r *counterRecord) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), v)

	v, err = reg.Version("a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestRegistryUnknownSession(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)

	_, err := reg.Update(context.Background(), "missing", 0, func(r *counterRecord) error { return nil })
	require.ErrorIs(t, err, mpcerr.ErrUnknownSession)

	err = reg.View("missing", func(r *counterRecord, _ int64) error { return nil })
	require.ErrorIs(t, err, mpcerr.ErrUnknownSession)
}

func TestRegistryDuplicateAdd(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	_, err := reg.Add(ctx, &counterRecord{id: "a"})
	require.NoError(t, err)
	_, err = reg.Add(ctx, &counterRecord{id: "a"})
	require.ErrorIs(t, err, mpcerr.ErrInvalidRequest)
}

func TestRegistryForceVersionSkipsCheck(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	_, err := reg.Add(ctx, &counterRecord{id: "a"})
	require.NoError(t, err)

	v, err := reg.Update(ctx, "a", ForceVersion, func(r *counterRecord) error {
		r.count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

// Concurrent writers using the re-read-and-retry discipline must all land,
// with the final version equal to the number of accepted mutations.
func TestRegistryConcurrentRetryingWriters(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	_, err := reg.Add(ctx, &counterRecord{id: "a"})
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			for {
				v, err := reg.Version("a")
				if err != nil {
					t.Error(err)
					return
				}
				_, err = reg.Update(ctx, "a", v, func(r *counterRecord) error {
					r.count++
					return nil
				})
				if err == nil {
					return
				}
				if !errors.Is(err, mpcerr.ErrVersionConflict) {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	err = reg.View("a", func(r *counterRecord, version int64) error {
		assert.Equal(t, writers, r.count)
		assert.Equal(t, int64(writers), version)
		return nil
	})
	require.NoError(t, err)
}

func TestRegistryPersistFailureRollsBackAdd(t *testing.T) {
	persistErr := errors.New("db down")
	reg := NewRegistry[*counterRecord](func(ctx context.Context, r *counterRecord, v int64) error {
		return persistErr
	})

	_, err := reg.Add(context.Background(), &counterRecord{id: "a"})
	require.ErrorIs(t, err, persistErr)

	_, err = reg.Version("a")
	require.ErrorIs(t, err, mpcerr.ErrUnknownSession)
}

func TestRegistryIDsAndRemove(t *testing.T) {
	reg := NewRegistry[*counterRecord](nil)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_, err := reg.Add(ctx, &counterRecord{id: id})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, reg.IDs())

	reg.Remove("b")
	assert.Equal(t, []string{"a", "c"}, reg.IDs())
}
