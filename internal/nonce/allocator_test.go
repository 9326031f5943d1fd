package nonce

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/mpcerr"
)

// memLedger is an in-memory Ledger with the same compare-and-advance
// contract as the database-backed one.
type memLedger struct {
	mu    sync.Mutex
	marks map[string]int64

	nextErr    error
	advanceErr error
}

func newMemLedger() *memLedger {
	return &memLedger{marks: make(map[string]int64)}
}

func (l *memLedger) key(pubkey string, scheme dto.KeyScheme) string {
	return pubkey + "/" + string(scheme)
}

func (l *memLedger) Next(ctx context.Context, pubkey string, scheme dto.KeyScheme) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nextErr != nil {
		return 0, l.nextErr
	}
	return l.marks[l.key(pubkey, scheme)], nil
}

func (l *memLedger) Advance(ctx context.Context, pubkey string, scheme dto.KeyScheme, expectedNext, newNext int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.advanceErr != nil {
		return l.advanceErr
	}
	k := l.key(pubkey, scheme)
	if l.marks[k] != expectedNext {
		return ErrStaleMark
	}
	l.marks[k] = newNext
	return nil
}

func TestAllocateSequentialRanges(t *testing.T) {
	alloc := NewAllocator(newMemLedger(), 0)
	ctx := context.Background()

	sizes := []int64{10, 1, 500, 64}
	var wantStart int64
	for _, size := range sizes {
		r, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, size)
		require.NoError(t, err)
		assert.Equal(t, wantStart, r.Start)
		assert.Equal(t, size, r.Size)
		wantStart += size
	}
}

func TestAllocateConcurrentRangesAreDisjoint(t *testing.T) {
	alloc := NewAllocator(newMemLedger(), 0)
	ctx := context.Background()

	const workers = 2
	results := make([]Range, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			r, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, 10)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Start < results[j].Start })
	assert.Equal(t, []Range{{Start: 0, Size: 10}, {Start: 10, Size: 10}}, results)
}

func TestAllocateManyConcurrentNoOverlap(t *testing.T) {
	alloc := NewAllocator(newMemLedger(), 0)
	ctx := context.Background()

	const workers = 32
	results := make([]Range, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			r, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, int64(i%5+1))
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Start < results[j].Start })
	var next int64
	for _, r := range results {
		assert.Equal(t, next, r.Start, "ranges must tile the index space with no gaps or overlaps")
		next = r.Start + r.Size
	}
}

func TestAllocateIndependentKeys(t *testing.T) {
	alloc := NewAllocator(newMemLedger(), 0)
	ctx := context.Background()

	r1, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, 5)
	require.NoError(t, err)
	r2, err := alloc.Allocate(ctx, "pk2", dto.EDDSA, 5)
	require.NoError(t, err)
	r3, err := alloc.Allocate(ctx, "pk1", dto.ECDSA, 5)
	require.NoError(t, err)

	// Each (pubkey, scheme) pair counts from zero on its own.
	assert.Equal(t, int64(0), r1.Start)
	assert.Equal(t, int64(0), r2.Start)
	assert.Equal(t, int64(0), r3.Start)
}

func TestAllocateRejectsInvalidRequests(t *testing.T) {
	alloc := NewAllocator(newMemLedger(), 100)
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, "", dto.EDDSA, 1)
	require.ErrorIs(t, err, mpcerr.ErrInvalidRequest)

	_, err = alloc.Allocate(ctx, "pk1", dto.KeyScheme("RSA"), 1)
	require.ErrorIs(t, err, mpcerr.ErrInvalidRequest)

	_, err = alloc.Allocate(ctx, "pk1", dto.EDDSA, 0)
	require.ErrorIs(t, err, mpcerr.ErrInvalidRequest)

	_, err = alloc.Allocate(ctx, "pk1", dto.EDDSA, -3)
	require.ErrorIs(t, err, mpcerr.ErrInvalidRequest)

	_, err = alloc.Allocate(ctx, "pk1", dto.EDDSA, 101)
	require.ErrorIs(t, err, mpcerr.ErrInvalidRequest)
}

func TestAllocateStaleMarkPoisonsKey(t *testing.T) {
	ledger := newMemLedger()
	alloc := NewAllocator(ledger, 0)
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, 10)
	require.NoError(t, err)

	// Simulate an external writer moving the mark behind the allocator's back.
	ledger.mu.Lock()
	ledger.marks["pk1/EDDSA"] = 999
	ledger.mu.Unlock()

	_, err = alloc.Allocate(ctx, "pk1", dto.EDDSA, 10)
	require.ErrorIs(t, err, mpcerr.ErrNonceExhaustion)
	require.ErrorIs(t, err, ErrStaleMark)

	// The key stays out of service even after the ledger is consistent again.
	_, err = alloc.Allocate(ctx, "pk1", dto.EDDSA, 10)
	require.ErrorIs(t, err, mpcerr.ErrNonceExhaustion)

	// Other keys are unaffected.
	r, err := alloc.Allocate(ctx, "pk2", dto.EDDSA, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Start)
}

func TestAllocateIOErrorDoesNotPoison(t *testing.T) {
	ledger := newMemLedger()
	alloc := NewAllocator(ledger, 0)
	ctx := context.Background()

	ioErr := errors.New("connection reset")
	ledger.mu.Lock()
	ledger.nextErr = ioErr
	ledger.mu.Unlock()

	_, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, 10)
	require.ErrorIs(t, err, ioErr)

	ledger.mu.Lock()
	ledger.nextErr = nil
	ledger.mu.Unlock()

	r, err := alloc.Allocate(ctx, "pk1", dto.EDDSA, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Start)
}
