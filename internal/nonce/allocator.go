package nonce

import (
	"context"
	"errors"
	"math"
	"sync"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/mpcerr"
)

// ErrStaleMark is returned by a Ledger when the stored high-water mark no
// longer equals the expected value. The allocator treats it as ledger
// corruption: some writer advanced the mark outside the allocator, and any
// further grant could hand out a reused nonce.
var ErrStaleMark = errors.New("nonce ledger high-water mark is stale")

// Ledger is the durable record of the highest nonce index issued per
// (pubkey, scheme) pair. Advance must be atomic: it either moves the mark
// from expectedNext to newNext and commits, or reports ErrStaleMark.
type Ledger interface {
	Next(ctx context.Context, pubkey string, scheme dto.KeyScheme) (int64, error)
	Advance(ctx context.Context, pubkey string, scheme dto.KeyScheme, expectedNext, newNext int64) error
}

// Range is a granted half-open window [Start, Start+Size) of nonce indexes.
type Range struct {
	Start int64
	Size  int64
}

// DefaultMaxRangeSize caps a single allocation when no limit is configured.
const DefaultMaxRangeSize int64 = 65536

type keyState struct {
	mu       sync.Mutex
	poisoned bool
}

// Allocator issues disjoint nonce ranges per (pubkey, scheme) pair. A
// one-time nonce must never sign two messages under the same key, so ranges
// are never reused or returned, and the ledger write is durable before a
// range is reported to the caller. Allocation for different keys proceeds
// independently; one key's allocations serialize on a per-key lock around
// the ledger's compare-and-advance.
type Allocator struct {
	ledger Ledger
	max    int64

	mu   sync.Mutex
	keys map[string]*keyState
}

// NewAllocator creates an allocator over the given ledger. maxRangeSize
// caps one allocation; zero selects DefaultMaxRangeSize.
func NewAllocator(ledger Ledger, maxRangeSize int64) *Allocator {
	if maxRangeSize <= 0 {
		maxRangeSize = DefaultMaxRangeSize
	}
	return &Allocator{
		ledger: ledger,
		max:    maxRangeSize,
		keys:   make(map[string]*keyState),
	}
}

func (a *Allocator) keyFor(pubkey string, scheme dto.KeyScheme) *keyState {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := pubkey + "/" + string(scheme)
	ks, ok := a.keys[k]
	if !ok {
		ks = &keyState{}
		a.keys[k] = ks
	}
	return ks
}

// Allocate grants the next unused window of size indexes for the key. The
// start of the window is one past the highest index ever issued for that
// (pubkey, scheme) pair.
func (a *Allocator) Allocate(ctx context.Context, pubkey string, scheme dto.KeyScheme, size int64) (Range, error) {
	if pubkey == "" {
		return Range{}, mpcerr.New(mpcerr.CodeInvalidRequest, "pubkey is required")
	}
	if !scheme.Valid() {
		return Range{}, mpcerr.New(mpcerr.CodeInvalidRequest, "unknown key scheme %q", string(scheme))
	}
	if size <= 0 {
		return Range{}, mpcerr.New(mpcerr.CodeInvalidRequest, "nonce range size %d must be positive", size)
	}
	if size > a.max {
		return Range{}, mpcerr.New(mpcerr.CodeInvalidRequest, "nonce range size %d exceeds limit %d", size, a.max)
	}

	ks := a.keyFor(pubkey, scheme)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.poisoned {
		return Range{}, mpcerr.New(mpcerr.CodeNonceExhaustion,
			"nonce allocation halted for key %s/%s after a ledger conflict", pubkey, scheme)
	}

	next, err := a.ledger.Next(ctx, pubkey, scheme)
	if err != nil {
		return Range{}, err
	}
	if next > math.MaxInt64-size {
		ks.poisoned = true
		return Range{}, mpcerr.New(mpcerr.CodeNonceExhaustion,
			"nonce index space exhausted for key %s/%s", pubkey, scheme)
	}

	if err := a.ledger.Advance(ctx, pubkey, scheme, next, next+size); err != nil {
		if errors.Is(err, ErrStaleMark) {
			// Another writer moved the mark underneath us. Issuing anything
			// now risks overlap, so the key is taken out of service:
			// availability loss beats nonce reuse.
			ks.poisoned = true
			logger.Log.Errorf("nonce ledger conflict for key %s/%s, halting allocation", pubkey, scheme)
			return Range{}, mpcerr.Wrap(mpcerr.CodeNonceExhaustion, err)
		}
		return Range{}, err
	}
	return Range{Start: next, Size: size}, nil
}
