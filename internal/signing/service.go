package signing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/nonce"
	"mpc-wallet/internal/session"
)

// Combiner turns t partial signature payloads into one final signature.
// Implementations are external cryptographic collaborators; a rejection
// means the shares were inconsistent and is fatal to the session.
type Combiner interface {
	Combine(ctx context.Context, pubkey string, scheme dto.KeyScheme, hash string, parts []PartialSignature) (FinalSignature, error)
}

// Wallet is the slice of the wallet record the signing engine needs.
type Wallet struct {
	ID              string
	Threshold       int
	AuthorizedUsers []string
}

// WalletDirectory resolves wallet ids. Find returns (nil, nil) when the
// wallet does not exist.
type WalletDirectory interface {
	Find(ctx context.Context, walletID string) (*Wallet, error)
}

// NonceSource reserves unused nonce windows for EDDSA signing flows.
type NonceSource interface {
	Allocate(ctx context.Context, pubkey string, scheme dto.KeyScheme, size int64) (nonce.Range, error)
}

// Service owns signing sessions end to end: creation, partial-signature
// aggregation, threshold combination, and terminal transitions. Concurrent
// submitters are serialized per session by the registry's version guard;
// the combination call itself runs outside any session lock.
type Service struct {
	registry *session.Registry[*Session]
	combiner Combiner
	wallets  WalletDirectory
	nonces   NonceSource
}

// NewService wires the signing engine. wallets and nonces may be nil when
// the corresponding checks are not wanted (isolated tests).
func NewService(persist session.PersistFunc[*Session], combiner Combiner, wallets WalletDirectory, nonces NonceSource) *Service {
	return &Service{
		registry: session.NewRegistry[*Session](persist),
		combiner: combiner,
		wallets:  wallets,
		nonces:   nonces,
	}
}

// Create validates the request and registers a new session in CREATED state
// at version 0.
func (svc *Service) Create(ctx context.Context, req dto.CreateSigningRequest) (dto.SigningSessionView, error) {
	if err := validateCreate(req); err != nil {
		return dto.SigningSessionView{}, err
	}

	var authorized []string
	if svc.wallets != nil {
		w, err := svc.wallets.Find(ctx, req.WalletID)
		if err != nil {
			return dto.SigningSessionView{}, err
		}
		if w == nil {
			return dto.SigningSessionView{}, mpcerr.New(mpcerr.CodeInvalidRequest, "unknown wallet %s", req.WalletID)
		}
		if w.Threshold > 0 && req.Threshold < w.Threshold {
			return dto.SigningSessionView{}, mpcerr.New(mpcerr.CodeInvalidRequest,
				"threshold %d is below wallet %s's threshold %d", req.Threshold, req.WalletID, w.Threshold)
		}
		authorized = w.AuthorizedUsers
		if !userIn(authorized, req.UserID) {
			return dto.SigningSessionView{}, mpcerr.New(mpcerr.CodeUnauthorizedSigner,
				"user %q is not authorized for wallet %s", req.UserID, req.WalletID)
		}
	}

	nonces := req.Nonces
	if nonces == nil && req.KeyScheme == dto.EDDSA && svc.nonces != nil {
		rng, err := svc.nonces.Allocate(ctx, req.Pubkey, req.KeyScheme, int64(len(req.Hashes)))
		if err != nil {
			return dto.SigningSessionView{}, err
		}
		nonces = make([]int64, len(req.Hashes))
		for i := range nonces {
			nonces[i] = rng.Start + int64(i)
		}
	}

	s := &Session{
		ID:              uuid.New().String(),
		WalletID:        req.WalletID,
		Blockchain:      req.Blockchain,
		Coin:            req.Coin,
		KeyScheme:       req.KeyScheme,
		Pubkey:          req.Pubkey,
		FromAddress:     req.FromAddress,
		Threshold:       req.Threshold,
		Signers:         append([]int(nil), req.Signers...),
		AuthorizedUsers: append([]string(nil), authorized...),
		Status:          dto.SigningCreated,
		Transaction:     req.Transaction,
		FeeLevel:        req.FeeLevel,
		Fee:             req.Fee,
		CreatedAt:       time.Now().UTC(),
	}
	for i, h := range req.Hashes {
		var n int64
		if i < len(nonces) {
			n = nonces[i]
		}
		s.Hashes = append(s.Hashes, newHash(h, n))
	}

	if _, err := svc.registry.Add(ctx, s); err != nil {
		return dto.SigningSessionView{}, err
	}
	logger.Log.Infof("created signing session %s for wallet %s with %d hashes, threshold %d",
		s.ID, s.WalletID, len(s.Hashes), s.Threshold)
	return s.View(0), nil
}

func validateCreate(req dto.CreateSigningRequest) error {
	if req.WalletID == "" {
		return mpcerr.New(mpcerr.CodeInvalidRequest, "wallet id is required")
	}
	if !req.KeyScheme.Valid() {
		return mpcerr.New(mpcerr.CodeInvalidRequest, "unknown key scheme %q", string(req.KeyScheme))
	}
	if req.Threshold < 1 {
		return mpcerr.New(mpcerr.CodeInvalidRequest, "threshold %d must be >= 1", req.Threshold)
	}
	if req.Threshold > len(req.Signers) {
		return mpcerr.New(mpcerr.CodeInvalidRequest,
			"threshold %d exceeds the %d eligible signers", req.Threshold, len(req.Signers))
	}
	if len(req.Hashes) == 0 {
		return mpcerr.New(mpcerr.CodeInvalidRequest, "at least one hash is required")
	}
	if req.Nonces != nil && len(req.Nonces) != len(req.Hashes) {
		return mpcerr.New(mpcerr.CodeInvalidRequest,
			"%d nonces provided for %d hashes", len(req.Nonces), len(req.Hashes))
	}
	seen := make(map[int]bool, len(req.Signers))
	for _, p := range req.Signers {
		if p < 1 {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "party id %d must be >= 1", p)
		}
		if seen[p] {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "duplicate signer %d", p)
		}
		seen[p] = true
	}
	return req.Transaction.Validate()
}

func userIn(users []string, user string) bool {
	if len(users) == 0 {
		return true
	}
	for _, u := range users {
		if u == user {
			return true
		}
	}
	return false
}

// Submit records one party's partial signature for one hash of a session.
// The caller presents the session version it observed; a stale version is
// rejected with VERSION_CONFLICT and nothing changes. When the submission
// brings the hash to its threshold of distinct parties, the first t parts
// in arrival order are combined into the final signature; the session
// reaches COMPLETED once every hash is final.
func (svc *Service) Submit(ctx context.Context, sessionID string, req dto.SubmitPartialRequest) (dto.SigningSessionView, error) {
	var (
		toCombine []PartialSignature
		pubkey    string
		scheme    dto.KeyScheme
	)
	_, err := svc.registry.Update(ctx, sessionID, req.Version, func(s *Session) error {
		if s.Status.Terminal() {
			return mpcerr.New(mpcerr.CodeSessionClosed, "session %s is %s", sessionID, s.Status)
		}
		if !s.eligible(req.PartyID) {
			return mpcerr.New(mpcerr.CodeUnauthorizedSigner,
				"party %d is not an eligible signer for session %s", req.PartyID, sessionID)
		}
		if !s.userAuthorized(req.UserID) {
			return mpcerr.New(mpcerr.CodeUnauthorizedSigner,
				"user %q is not authorized for session %s", req.UserID, sessionID)
		}
		h := s.hash(req.Hash)
		if h == nil {
			return mpcerr.New(mpcerr.CodeUnknownHash, "hash %s does not belong to session %s", req.Hash, sessionID)
		}
		if h.Complete() {
			return mpcerr.New(mpcerr.CodeAlreadySigned, "hash %s already has a final signature", req.Hash)
		}
		if req.PartBase64 == "" {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "partial signature payload is empty")
		}

		distinct := h.put(PartialSignature{
			PartyID:     req.PartyID,
			Payload:     req.PartBase64,
			SubmittedAt: time.Now().UTC(),
		})
		if s.Status == dto.SigningCreated {
			s.Status = dto.SigningInProgress
		}
		if distinct >= s.Threshold {
			// Snapshot the first t parts and mark the hash so combination
			// runs exactly once; the crypto itself happens after the lock
			// is released.
			h.combining = true
			toCombine = h.firstParts(s.Threshold)
			pubkey = s.Pubkey
			scheme = s.KeyScheme
		}
		return nil
	})
	if err != nil {
		return dto.SigningSessionView{}, err
	}

	if toCombine != nil {
		if combineErr := svc.combineHash(ctx, sessionID, req.Hash, pubkey, scheme, toCombine); combineErr != nil {
			return dto.SigningSessionView{}, combineErr
		}
	}

	return svc.Get(sessionID)
}

// combineHash invokes the combination collaborator once for a hash and
// commits the outcome. A combiner failure is fatal to the session.
func (svc *Service) combineHash(ctx context.Context, sessionID, hash, pubkey string, scheme dto.KeyScheme, parts []PartialSignature) error {
	final, err := svc.combiner.Combine(ctx, pubkey, scheme, hash, parts)
	if err != nil {
		wrapped := mpcerr.Wrap(mpcerr.CodeAggregationFailure, err)
		if failErr := svc.Fail(ctx, sessionID, wrapped.Error()); failErr != nil {
			logger.Log.Errorf("failed to mark session %s failed after aggregation error: %v", sessionID, failErr)
		}
		return wrapped
	}

	_, err = svc.registry.Update(ctx, sessionID, session.ForceVersion, func(s *Session) error {
		if s.Status.Terminal() {
			// A failure signal landed while the combiner ran. Terminal
			// sessions accept no further mutation, so the result is
			// discarded.
			return mpcerr.New(mpcerr.CodeSessionClosed,
				"session %s is %s, combination result discarded", sessionID, s.Status)
		}
		h := s.hash(hash)
		if h == nil {
			return mpcerr.New(mpcerr.CodeUnknownHash, "hash %s does not belong to session %s", hash, sessionID)
		}
		h.Final = &final
		if s.allHashesFinal() && s.Status == dto.SigningInProgress {
			s.Status = dto.SigningCompleted
			logger.Log.Infof("signing session %s completed, all %d hashes signed", sessionID, len(s.Hashes))
		}
		return nil
	})
	return err
}

// MarkBroadcasted records the network transaction id reported by the
// broadcast collaborator and advances a COMPLETED session to BROADCASTED.
func (svc *Service) MarkBroadcasted(ctx context.Context, sessionID, txID string, version int64) (int64, error) {
	return svc.registry.Update(ctx, sessionID, version, func(s *Session) error {
		if s.Status.Terminal() {
			return mpcerr.New(mpcerr.CodeSessionClosed, "session %s is %s", sessionID, s.Status)
		}
		if s.Status != dto.SigningCompleted {
			return mpcerr.New(mpcerr.CodeInvalidRequest,
				"session %s is %s, only a completed session can be broadcasted", sessionID, s.Status)
		}
		s.TxID = txID
		s.Status = dto.SigningBroadcasted
		return nil
	})
}

// Fail forces a session to FAILED. Failing an already-terminal session is a
// no-op, keeping abort signals idempotent.
func (svc *Service) Fail(ctx context.Context, sessionID, reason string) error {
	_, err := svc.registry.Update(ctx, sessionID, session.ForceVersion, func(s *Session) error {
		if s.Status.Terminal() {
			return nil
		}
		s.Status = dto.SigningFailed
		s.Message = reason
		logger.Log.Warnf("signing session %s failed: %s", sessionID, reason)
		return nil
	})
	return err
}

// Get returns the wire view of a session at its latest committed version.
func (svc *Service) Get(sessionID string) (dto.SigningSessionView, error) {
	var view dto.SigningSessionView
	err := svc.registry.View(sessionID, func(s *Session, version int64) error {
		view = s.View(version)
		return nil
	})
	return view, err
}

// ListByWallet returns the sessions belonging to one wallet.
func (svc *Service) ListByWallet(walletID string) dto.SigningListResult {
	result := dto.SigningListResult{Signings: []dto.SigningSessionView{}}
	for _, id := range svc.registry.IDs() {
		_ = svc.registry.View(id, func(s *Session, version int64) error {
			if s.WalletID == walletID {
				result.Signings = append(result.Signings, s.View(version))
			}
			return nil
		})
	}
	return result
}
