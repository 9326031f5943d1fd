package signing

import (
	"time"

	"github.com/shopspring/decimal"

	"mpc-wallet/internal/dto"
)

// PartialSignature is one party's contribution toward the threshold
// signature of a single hash. Entries are immutable once accepted; a
// resubmission by the same party replaces its own entry.
type PartialSignature struct {
	PartyID     int
	Payload     string // base64, opaque to the engine
	SubmittedAt time.Time
}

// FinalSignature is the combined signature for one hash, produced exactly
// once and immutable thereafter.
type FinalSignature struct {
	R          string
	S          string
	RecoveryID int
}

// Hash is one hash a session must sign. Each hash collects its own partial
// signatures and completes independently; the session completes only when
// every hash has a final signature.
type Hash struct {
	Hash  string
	Nonce int64

	// parts is keyed by party id; order records the arrival order of
	// distinct parties, which fixes which t parts feed the combination.
	parts map[int]PartialSignature
	order []int

	// combining is set when the threshold snapshot has been taken, so the
	// combination step runs exactly once even under concurrent submitters.
	combining bool
	Final     *FinalSignature
}

func newHash(hash string, nonce int64) *Hash {
	return &Hash{
		Hash:  hash,
		Nonce: nonce,
		parts: make(map[int]PartialSignature),
	}
}

// put inserts or replaces the party's entry without disturbing arrival
// order, and reports the distinct-party count.
func (h *Hash) put(p PartialSignature) int {
	if _, seen := h.parts[p.PartyID]; !seen {
		h.order = append(h.order, p.PartyID)
	}
	h.parts[p.PartyID] = p
	return len(h.order)
}

// firstParts returns the first t distinct parties' entries in arrival order.
func (h *Hash) firstParts(t int) []PartialSignature {
	if t > len(h.order) {
		t = len(h.order)
	}
	out := make([]PartialSignature, 0, t)
	for _, partyID := range h.order[:t] {
		out = append(out, h.parts[partyID])
	}
	return out
}

// Parts returns all accepted entries in arrival order.
func (h *Hash) Parts() []PartialSignature {
	return h.firstParts(len(h.order))
}

// Complete reports whether the hash has, or is about to receive, its final
// signature. Submissions past this point are rejected.
func (h *Hash) Complete() bool {
	return h.Final != nil || h.combining
}

// Session is one transaction-signing request. All mutation goes through the
// registry, which serializes writers per session and enforces the version
// contract; Session itself carries no locks.
type Session struct {
	ID          string
	WalletID    string
	Blockchain  dto.Blockchain
	Coin        dto.Coin
	KeyScheme   dto.KeyScheme
	Pubkey      string
	FromAddress string

	Threshold       int
	Signers         []int
	AuthorizedUsers []string

	Status  dto.SigningStatus
	Message string
	TxID    string

	Transaction dto.TransactionDetails
	FeeLevel    dto.FeeLevel
	Fee         *decimal.Decimal

	Hashes    []*Hash
	CreatedAt time.Time
}

func (s *Session) RecordID() string { return s.ID }

func (s *Session) hash(hash string) *Hash {
	for _, h := range s.Hashes {
		if h.Hash == hash {
			return h
		}
	}
	return nil
}

func (s *Session) eligible(partyID int) bool {
	for _, p := range s.Signers {
		if p == partyID {
			return true
		}
	}
	return false
}

func (s *Session) userAuthorized(userID string) bool {
	if len(s.AuthorizedUsers) == 0 {
		return true
	}
	for _, u := range s.AuthorizedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

func (s *Session) allHashesFinal() bool {
	for _, h := range s.Hashes {
		if h.Final == nil {
			return false
		}
	}
	return true
}

// View renders the session for the wire at a given version.
func (s *Session) View(version int64) dto.SigningSessionView {
	hashes := make([]dto.SigningHashResult, 0, len(s.Hashes))
	for _, h := range s.Hashes {
		hr := dto.SigningHashResult{
			Hash:  h.Hash,
			Nonce: h.Nonce,
			Parts: make([]dto.PartialSignatureBase64, 0, len(h.order)),
		}
		for _, p := range h.Parts() {
			hr.Parts = append(hr.Parts, dto.PartialSignatureBase64{
				PartyID:    p.PartyID,
				PartBase64: p.Payload,
				SignedAt:   p.SubmittedAt.UTC().Format(time.RFC3339),
			})
		}
		if h.Final != nil {
			hr.Signature = &dto.SignatureRecidHex{
				R:     h.Final.R,
				S:     h.Final.S,
				Recid: h.Final.RecoveryID,
			}
		}
		hashes = append(hashes, hr)
	}
	signers := make([]int, len(s.Signers))
	copy(signers, s.Signers)
	return dto.SigningSessionView{
		ID:          s.ID,
		WalletID:    s.WalletID,
		Blockchain:  s.Blockchain,
		Coin:        s.Coin,
		KeyScheme:   s.KeyScheme,
		Pubkey:      s.Pubkey,
		FromAddress: s.FromAddress,
		Threshold:   s.Threshold,
		Signers:     signers,
		Status:      s.Status,
		Message:     s.Message,
		Hashes:      hashes,
		TxID:        s.TxID,
		FeeLevel:    s.FeeLevel,
		Fee:         s.Fee,
		Version:     version,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
