package tss

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/common"
	tsslib "github.com/bnb-chain/tss-lib/v2/tss"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/signing"
)

// Assembler implements signing.Combiner over tss-lib partial payloads.
// Every tss-lib signer that completes the signing rounds holds the full
// signature, so a partial payload here is a base64 JSON-encoded
// common.SignatureData. Combination checks that the threshold set agrees
// bit for bit and, for ECDSA, that the result verifies against the wallet
// public key. Disagreement means the shares were inconsistent.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

func (a *Assembler) Combine(ctx context.Context, pubkey string, scheme dto.KeyScheme, hash string, parts []signing.PartialSignature) (signing.FinalSignature, error) {
	if err := ctx.Err(); err != nil {
		return signing.FinalSignature{}, err
	}
	if len(parts) == 0 {
		return signing.FinalSignature{}, errors.New("no partial signatures to combine")
	}

	var agreed *common.SignatureData
	for _, p := range parts {
		raw, err := base64.StdEncoding.DecodeString(p.Payload)
		if err != nil {
			return signing.FinalSignature{}, fmt.Errorf("party %d sent a malformed payload: %w", p.PartyID, err)
		}
		var sig common.SignatureData
		if err := json.Unmarshal(raw, &sig); err != nil {
			return signing.FinalSignature{}, fmt.Errorf("party %d sent an undecodable signature part: %w", p.PartyID, err)
		}
		if agreed == nil {
			agreed = &sig
			continue
		}
		if !bytes.Equal(sig.R, agreed.R) || !bytes.Equal(sig.S, agreed.S) ||
			!bytes.Equal(sig.SignatureRecovery, agreed.SignatureRecovery) {
			return signing.FinalSignature{}, fmt.Errorf("party %d disagrees with the threshold set, shares are inconsistent", p.PartyID)
		}
	}

	if scheme == dto.ECDSA {
		if err := verifyECDSA(pubkey, hash, agreed); err != nil {
			return signing.FinalSignature{}, err
		}
	}

	recid := 0
	if len(agreed.SignatureRecovery) > 0 {
		recid = int(agreed.SignatureRecovery[0])
	}
	return signing.FinalSignature{
		R:          hex.EncodeToString(agreed.R),
		S:          hex.EncodeToString(agreed.S),
		RecoveryID: recid,
	}, nil
}

// verifyECDSA checks the combined signature against the wallet public key
// (hex-encoded 64-byte X||Y on secp256k1) and the hash being signed.
func verifyECDSA(pubkeyHex, hashHex string, sig *common.SignatureData) error {
	pubKeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKeyBytes) != 64 {
		return errors.New("invalid public key length")
	}
	digest, err := hex.DecodeString(hashHex)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}

	pk := &ecdsa.PublicKey{
		Curve: tsslib.S256(),
		X:     new(big.Int).SetBytes(pubKeyBytes[:32]),
		Y:     new(big.Int).SetBytes(pubKeyBytes[32:]),
	}
	if !ecdsa.Verify(pk, digest, new(big.Int).SetBytes(sig.R), new(big.Int).SetBytes(sig.S)) {
		return errors.New("combined signature failed verification against the wallet public key")
	}
	return nil
}
