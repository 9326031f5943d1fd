package tss

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/bnb-chain/tss-lib/v2/common"
	tsslib "github.com/bnb-chain/tss-lib/v2/tss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/signing"
)

func encodePart(t *testing.T, partyID int, sig *common.SignatureData) signing.PartialSignature {
	t.Helper()
	raw, err := json.Marshal(sig)
	require.NoError(t, err)
	return signing.PartialSignature{
		PartyID: partyID,
		Payload: base64.StdEncoding.EncodeToString(raw),
	}
}

func TestCombineAgreement(t *testing.T) {
	sig := &common.SignatureData{
		R:                 []byte{0x01, 0x02},
		S:                 []byte{0x03, 0x04},
		SignatureRecovery: []byte{0x01},
	}
	parts := []signing.PartialSignature{
		encodePart(t, 1, sig),
		encodePart(t, 2, sig),
	}

	final, err := NewAssembler().Combine(context.Background(), "", dto.EDDSA, "deadbeef", parts)
	require.NoError(t, err)
	assert.Equal(t, "0102", final.R)
	assert.Equal(t, "0304", final.S)
	assert.Equal(t, 1, final.RecoveryID)
}

func TestCombineDisagreementFails(t *testing.T) {
	a := &common.SignatureData{R: []byte{0x01}, S: []byte{0x02}}
	b := &common.SignatureData{R: []byte{0x01}, S: []byte{0xff}}
	parts := []signing.PartialSignature{
		encodePart(t, 1, a),
		encodePart(t, 2, b),
	}

	_, err := NewAssembler().Combine(context.Background(), "", dto.EDDSA, "deadbeef", parts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "party 2")
}

func TestCombineMalformedPayload(t *testing.T) {
	asm := NewAssembler()
	ctx := context.Background()

	_, err := asm.Combine(ctx, "", dto.EDDSA, "deadbeef", []signing.PartialSignature{
		{PartyID: 1, Payload: "not base64 !!!"},
	})
	require.Error(t, err)

	_, err = asm.Combine(ctx, "", dto.EDDSA, "deadbeef", []signing.PartialSignature{
		{PartyID: 1, Payload: base64.StdEncoding.EncodeToString([]byte("not json"))},
	})
	require.Error(t, err)

	_, err = asm.Combine(ctx, "", dto.EDDSA, "deadbeef", nil)
	require.Error(t, err)
}

func TestCombineECDSAVerifies(t *testing.T) {
	key, err := ecdsa.GenerateKey(tsslib.S256(), rand.Reader)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("transaction bytes"))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(t, err)

	pubkeyHex := hex.EncodeToString(key.X.FillBytes(make([]byte, 32))) +
		hex.EncodeToString(key.Y.FillBytes(make([]byte, 32)))
	sig := &common.SignatureData{R: r.Bytes(), S: s.Bytes(), SignatureRecovery: []byte{0x00}}

	final, err := NewAssembler().Combine(context.Background(), pubkeyHex, dto.ECDSA,
		hex.EncodeToString(digest[:]), []signing.PartialSignature{encodePart(t, 1, sig)})
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(r.Bytes()), final.R)

	// A signature over a different digest must not pass.
	other := sha256.Sum256([]byte("different bytes"))
	_, err = NewAssembler().Combine(context.Background(), pubkeyHex, dto.ECDSA,
		hex.EncodeToString(other[:]), []signing.PartialSignature{encodePart(t, 1, sig)})
	require.Error(t, err)
}
