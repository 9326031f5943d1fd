package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/keygen"
	"mpc-wallet/internal/nonce"
	"mpc-wallet/internal/signing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCombiner struct{}

func (stubCombiner) Combine(ctx context.Context, pubkey string, scheme dto.KeyScheme, hash string, parts []signing.PartialSignature) (signing.FinalSignature, error) {
	return signing.FinalSignature{R: "r-" + hash, S: "s-" + hash}, nil
}

type stubLedger struct {
	mu    sync.Mutex
	marks map[string]int64
}

func (l *stubLedger) Next(ctx context.Context, pubkey string, scheme dto.KeyScheme) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marks[pubkey+"/"+string(scheme)], nil
}

func (l *stubLedger) Advance(ctx context.Context, pubkey string, scheme dto.KeyScheme, expectedNext, newNext int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := pubkey + "/" + string(scheme)
	if l.marks[k] != expectedNext {
		return nonce.ErrStaleMark
	}
	l.marks[k] = newNext
	return nil
}

func testRouter() *gin.Engine {
	return SetupRouter(Services{
		Keygen:  keygen.NewTracker(nil, nil),
		Signing: signing.NewService(nil, stubCombiner{}, nil, nil),
		Nonces:  nonce.NewAllocator(&stubLedger{marks: make(map[string]int64)}, 0),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

func newSigningRequest(hashes ...string) dto.CreateSigningRequest {
	return dto.CreateSigningRequest{
		WalletID:    "wallet-1",
		Blockchain:  dto.Ethereum,
		Coin:        dto.ETH,
		KeyScheme:   dto.ECDSA,
		Pubkey:      "pk1",
		FromAddress: "0xfrom",
		Threshold:   2,
		Signers:     []int{1, 2, 3},
		Hashes:      hashes,
		FeeLevel:    dto.FeeMedium,
		Transaction: dto.TransactionDetails{
			Type: dto.TxSend,
			Send: &dto.SendRequest{ToAddress: "0xabc", Amount: decimal.NewFromInt(1)},
		},
	}
}

func TestPing(t *testing.T) {
	w := doJSON(t, testRouter(), http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKeygenLifecycle(t *testing.T) {
	router := testRouter()

	w := doJSON(t, router, http.MethodPost, "/keygen", dto.CreateKeygenRequest{
		KeygenID:        "kg-1",
		NumberOfMembers: 2,
		Threshold:       1,
		WalletName:      "w",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/keygen/kg-1/members", dto.JoinKeygenRequest{
		Member: dto.KeygenMember{PartyID: 1, PartyName: "party-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The same party joining twice is a conflict, reported with a stable code.
	w = doJSON(t, router, http.MethodPost, "/keygen/kg-1/members", dto.JoinKeygenRequest{
		Member: dto.KeygenMember{PartyID: 1, PartyName: "party-1"},
	})
	require.Equal(t, http.StatusConflict, w.Code)
	var errBody map[string]string
	decode(t, w, &errBody)
	assert.Equal(t, "DUPLICATE_PARTY", errBody["code"])

	w = doJSON(t, router, http.MethodPost, "/keygen/kg-1/members", dto.JoinKeygenRequest{
		Member: dto.KeygenMember{PartyID: 2, PartyName: "party-2"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/keygen/kg-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var progress struct {
		Progress int              `json:"progress"`
		Status   dto.KeygenStatus `json:"status"`
	}
	decode(t, w, &progress)
	assert.Equal(t, 100, progress.Progress)
	assert.Equal(t, dto.KeygenCompleted, progress.Status)
}

func TestSigningLifecycle(t *testing.T) {
	router := testRouter()

	w := doJSON(t, router, http.MethodPost, "/signings", newSigningRequest("h1"))
	require.Equal(t, http.StatusCreated, w.Code)
	var view dto.SigningSessionView
	decode(t, w, &view)
	assert.Equal(t, dto.SigningCreated, view.Status)
	assert.Equal(t, int64(0), view.Version)

	w = doJSON(t, router, http.MethodPost, "/signings/"+view.ID+"/signatures", dto.SubmitPartialRequest{
		Hash: "h1", PartyID: 1, PartBase64: "part-1", Version: view.Version,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, dto.SigningInProgress, view.Status)

	// A stale version is rejected; the client re-reads and retries.
	w = doJSON(t, router, http.MethodPost, "/signings/"+view.ID+"/signatures", dto.SubmitPartialRequest{
		Hash: "h1", PartyID: 2, PartBase64: "part-2", Version: 0,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	var errBody map[string]string
	decode(t, w, &errBody)
	assert.Equal(t, "VERSION_CONFLICT", errBody["code"])

	w = doJSON(t, router, http.MethodGet, "/signings/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)

	w = doJSON(t, router, http.MethodPost, "/signings/"+view.ID+"/signatures", dto.SubmitPartialRequest{
		Hash: "h1", PartyID: 2, PartBase64: "part-2", Version: view.Version,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, dto.SigningCompleted, view.Status)
	require.NotNil(t, view.Hashes[0].Signature)
	assert.Equal(t, "r-h1", view.Hashes[0].Signature.R)

	w = doJSON(t, router, http.MethodPost, "/signings/"+view.ID+"/broadcasted", dto.TransactionBroadcasted{
		SigningSessionID: view.ID,
		TransactionID:    "0xtx",
		Version:          view.Version,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/signings/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, dto.SigningBroadcasted, view.Status)
	assert.Equal(t, "0xtx", view.TxID)

	w = doJSON(t, router, http.MethodGet, "/signings?walletId=wallet-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.SigningListResult
	decode(t, w, &list)
	require.Len(t, list.Signings, 1)
}

func TestSigningUnknownSession(t *testing.T) {
	router := testRouter()

	w := doJSON(t, router, http.MethodGet, "/signings/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/signings/no-such-id/signatures", dto.SubmitPartialRequest{
		Hash: "h1", PartyID: 1, PartBase64: "p", Version: 0,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSigningFailEndpoint(t *testing.T) {
	router := testRouter()

	w := doJSON(t, router, http.MethodPost, "/signings", newSigningRequest("h1"))
	require.Equal(t, http.StatusCreated, w.Code)
	var view dto.SigningSessionView
	decode(t, w, &view)

	w = doJSON(t, router, http.MethodPost, "/signings/"+view.ID+"/fail", dto.SigningSessionFailed{
		SigningID: view.ID,
		Error:     "broadcast collaborator gave up",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/signings/"+view.ID, nil)
	decode(t, w, &view)
	assert.Equal(t, dto.SigningFailed, view.Status)
}

func TestNonceAllocation(t *testing.T) {
	router := testRouter()

	var resp dto.GenerateNonceResponse
	w := doJSON(t, router, http.MethodPost, "/nonces", dto.GenerateNonceRequest{
		Pubkey: "pk1", KeyScheme: dto.EDDSA, NonceSize: 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, int64(0), resp.NonceStartIndex)

	w = doJSON(t, router, http.MethodPost, "/nonces", dto.GenerateNonceRequest{
		Pubkey: "pk1", KeyScheme: dto.EDDSA, NonceSize: 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, int64(10), resp.NonceStartIndex)
	assert.Equal(t, int64(10), resp.NonceSize)

	w = doJSON(t, router, http.MethodPost, "/nonces", dto.GenerateNonceRequest{
		Pubkey: "pk1", KeyScheme: dto.EDDSA, NonceSize: -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
