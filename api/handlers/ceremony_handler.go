package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/signing"
	"mpc-wallet/internal/tss"
)

// CeremonyHandler runs the in-process tss-lib ceremony: keygen, wallet
// registration and, when hashes are supplied, a full signing round driven
// through the aggregator.
type CeremonyHandler struct {
	ceremony *tss.Ceremony
	signing  *signing.Service
}

func NewCeremonyHandler(ceremony *tss.Ceremony, signingSvc *signing.Service) *CeremonyHandler {
	return &CeremonyHandler{ceremony: ceremony, signing: signingSvc}
}

type ceremonyRequest struct {
	WalletName string   `json:"walletName"`
	Password   string   `json:"password" binding:"required"`
	Hashes     []string `json:"hashes"`
}

// Run executes the local ceremony. The keygen rounds take a while, so the
// hash list should stay short.
func (h *CeremonyHandler) Run(c *gin.Context) {
	var req ceremonyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}

	ctx := c.Request.Context()
	keygenID := uuid.New().String()
	res, err := h.ceremony.Run(ctx, keygenID, req.WalletName, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	out := gin.H{
		"keygenId": res.KeygenID,
		"walletId": res.WalletID,
		"pubkey":   res.PubkeyHex,
	}
	if len(req.Hashes) == 0 {
		c.JSON(http.StatusCreated, out)
		return
	}

	signerCount := h.ceremony.SignerCount()
	signers := make([]int, signerCount)
	for i := range signers {
		signers[i] = i + 1
	}
	view, err := h.signing.Create(ctx, dto.CreateSigningRequest{
		WalletID:   res.WalletID,
		Blockchain: dto.Ethereum,
		Coin:       dto.ETH,
		KeyScheme:  dto.ECDSA,
		Pubkey:     res.PubkeyHex,
		Threshold:  signerCount,
		Signers:    signers,
		Hashes:     req.Hashes,
		FeeLevel:   dto.FeeMedium,
		Transaction: dto.TransactionDetails{
			Type: dto.TxSend,
			Send: &dto.SendRequest{},
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	for _, hash := range req.Hashes {
		payloads, err := h.ceremony.SignHash(ctx, res, hash)
		if err != nil {
			if failErr := h.signing.Fail(ctx, view.ID, err.Error()); failErr != nil {
				logger.Log.Errorf("failed to fail session %s: %v", view.ID, failErr)
			}
			respondError(c, err)
			return
		}
		for i, payload := range payloads {
			view, err = h.signing.Submit(ctx, view.ID, dto.SubmitPartialRequest{
				Hash:       hash,
				PartyID:    i + 1,
				PartBase64: payload,
				Version:    view.Version,
			})
			if err != nil {
				respondError(c, err)
				return
			}
		}
	}

	out["signing"] = view
	c.JSON(http.StatusCreated, out)
}
