package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/signing"
)

// SigningHandler exposes the signing session engine.
type SigningHandler struct {
	svc *signing.Service
}

func NewSigningHandler(svc *signing.Service) *SigningHandler {
	return &SigningHandler{svc: svc}
}

// Create opens a new signing session.
func (h *SigningHandler) Create(c *gin.Context) {
	var req dto.CreateSigningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	view, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get returns one session at its latest committed version.
func (h *SigningHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// List returns the sessions of one wallet.
func (h *SigningHandler) List(c *gin.Context) {
	walletID := c.Query("walletId")
	if walletID == "" {
		respondError(c, mpcerr.New(mpcerr.CodeInvalidRequest, "walletId query parameter is required"))
		return
	}
	c.JSON(http.StatusOK, h.svc.ListByWallet(walletID))
}

// Submit records a party's partial signature for one hash.
func (h *SigningHandler) Submit(c *gin.Context) {
	var req dto.SubmitPartialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	view, err := h.svc.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Broadcasted records the transaction id reported by the broadcast
// collaborator.
func (h *SigningHandler) Broadcasted(c *gin.Context) {
	var req dto.TransactionBroadcasted
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	version, err := h.svc.MarkBroadcasted(c.Request.Context(), c.Param("id"), req.TransactionID, req.Version)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": dto.SigningBroadcasted, "version": version})
}

// Fail forces a session to FAILED on an external failure signal.
func (h *SigningHandler) Fail(c *gin.Context) {
	var req dto.SigningSessionFailed
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	if err := h.svc.Fail(c.Request.Context(), c.Param("id"), req.Error); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": dto.SigningFailed})
}
