package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/storage"
)

// WalletHandler exposes hot wallet registration and lookup.
type WalletHandler struct {
	store *storage.WalletStore
}

func NewWalletHandler(store *storage.WalletStore) *WalletHandler {
	return &WalletHandler{store: store}
}

// Register stores a completed keygen as a hot wallet.
func (h *WalletHandler) Register(c *gin.Context) {
	var req dto.RegisterHotWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	wallet, err := h.store.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wallet)
}

// Get loads one wallet with its key shares.
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if wallet == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		return
	}
	c.JSON(http.StatusOK, wallet)
}
