package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/nonce"
)

// NonceHandler exposes nonce range allocation.
type NonceHandler struct {
	allocator *nonce.Allocator
}

func NewNonceHandler(allocator *nonce.Allocator) *NonceHandler {
	return &NonceHandler{allocator: allocator}
}

// Allocate grants the next unused nonce window for a key.
func (h *NonceHandler) Allocate(c *gin.Context) {
	var req dto.GenerateNonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	rng, err := h.allocator.Allocate(c.Request.Context(), req.Pubkey, req.KeyScheme, req.NonceSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GenerateNonceResponse{
		Pubkey:          req.Pubkey,
		KeyScheme:       req.KeyScheme,
		NonceStartIndex: rng.Start,
		NonceSize:       rng.Size,
	})
}
