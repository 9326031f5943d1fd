package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/keygen"
	"mpc-wallet/internal/mpcerr"
)

// KeygenHandler exposes the keygen quorum tracker.
type KeygenHandler struct {
	tracker *keygen.Tracker
}

func NewKeygenHandler(tracker *keygen.Tracker) *KeygenHandler {
	return &KeygenHandler{tracker: tracker}
}

// Create starts a new keygen session.
func (h *KeygenHandler) Create(c *gin.Context) {
	var req dto.CreateKeygenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	if err := h.tracker.Create(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"keygenId": req.KeygenID, "status": dto.KeygenCreated})
}

// Join registers one member with a session and reports progress.
func (h *KeygenHandler) Join(c *gin.Context) {
	var req dto.JoinKeygenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	progress, err := h.tracker.Join(c.Request.Context(), c.Param("id"), req.Member)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Progress reports join progress and lifecycle state.
func (h *KeygenHandler) Progress(c *gin.Context) {
	id := c.Param("id")
	progress, err := h.tracker.Progress(id)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := h.tracker.Status(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"members":  progress.Members,
		"progress": progress.Progress,
		"status":   status,
	})
}

// Abort forces a session to FAILED; aborting a terminal session is a no-op.
func (h *KeygenHandler) Abort(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, mpcerr.Wrap(mpcerr.CodeInvalidRequest, err))
		return
	}
	if err := h.tracker.Abort(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aborted"})
}
