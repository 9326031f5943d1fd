package handlers

import (
	"github.com/gin-gonic/gin"

	"mpc-wallet/internal/mpcerr"
)

// respondError maps an engine error to its HTTP status and a stable error
// code clients can branch on.
func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code := mpcerr.CodeOf(err); code != "" {
		body["code"] = string(code)
	}
	c.JSON(mpcerr.HTTPStatus(err), body)
}
