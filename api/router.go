package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mpc-wallet/api/handlers"
	"mpc-wallet/internal/keygen"
	"mpc-wallet/internal/nonce"
	"mpc-wallet/internal/signing"
	"mpc-wallet/internal/storage"
	"mpc-wallet/internal/tss"
)

// Services carries the engine instances the API exposes. Ceremony may be
// nil to leave the local ceremony endpoint unregistered.
type Services struct {
	Keygen   *keygen.Tracker
	Signing  *signing.Service
	Nonces   *nonce.Allocator
	Wallets  *storage.WalletStore
	Ceremony *tss.Ceremony
}

func SetupRouter(svcs Services) *gin.Engine {
	router := gin.Default()

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	keygenHandler := handlers.NewKeygenHandler(svcs.Keygen)
	router.POST("/keygen", keygenHandler.Create)
	router.GET("/keygen/:id", keygenHandler.Progress)
	router.POST("/keygen/:id/members", keygenHandler.Join)
	router.POST("/keygen/:id/abort", keygenHandler.Abort)

	if svcs.Wallets != nil {
		walletHandler := handlers.NewWalletHandler(svcs.Wallets)
		router.POST("/wallets", walletHandler.Register)
		router.GET("/wallets/:id", walletHandler.Get)
	}

	signingHandler := handlers.NewSigningHandler(svcs.Signing)
	router.POST("/signings", signingHandler.Create)
	router.GET("/signings", signingHandler.List)
	router.GET("/signings/:id", signingHandler.Get)
	router.POST("/signings/:id/signatures", signingHandler.Submit)
	router.POST("/signings/:id/broadcasted", signingHandler.Broadcasted)
	router.POST("/signings/:id/fail", signingHandler.Fail)

	nonceHandler := handlers.NewNonceHandler(svcs.Nonces)
	router.POST("/nonces", nonceHandler.Allocate)

	if svcs.Ceremony != nil {
		ceremonyHandler := handlers.NewCeremonyHandler(svcs.Ceremony, svcs.Signing)
		router.POST("/ceremony", ceremonyHandler.Run)
	}

	return router
}
