package main

import (
	"flag"

	"mpc-wallet/api"
	"mpc-wallet/internal/config"
	"mpc-wallet/internal/keygen"
	"mpc-wallet/internal/keyshare"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/nonce"
	"mpc-wallet/internal/signing"
	"mpc-wallet/internal/storage"
	"mpc-wallet/internal/tss"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load config from %s: %v", *configPath, err)
	}
	if err := logger.InitLogger(cfg.Logger); err != nil {
		logger.Log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize database: %v", err)
	}

	sessionStore := storage.NewSessionStore(db)
	walletStore := storage.NewWalletStore(db)
	ledgerStore := storage.NewNonceLedgerStore(db)

	allocator := nonce.NewAllocator(ledgerStore, cfg.Nonce.MaxRangeSize)
	tracker := keygen.NewTracker(sessionStore.PersistKeygen, nil)
	signingSvc := signing.NewService(sessionStore.PersistSigning, tss.NewAssembler(), walletStore, allocator)

	var ceremony *tss.Ceremony
	if cfg.Ceremony.Parties > 0 {
		ceremony = tss.NewCeremony(cfg.Ceremony.Parties, cfg.Ceremony.Threshold, keyshare.NewCipher(), tracker, walletStore)
	}

	router := api.SetupRouter(api.Services{
		Keygen:   tracker,
		Signing:  signingSvc,
		Nonces:   allocator,
		Wallets:  walletStore,
		Ceremony: ceremony,
	})

	addr := ":" + cfg.ServerPort
	logger.Log.Infof("mpc-wallet listening on %s", addr)
	if err := router.Run(addr); err != nil {
		logger.Log.Fatalf("Server exited: %v", err)
	}
}
