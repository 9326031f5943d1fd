package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mpc-wallet/internal/config"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/storage/models"
)

// InitDB opens the database connection and migrates the schema. The handle
// is returned, not stored globally, so tests and callers own their own
// instances.
func InitDB(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Log.Info("Database connection successfully established.")

	err = db.AutoMigrate(
		&models.Wallet{},
		&models.WalletKey{},
		&models.SigningSession{},
		&models.KeygenSession{},
		&models.NonceLedger{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	logger.Log.Info("Database schema migrated.")
	return db, nil
}
