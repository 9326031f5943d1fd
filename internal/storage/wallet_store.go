package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/signing"
	"mpc-wallet/internal/storage/models"
)

// WalletStore persists hot wallets and their encrypted key shares, and
// doubles as the signing engine's wallet directory.
type WalletStore struct {
	db *gorm.DB
}

func NewWalletStore(db *gorm.DB) *WalletStore {
	return &WalletStore{db: db}
}

// Register stores a completed keygen as a hot wallet. The wallet row and
// every key row commit in one transaction, mirroring how key data and
// shares are saved together.
func (s *WalletStore) Register(ctx context.Context, req dto.RegisterHotWalletRequest) (*models.Wallet, error) {
	if req.KeygenID == "" {
		return nil, mpcerr.New(mpcerr.CodeInvalidRequest, "keygen id is required")
	}
	if req.Threshold < 1 || req.Threshold > req.NumberOfMembers {
		return nil, mpcerr.New(mpcerr.CodeInvalidRequest,
			"threshold %d must be within [1, %d]", req.Threshold, req.NumberOfMembers)
	}
	if len(req.Members) != req.NumberOfMembers {
		return nil, mpcerr.New(mpcerr.CodeInvalidRequest,
			"wallet registered with %d members, expected %d", len(req.Members), req.NumberOfMembers)
	}

	members, err := json.Marshal(req.Members)
	if err != nil {
		return nil, err
	}
	wallet := models.Wallet{
		ID:              uuid.New().String(),
		KeygenID:        req.KeygenID,
		Name:            req.WalletName,
		Threshold:       req.Threshold,
		TotalMembers:    req.NumberOfMembers,
		Members:         members,
		AuthorizedUsers: strings.Join(req.AuthorizedUsers, ","),
		IsMainnet:       req.WalletCreationConfig.IsMainnet,
		IsSegwit:        req.WalletCreationConfig.IsSegwit,
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	if err := tx.Create(&wallet).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create wallet record: %w", err)
	}
	for _, enc := range req.EncryptedKeygenResult.EncryptedKeygenWithScheme {
		key := models.WalletKey{
			WalletID:       wallet.ID,
			PartyID:        req.EncryptedKeygenResult.PartyID,
			Pubkey:         enc.EncryptedLocalKey.Pubkey,
			KeyScheme:      string(enc.KeyScheme),
			EncryptedKey:   enc.EncryptedLocalKey.EncryptedKey,
			EncryptedNonce: enc.EncryptedLocalKey.EncryptedNonce,
			Algorithm:      enc.EncryptedLocalKey.Algorithm,
			NonceStart:     enc.NonceStartIndex,
			NonceSize:      enc.NonceSize,
		}
		if err := tx.Create(&key).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create key share for scheme %s: %w", enc.KeyScheme, err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	logger.Log.Infof("registered hot wallet %s (%s) with %d key shares",
		wallet.ID, wallet.Name, len(req.EncryptedKeygenResult.EncryptedKeygenWithScheme))
	return &wallet, nil
}

// Get loads a wallet with its key shares.
func (s *WalletStore) Get(ctx context.Context, walletID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.WithContext(ctx).Preload("Keys").First(&wallet, "id = ?", walletID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Find implements signing.WalletDirectory.
func (s *WalletStore) Find(ctx context.Context, walletID string) (*signing.Wallet, error) {
	wallet, err := s.Get(ctx, walletID)
	if err != nil || wallet == nil {
		return nil, err
	}
	var users []string
	if wallet.AuthorizedUsers != "" {
		users = strings.Split(wallet.AuthorizedUsers, ",")
	}
	return &signing.Wallet{
		ID:              wallet.ID,
		Threshold:       wallet.Threshold,
		AuthorizedUsers: users,
	}, nil
}
