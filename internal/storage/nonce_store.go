package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/nonce"
	"mpc-wallet/internal/storage/models"
)

// NonceLedgerStore is the durable nonce ledger. Advance is a guarded UPDATE
// keyed on the expected mark, never a read-modify-write, so two writers can
// never both succeed for the same window.
type NonceLedgerStore struct {
	db *gorm.DB
}

func NewNonceLedgerStore(db *gorm.DB) *NonceLedgerStore {
	return &NonceLedgerStore{db: db}
}

// Next returns the next unissued index for the key, zero if the key has no
// ledger row yet.
func (s *NonceLedgerStore) Next(ctx context.Context, pubkey string, scheme dto.KeyScheme) (int64, error) {
	var row models.NonceLedger
	err := s.db.WithContext(ctx).
		Where("pubkey = ? AND key_scheme = ?", pubkey, string(scheme)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.NextIndex, nil
}

// Advance moves the mark from expectedNext to newNext. The write commits
// before Advance returns; a mark that no longer equals expectedNext yields
// nonce.ErrStaleMark.
func (s *NonceLedgerStore) Advance(ctx context.Context, pubkey string, scheme dto.KeyScheme, expectedNext, newNext int64) error {
	res := s.db.WithContext(ctx).
		Model(&models.NonceLedger{}).
		Where("pubkey = ? AND key_scheme = ? AND next_index = ?", pubkey, string(scheme), expectedNext).
		Update("next_index", newNext)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if expectedNext == 0 {
		// First allocation for this key: the row may simply not exist yet.
		// Creation fails on the primary key if another writer got there
		// first, which is the stale case.
		err := s.db.WithContext(ctx).Create(&models.NonceLedger{
			Pubkey:    pubkey,
			KeyScheme: string(scheme),
			NextIndex: newNext,
		}).Error
		if err != nil {
			return nonce.ErrStaleMark
		}
		return nil
	}
	return nonce.ErrStaleMark
}
