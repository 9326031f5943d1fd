package storage

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mpc-wallet/internal/keygen"
	"mpc-wallet/internal/signing"
)

// SessionStore persists session snapshots. The registry calls these hooks
// under the record lock, so rows are written in version order per session.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// PersistSigning upserts a signing session at its committed version. The
// snapshot is the full wire view, so status, version and signers round-trip
// exactly.
func (s *SessionStore) PersistSigning(ctx context.Context, sess *signing.Session, version int64) error {
	view := sess.View(version)
	snapshot, err := json.Marshal(view)
	if err != nil {
		return err
	}
	row := map[string]interface{}{
		"id":        sess.ID,
		"wallet_id": sess.WalletID,
		"status":    string(sess.Status),
		"version":   version,
		"snapshot":  snapshot,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "version", "snapshot"}),
		}).
		Table("signing_sessions").
		Create(row).Error
}

// PersistKeygen upserts a keygen session.
func (s *SessionStore) PersistKeygen(ctx context.Context, sess *keygen.Session, _ int64) error {
	members, err := json.Marshal(sess.Members)
	if err != nil {
		return err
	}
	row := map[string]interface{}{
		"id":        sess.ID,
		"name":      sess.WalletName,
		"threshold": sess.Threshold,
		"total":     sess.Total,
		"status":    string(sess.Status),
		"message":   sess.Message,
		"members":   members,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "message", "members"}),
		}).
		Table("keygen_sessions").
		Create(row).Error
}
