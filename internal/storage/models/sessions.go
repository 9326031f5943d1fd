package models

import "time"

// SigningSession is the durable record of one signing session. Status,
// version and the snapshot round-trip exactly; the snapshot is the full
// wire view at the committed version.
type SigningSession struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	WalletID  string    `gorm:"type:varchar(100);index" json:"walletId"`
	Status    string    `gorm:"type:varchar(40)" json:"status"`
	Version   int64     `json:"version"`
	Snapshot  []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KeygenSession is the durable record of one keygen quorum.
type KeygenSession struct {
	ID        string    `gorm:"type:varchar(100);primary_key" json:"id"`
	Name      string    `json:"name"`
	Threshold int       `json:"threshold"`
	Total     int       `json:"total"`
	Status    string    `gorm:"type:varchar(40)" json:"status"`
	Message   string    `json:"message"`
	Members   []byte    `json:"-"` // JSON-encoded []dto.KeygenMember
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NonceLedger records the next unissued nonce index per (pubkey, scheme)
// pair. NextIndex is monotonically non-decreasing; it only moves through
// the guarded compare-and-advance in the ledger store.
type NonceLedger struct {
	Pubkey    string    `gorm:"type:varchar(200);primaryKey" json:"pubkey"`
	KeyScheme string    `gorm:"type:varchar(16);primaryKey" json:"keyScheme"`
	NextIndex int64     `gorm:"not null" json:"nextIndex"`
	UpdatedAt time.Time `json:"updatedAt"`
}
