package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is a registered hot wallet: the quorum that generated it plus the
// users allowed to request signatures from it.
type Wallet struct {
	ID              string      `gorm:"type:uuid;primary_key" json:"id"`
	KeygenID        string      `gorm:"type:varchar(100);uniqueIndex" json:"keygenId"`
	Name            string      `json:"name"`
	Threshold       int         `json:"threshold"`
	TotalMembers    int         `json:"totalMembers"`
	Members         []byte      `json:"-"` // JSON-encoded []dto.KeygenMember
	AuthorizedUsers string      `json:"-"` // comma-separated user ids
	IsMainnet       bool        `json:"isMainnet"`
	IsSegwit        bool        `json:"isSegwit"`
	Keys            []WalletKey `gorm:"foreignKey:WalletID;references:ID" json:"keys"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// WalletKey holds one party's encrypted key share for one scheme, together
// with the nonce window reserved at keygen time.
type WalletKey struct {
	gorm.Model
	WalletID       string `gorm:"type:uuid;index" json:"-"`
	PartyID        int    `json:"partyId"`
	Pubkey         string `gorm:"type:varchar(200);index" json:"pubkey"`
	KeyScheme      string `gorm:"type:varchar(16)" json:"keyScheme"`
	EncryptedKey   string `json:"-"`
	EncryptedNonce string `json:"-"`
	Algorithm      string `gorm:"type:varchar(64)" json:"algorithm"`
	NonceStart     int64  `json:"nonceStartIndex"`
	NonceSize      int64  `json:"nonceSize"`
}
