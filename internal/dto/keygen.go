package dto

// KeygenMember identifies one participant in a keygen session. Party ids
// are 1-based and unique within a session.
type KeygenMember struct {
	PartyID   int    `json:"party_id"`
	PartyName string `json:"party_name"`
}

// KeygenProgress reports how far a keygen session has advanced.
type KeygenProgress struct {
	Members  []KeygenMember `json:"members"`
	Progress int            `json:"progress"`
}

// CreateKeygenRequest starts a new keygen session.
type CreateKeygenRequest struct {
	KeygenID        string `json:"keygenId"`
	NumberOfMembers int    `json:"numberOfMembers"`
	Threshold       int    `json:"threshold"`
	WalletName      string `json:"walletName"`
}

// JoinKeygenRequest registers one member with a keygen session.
type JoinKeygenRequest struct {
	Member KeygenMember `json:"member"`
}

// EncryptedLocalKey is a party's encrypted key share. The plaintext never
// leaves the encryption collaborator.
type EncryptedLocalKey struct {
	Pubkey         string `json:"pubkey"`
	EncryptedKey   string `json:"encryptedKey"`
	EncryptedNonce string `json:"encryptedNonce"`
	Algorithm      string `json:"algorithm"`
}

// EncryptedKeygenWithScheme pairs an encrypted share with the scheme it was
// generated for and the nonce window reserved at keygen time.
type EncryptedKeygenWithScheme struct {
	EncryptedLocalKey EncryptedLocalKey `json:"encryptedLocalKey"`
	NonceStartIndex   int64             `json:"nonceStartIndex"`
	NonceSize         int64             `json:"nonceSize"`
	KeyScheme         KeyScheme         `json:"keyScheme"`
}

// EncryptedKeygenResult is one party's complete keygen output.
type EncryptedKeygenResult struct {
	PartyID                   int                         `json:"party_id"`
	EncryptedKeygenWithScheme []EncryptedKeygenWithScheme `json:"encryptedKeygenWithScheme"`
}

// WalletCreationConfigPubkey is a wallet public key for one scheme.
type WalletCreationConfigPubkey struct {
	Pubkey    string    `json:"pubkey"`
	KeyScheme KeyScheme `json:"keyScheme"`
}

// WalletCreationConfig configures address derivation for a created wallet.
type WalletCreationConfig struct {
	Pubkeys   []WalletCreationConfigPubkey `json:"pubkeys"`
	IsMainnet bool                         `json:"isMainnet"`
	IsSegwit  bool                         `json:"isSegwit"`
}

// RegisterHotWalletRequest stores a completed keygen as a hot wallet. The
// key material arrives already encrypted.
type RegisterHotWalletRequest struct {
	KeygenID              string                `json:"keygenId"`
	NumberOfMembers       int                   `json:"numberOfMembers"`
	Threshold             int                   `json:"threshold"`
	WalletName            string                `json:"walletName"`
	PartyID               int                   `json:"partyId"`
	Members               []KeygenMember        `json:"members"`
	EncryptedKeygenResult EncryptedKeygenResult `json:"encryptedKeygenResult"`
	WalletCreationConfig  WalletCreationConfig  `json:"walletCreationConfig"`
	AuthorizedUsers       []string              `json:"authorizedUsers"`
}
