package dto

// GenerateNonceRequest asks for a window of unused nonce indexes for one
// (pubkey, scheme) pair. The engine decides the start; clients only size
// the window.
type GenerateNonceRequest struct {
	Pubkey    string    `json:"pubkey"`
	KeyScheme KeyScheme `json:"keyScheme"`
	NonceSize int64     `json:"nonceSize"`
}

// GenerateNonceResponse carries the granted half-open window
// [NonceStartIndex, NonceStartIndex+NonceSize). Windows for one key never
// overlap across calls.
type GenerateNonceResponse struct {
	Pubkey          string    `json:"pubkey"`
	KeyScheme       KeyScheme `json:"keyScheme"`
	NonceStartIndex int64     `json:"nonceStartIndex"`
	NonceSize       int64     `json:"nonceSize"`
}
