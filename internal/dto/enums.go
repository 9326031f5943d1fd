package dto

import "mpc-wallet/internal/mpcerr"

// KeyScheme is the signature scheme a key was generated for.
type KeyScheme string

const (
	ECDSA KeyScheme = "ECDSA"
	EDDSA KeyScheme = "EDDSA"
)

func (s KeyScheme) Valid() bool { return s == ECDSA || s == EDDSA }

// Blockchain identifies a supported chain. The engine never interprets
// these beyond routing; transaction building lives with the blockchain
// collaborator.
type Blockchain string

const (
	Bitcoin  Blockchain = "BITCOIN"
	Ethereum Blockchain = "ETHEREUM"
	Polygon  Blockchain = "POLYGON"
	Cardano  Blockchain = "CARDANO"
)

// Coin is a supported currency.
type Coin string

const (
	BTC   Coin = "BTC"
	ETH   Coin = "ETH"
	MATIC Coin = "MATIC"
	USDT  Coin = "USDT"
	ADA   Coin = "ADA"
)

// FeeLevel selects the fee/speed tradeoff for a transaction request.
type FeeLevel string

const (
	FeeLow    FeeLevel = "LOW"
	FeeMedium FeeLevel = "MEDIUM"
	FeeHigh   FeeLevel = "HIGH"
)

// SigningStatus is the lifecycle state of a signing session.
//
//	CREATED -> IN_PROGRESS -> COMPLETED -> BROADCASTED
//
// Any non-terminal state may move to FAILED. BROADCASTED and FAILED are
// terminal and accept no further mutation.
type SigningStatus string

const (
	SigningCreated     SigningStatus = "SIGNING_SESSION_CREATED"
	SigningInProgress  SigningStatus = "SIGNING_IN_PROGRESS"
	SigningCompleted   SigningStatus = "SIGNING_COMPLETED"
	SigningFailed      SigningStatus = "SIGNING_FAILED"
	SigningBroadcasted SigningStatus = "SIGNING_BROADCASTED"
)

// Terminal reports whether no further mutation is accepted.
func (s SigningStatus) Terminal() bool {
	return s == SigningFailed || s == SigningBroadcasted
}

// KeygenStatus is the lifecycle state of a keygen session. COMPLETED and
// FAILED are terminal.
type KeygenStatus string

const (
	KeygenCreated   KeygenStatus = "KEYGEN_SESSION_CREATED"
	KeygenCompleted KeygenStatus = "KEYGEN_COMPLETED"
	KeygenFailed    KeygenStatus = "KEYGEN_FAILED"
)

func (s KeygenStatus) Terminal() bool {
	return s == KeygenCompleted || s == KeygenFailed
}

// RequestTransactionType discriminates the transaction payload of a signing
// request.
type RequestTransactionType string

const (
	TxSend            RequestTransactionType = "SEND"
	TxSendToken       RequestTransactionType = "SEND_TOKEN"
	TxEthContractCall RequestTransactionType = "ETH_SMART_CONTRACT_CALL"
)

func (t RequestTransactionType) Valid() error {
	switch t {
	case TxSend, TxSendToken, TxEthContractCall:
		return nil
	}
	return mpcerr.New(mpcerr.CodeInvalidRequest, "unknown transaction type %q", string(t))
}
