package dto

import (
	"github.com/shopspring/decimal"

	"mpc-wallet/internal/mpcerr"
)

// SignatureRecidHex is a final signature in hex with its recovery id.
type SignatureRecidHex struct {
	R     string `json:"r"`
	S     string `json:"s"`
	Recid int    `json:"recid"`
}

// PartialSignatureBase64 is one party's contribution for a single hash.
type PartialSignatureBase64 struct {
	PartyID    int    `json:"party_id"`
	PartBase64 string `json:"part_base64"`
	SignedAt   string `json:"signed_at"`
}

// SigningHashResult is the wire view of one hash tracked by a session.
type SigningHashResult struct {
	Hash      string                   `json:"hash"`
	Nonce     int64                    `json:"nonce"`
	Parts     []PartialSignatureBase64 `json:"signing_parts_base64"`
	Signature *SignatureRecidHex       `json:"signature,omitempty"`
}

// SendRequest describes a native-coin transfer.
type SendRequest struct {
	ToAddress string          `json:"toAddress"`
	Amount    decimal.Decimal `json:"amount"`
}

// SendTokenRequest describes a token transfer.
type SendTokenRequest struct {
	ToAddress            string          `json:"toAddress"`
	TokenContractAddress string          `json:"tokenContractAddress"`
	Amount               decimal.Decimal `json:"amount"`
	Decimals             int             `json:"decimals"`
}

// EthContractRequest describes an Ethereum smart contract call.
type EthContractRequest struct {
	ToAddress string          `json:"toAddress"`
	Amount    decimal.Decimal `json:"amount"`
	GasLimit  decimal.Decimal `json:"gasLimit"`
	Data      string          `json:"data"`
}

// TransactionDetails is a tagged variant: Type selects exactly which one of
// the payload fields is populated. The schema modeled this as three optional
// fields on the request; the variant makes a double-populated request
// unrepresentable once validated.
type TransactionDetails struct {
	Type            RequestTransactionType `json:"requestTransactionType"`
	Send            *SendRequest           `json:"sendRequest,omitempty"`
	SendToken       *SendTokenRequest      `json:"sendTokenRequest,omitempty"`
	EthContractCall *EthContractRequest    `json:"ethSmartContractRequest,omitempty"`
}

// Validate checks that the discriminator is known and exactly the matching
// payload is set.
func (d *TransactionDetails) Validate() error {
	if err := d.Type.Valid(); err != nil {
		return err
	}
	populated := 0
	if d.Send != nil {
		populated++
	}
	if d.SendToken != nil {
		populated++
	}
	if d.EthContractCall != nil {
		populated++
	}
	if populated != 1 {
		return mpcerr.New(mpcerr.CodeInvalidRequest,
			"transaction details must populate exactly one payload, got %d", populated)
	}
	switch d.Type {
	case TxSend:
		if d.Send == nil {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "SEND request missing sendRequest payload")
		}
	case TxSendToken:
		if d.SendToken == nil {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "SEND_TOKEN request missing sendTokenRequest payload")
		}
	case TxEthContractCall:
		if d.EthContractCall == nil {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "ETH_SMART_CONTRACT_CALL request missing ethSmartContractRequest payload")
		}
	}
	return nil
}

// CreateSigningRequest creates a new signing session for a wallet.
type CreateSigningRequest struct {
	WalletID    string             `json:"walletId"`
	Blockchain  Blockchain         `json:"blockchain"`
	Coin        Coin               `json:"coin"`
	KeyScheme   KeyScheme          `json:"keyScheme"`
	Pubkey      string             `json:"pubkey"`
	FromAddress string             `json:"fromAddress"`
	Threshold   int                `json:"threshold"`
	Signers     []int              `json:"signers"`
	Hashes      []string           `json:"hashes"`
	Nonces      []int64            `json:"nonces,omitempty"`
	FeeLevel    FeeLevel           `json:"feeLevel"`
	Fee         *decimal.Decimal   `json:"fee,omitempty"`
	Transaction TransactionDetails `json:"transaction"`
	UserID      string             `json:"userId,omitempty"`
}

// SubmitPartialRequest submits one party's partial signature for one hash.
type SubmitPartialRequest struct {
	Hash       string `json:"hash"`
	PartyID    int    `json:"party_id"`
	PartBase64 string `json:"part_base64"`
	Version    int64  `json:"version"`
	UserID     string `json:"userId,omitempty"`
}

// SigningSessionView is the wire view of a full signing session.
type SigningSessionView struct {
	ID          string              `json:"id"`
	WalletID    string              `json:"walletId"`
	Blockchain  Blockchain          `json:"blockchain"`
	Coin        Coin                `json:"coin"`
	KeyScheme   KeyScheme           `json:"keyScheme"`
	Pubkey      string              `json:"pubkey"`
	FromAddress string              `json:"fromAddress"`
	Threshold   int                 `json:"threshold"`
	Signers     []int               `json:"signers"`
	Status      SigningStatus       `json:"status"`
	Message     string              `json:"message,omitempty"`
	Hashes      []SigningHashResult `json:"signingHashes"`
	TxID        string              `json:"transactionHash,omitempty"`
	FeeLevel    FeeLevel            `json:"feeLevel"`
	Fee         *decimal.Decimal    `json:"fee,omitempty"`
	Version     int64               `json:"version"`
	CreatedAt   string              `json:"createdAt"`
}

// SigningListResult lists sessions for one wallet.
type SigningListResult struct {
	Signings []SigningSessionView `json:"signings"`
}

// TransactionBroadcasted reports that a signed transaction reached the
// network. Sent by the broadcast collaborator.
type TransactionBroadcasted struct {
	SigningSessionID string `json:"signingSessionId"`
	TransactionID    string `json:"transactionId"`
	Version          int64  `json:"version"`
}

// SigningSessionFailed reports an external failure for a session.
type SigningSessionFailed struct {
	SigningID string `json:"signingId"`
	Error     string `json:"error"`
}
