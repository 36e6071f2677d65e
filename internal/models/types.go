package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind selects what a run sweeps.
type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetToken  AssetKind = "token"
)

// FeeBid is the pair of per-gas fee limits attached to a submission.
// Legacy networks use MaxFeePerGas as the gas price.
type FeeBid struct {
	MaxFeePerGas         *big.Int `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas"`
}

// IsZero reports whether the bid cannot pay for anything.
func (b FeeBid) IsZero() bool {
	return b.MaxFeePerGas == nil || b.MaxFeePerGas.Sign() <= 0
}

// FeeSample is the node's view of current fee conditions.
// It is either an EIP1559Sample or a LegacySample.
type FeeSample interface {
	isFeeSample()
}

// EIP1559Sample carries a suggested fee ceiling and priority tip.
type EIP1559Sample struct {
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// LegacySample carries a single gas price.
type LegacySample struct {
	GasPrice *big.Int
}

func (EIP1559Sample) isFeeSample() {}
func (LegacySample) isFeeSample()  {}

// BlockInfo is the subset of a block header the sweeper cares about.
// BaseFee is nil on networks without a base fee.
type BlockInfo struct {
	Number  uint64
	BaseFee *big.Int
	Time    uint64
}

// NonceTag selects which account nonce to read.
type NonceTag int

const (
	NoncePending NonceTag = iota
	NonceConfirmed
)

// TxStatus is the node's view of a submitted transaction.
type TxStatus string

const (
	TxMined   TxStatus = "mined"
	TxPending TxStatus = "pending"
	TxAbsent  TxStatus = "absent"
)

// TransferRequest is a fully priced transfer ready to be signed.
type TransferRequest struct {
	To       common.Address
	Amount   *big.Int
	Nonce    uint64
	GasLimit uint64
	Bid      FeeBid
}

// TransferEvent is an incoming token Transfer log for the swept account.
type TransferEvent struct {
	TxHash      common.Hash
	BlockNumber uint64
	From        common.Address
	Amount      *big.Int
}

// Confirmation is the outcome of a mined transaction.
type Confirmation struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Reverted    bool
}

// TokenMeta describes the swept token for display.
type TokenMeta struct {
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// PendingSubmission is the one broadcast transaction awaiting confirmation.
type PendingSubmission struct {
	TxHash      common.Hash `json:"txHash"`
	Nonce       uint64      `json:"nonce"`
	Amount      *big.Int    `json:"amount"`
	Bid         FeeBid      `json:"bid"`
	AttemptID   string      `json:"attemptId"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// TriggerReason names what woke the sweeper up.
type TriggerReason string

const (
	TriggerStartup          TriggerReason = "startup"
	TriggerNewBlock         TriggerReason = "newBlock"
	TriggerIncomingTransfer TriggerReason = "incomingTransfer"
	TriggerPollTimer        TriggerReason = "pollTimer"
	TriggerManual           TriggerReason = "manual"
)

// Trigger is one wake-up signal.
type Trigger struct {
	Reason TriggerReason
	At     time.Time
}

// Outcome classifies a sweep attempt.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeSubmitted Outcome = "submitted"
	OutcomeFailed    Outcome = "failed"
)

// Skip reasons.
const (
	SkipBusy               = "busy"
	SkipPendingExists      = "pendingExists"
	SkipBalanceUnavailable = "balance unavailable"
	SkipFeeUnavailable     = "fee estimate unavailable"
	SkipInsufficient       = "insufficient balance"
	SkipBelowDust          = "below dust threshold"
	SkipInsufficientGas    = "insufficient native balance for gas"
)

// SweepResult is the outcome of one AttemptSweep call.
type SweepResult struct {
	AttemptID  string
	Trigger    TriggerReason
	Outcome    Outcome
	Reason     string
	TxHash     common.Hash
	Amount     *big.Int
	Bid        FeeBid
	Attempts   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta carries list metadata.
type APIMeta struct {
	Total int `json:"total"`
	Limit int `json:"limit,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
