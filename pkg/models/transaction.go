package models

import (
	"math/big"
	"time"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypePrepayCredit TransactionType = "prepay_credit"
	TransactionTypeUsage        TransactionType = "usage"
	TransactionTypePayout       TransactionType = "payout"
	TransactionTypeRefund       TransactionType = "refund"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger entry recording money movement.
// Rows are never mutated after creation.
type Transaction struct {
	ID                 string            `json:"id" db:"id"`
	EndUserID          string            `json:"end_user_id,omitempty" db:"end_user_id"`
	StreamSessionID    string            `json:"stream_session_id,omitempty" db:"stream_session_id"`
	Type               TransactionType   `json:"type" db:"type"`
	AmountWei          *big.Int          `json:"amount_wei" db:"amount_wei"`
	PlatformCutPercent float64           `json:"platform_cut_percent,omitempty" db:"platform_cut_percent"`
	PlatformCutWei     *big.Int          `json:"platform_cut_wei,omitempty" db:"platform_cut_wei"`
	TxHash             string            `json:"tx_hash,omitempty" db:"tx_hash"`
	Status             TransactionStatus `json:"status" db:"status"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
}
