package models

import (
	"math/big"
	"time"
)

// StreamStatus is the lifecycle state of a metering session.
type StreamStatus string

const (
	StreamStatusActive StreamStatus = "active"
	StreamStatusEnded  StreamStatus = "ended"
	StreamStatusError  StreamStatus = "error"
)

// StreamSession meters one continuous streaming job. At most one session per
// manifest ID may be active at a time; totals only ever increase. A manifest
// that ends and reconnects gets a fresh session row.
type StreamSession struct {
	ID                  string       `json:"id" db:"id"`
	EndUserID           string       `json:"end_user_id,omitempty" db:"end_user_id"`
	BearerTokenHash     string       `json:"-" db:"bearer_token_hash"`
	ManifestID          string       `json:"manifest_id" db:"manifest_id"`
	OrchestratorAddress string       `json:"orchestrator_address,omitempty" db:"orchestrator_address"`
	TotalPixels         *big.Int     `json:"total_pixels" db:"total_pixels"`
	TotalFeeWei         *big.Int     `json:"total_fee_wei" db:"total_fee_wei"`
	PricePerUnit        int64        `json:"price_per_unit" db:"price_per_unit"`
	PixelsPerUnit       int64        `json:"pixels_per_unit" db:"pixels_per_unit"`
	Status              StreamStatus `json:"status" db:"status"`
	StartedAt           time.Time    `json:"started_at" db:"started_at"`
	LastPaymentAt       *time.Time   `json:"last_payment_at,omitempty" db:"last_payment_at"`
	EndedAt             *time.Time   `json:"ended_at,omitempty" db:"ended_at"`
}
