package models

import (
	"math/big"
	"time"
)

// SignerStatus is the authoritative state of the remote signer.
type SignerStatus string

const (
	SignerStatusRunning SignerStatus = "running"
	SignerStatusStopped SignerStatus = "stopped"
	SignerStatusError   SignerStatus = "error"
)

// BillingMode selects how end users are charged.
type BillingMode string

const (
	BillingModeDelegated BillingMode = "delegated"
	BillingModePrepay    BillingMode = "prepay"
)

// SignerConfigID is the primary key of the singleton signer_config row.
const SignerConfigID = "default"

// SignerConfig describes the platform's remote signer. Status, EthAddress and
// LastError are owned by the status reconciler; everything else is mutated by
// configuration updates.
type SignerConfig struct {
	ID                string       `json:"id" db:"id"`
	Name              string       `json:"name" db:"name"`
	EthAddress        string       `json:"eth_address,omitempty" db:"eth_address"`
	Network           string       `json:"network" db:"network"`
	EthRPCURL         string       `json:"eth_rpc_url" db:"eth_rpc_url"`
	SignerPort        int          `json:"signer_port" db:"signer_port"`
	Status            SignerStatus `json:"status" db:"status"`
	DepositWei        *big.Int     `json:"deposit_wei" db:"deposit_wei"`
	ReserveWei        *big.Int     `json:"reserve_wei" db:"reserve_wei"`
	DefaultCutPercent float64      `json:"default_cut_percent" db:"default_cut_percent"`
	BillingMode       BillingMode  `json:"billing_mode" db:"billing_mode"`
	LastStartedAt     *time.Time   `json:"last_started_at,omitempty" db:"last_started_at"`
	LastError         string       `json:"last_error,omitempty" db:"last_error"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
}
