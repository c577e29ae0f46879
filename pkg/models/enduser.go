package models

import (
	"math/big"
	"time"
)

// EndUser represents a paying principal metered by the gateway.
// Credit balances are wei amounts in the smallest currency unit; they are
// mutated only through the ledger or administrative edits, never deleted.
type EndUser struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name,omitempty" db:"name"`
	Email         string    `json:"email,omitempty" db:"email"`
	PrivyDID      string    `json:"privy_did,omitempty" db:"privy_did"`
	WalletAddress string    `json:"wallet_address,omitempty" db:"wallet_address"`
	CreditBalance *big.Int  `json:"credit_balance_wei" db:"credit_balance_wei"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
