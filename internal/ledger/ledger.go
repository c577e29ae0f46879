package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
	"github.com/pymthouse/gateway/pkg/models"
)

// Store is the persistence surface the ledger needs. AddCredit and
// DeductCredit must be atomic against concurrent mutations of the same end
// user's balance; the database repository implements them as single
// conditional updates.
type Store interface {
	AddCredit(ctx context.Context, endUserID string, amount *big.Int) error
	DeductCredit(ctx context.Context, endUserID string, amount *big.Int) (bool, error)
	GetCreditBalance(ctx context.Context, endUserID string) (*big.Int, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
}

// Ledger owns end-user credit balances. Balances are non-negative integers in
// wei; no operation can drive one below zero.
type Ledger struct {
	store  Store
	logger *logging.Logger
}

// NewLedger creates a credit ledger
func NewLedger(store Store, logger *logging.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

func validateAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("amount is required")
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("amount must be non-negative, got %s", amount.String())
	}
	return nil
}

// Add increases an end user's balance. A missing end user is an error, not a
// silent no-op.
func (l *Ledger) Add(ctx context.Context, endUserID string, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	return l.store.AddCredit(ctx, endUserID, amount)
}

// Deduct decreases an end user's balance only when it covers the amount.
// Returns false, with the balance untouched, when it does not.
func (l *Ledger) Deduct(ctx context.Context, endUserID string, amount *big.Int) (bool, error) {
	if err := validateAmount(amount); err != nil {
		return false, err
	}

	ok, err := l.store.DeductCredit(ctx, endUserID, amount)
	switch {
	case err != nil:
		metrics.RecordCreditDeduction("error")
	case ok:
		metrics.RecordCreditDeduction("success")
	default:
		metrics.RecordCreditDeduction("insufficient")
	}
	return ok, err
}

// HasSufficientBalance is the read-only pre-flight form of the deduct guard.
func (l *Ledger) HasSufficientBalance(ctx context.Context, endUserID string, amount *big.Int) (bool, error) {
	if err := validateAmount(amount); err != nil {
		return false, err
	}

	balance, err := l.store.GetCreditBalance(ctx, endUserID)
	if err != nil {
		return false, err
	}

	return balance.Cmp(amount) >= 0, nil
}

// Credit tops up an end user's prepaid balance and appends the corresponding
// prepay_credit ledger entry.
func (l *Ledger) Credit(ctx context.Context, endUserID string, amount *big.Int, txHash string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	if err := l.store.AddCredit(ctx, endUserID, amount); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		EndUserID: endUserID,
		Type:      models.TransactionTypePrepayCredit,
		AmountWei: new(big.Int).Set(amount),
		TxHash:    txHash,
		Status:    models.TransactionStatusConfirmed,
	}
	if err := l.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("credited balance but failed to record transaction: %w", err)
	}

	l.logger.WithEndUserID(endUserID).Infof("Credited %s wei", amount.String())
	return txn, nil
}
