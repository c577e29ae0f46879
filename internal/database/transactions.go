package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pymthouse/gateway/pkg/models"
)

// CreateTransaction appends a ledger entry. Transactions are append-only and
// never updated after creation.
func (r *Repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}

	query := `
		INSERT INTO transactions (id, end_user_id, stream_session_id, type, amount_wei,
			platform_cut_percent, platform_cut_wei, tx_hash, status)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5::numeric,
			NULLIF($6, 0.0), $7::numeric, NULLIF($8, ''), $9)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		txn.ID, txn.EndUserID, txn.StreamSessionID, txn.Type, weiArg(txn.AmountWei),
		txn.PlatformCutPercent, weiArgOpt(txn.PlatformCutWei), txn.TxHash, txn.Status,
	).Scan(&txn.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		txn        models.Transaction
		endUserID  sql.NullString
		sessionID  sql.NullString
		cutPercent sql.NullFloat64
		cutWei     sql.NullString
		txHash     sql.NullString
		amount     string
	)

	err := row.Scan(
		&txn.ID, &endUserID, &sessionID, &txn.Type, &amount,
		&cutPercent, &cutWei, &txHash, &txn.Status, &txn.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.EndUserID = endUserID.String
	txn.StreamSessionID = sessionID.String
	txn.PlatformCutPercent = cutPercent.Float64
	txn.TxHash = txHash.String
	if txn.AmountWei, err = parseWei(amount); err != nil {
		return nil, err
	}
	if cutWei.Valid {
		if txn.PlatformCutWei, err = parseWei(cutWei.String); err != nil {
			return nil, err
		}
	}

	return &txn, nil
}

// ListTransactions retrieves ledger entries, optionally filtered by end user
func (r *Repository) ListTransactions(ctx context.Context, endUserID string, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT id, end_user_id, stream_session_id, type, amount_wei::text,
		       platform_cut_percent, platform_cut_wei::text, tx_hash, status, created_at
		FROM transactions
		WHERE ($1 = '' OR end_user_id = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, endUserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}
