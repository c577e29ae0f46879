package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pymthouse/gateway/pkg/models"
)

// CreateEndUser creates a new end user record
func (r *Repository) CreateEndUser(ctx context.Context, user *models.EndUser) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreditBalance == nil {
		user.CreditBalance = big.NewInt(0)
	}

	query := `
		INSERT INTO end_users (id, name, email, privy_did, wallet_address, credit_balance_wei, is_active)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6::numeric, $7)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PrivyDID, user.WalletAddress,
		weiArg(user.CreditBalance), user.IsActive,
	).Scan(&user.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create end user: %w", err)
	}

	return nil
}

func scanEndUser(row pgx.Row) (*models.EndUser, error) {
	var (
		user    models.EndUser
		name    sql.NullString
		email   sql.NullString
		privy   sql.NullString
		wallet  sql.NullString
		balance string
	)

	err := row.Scan(
		&user.ID, &name, &email, &privy, &wallet,
		&balance, &user.IsActive, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan end user: %w", err)
	}

	user.Name = name.String
	user.Email = email.String
	user.PrivyDID = privy.String
	user.WalletAddress = wallet.String
	user.CreditBalance, err = parseWei(balance)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

const endUserColumns = `id, name, email, privy_did, wallet_address, credit_balance_wei::text, is_active, created_at`

// GetEndUser retrieves an end user by ID
func (r *Repository) GetEndUser(ctx context.Context, id string) (*models.EndUser, error) {
	query := `SELECT ` + endUserColumns + ` FROM end_users WHERE id = $1`
	return scanEndUser(r.db.Pool.QueryRow(ctx, query, id))
}

// GetEndUserByPrivyDID retrieves an end user by external identity binding
func (r *Repository) GetEndUserByPrivyDID(ctx context.Context, did string) (*models.EndUser, error) {
	query := `SELECT ` + endUserColumns + ` FROM end_users WHERE privy_did = $1`
	return scanEndUser(r.db.Pool.QueryRow(ctx, query, did))
}

// ListEndUsers retrieves end users with pagination
func (r *Repository) ListEndUsers(ctx context.Context, limit, offset int) ([]*models.EndUser, error) {
	query := `SELECT ` + endUserColumns + ` FROM end_users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list end users: %w", err)
	}
	defer rows.Close()

	var users []*models.EndUser
	for rows.Next() {
		user, err := scanEndUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateEndUser updates mutable profile fields of an end user
func (r *Repository) UpdateEndUser(ctx context.Context, user *models.EndUser) error {
	query := `
		UPDATE end_users
		SET name = NULLIF($2, ''), email = NULLIF($3, ''), wallet_address = NULLIF($4, ''), is_active = $5
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		user.ID, user.Name, user.Email, user.WalletAddress, user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update end user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// AddCredit atomically increases an end user's credit balance.
func (r *Repository) AddCredit(ctx context.Context, endUserID string, amount *big.Int) error {
	query := `
		UPDATE end_users
		SET credit_balance_wei = credit_balance_wei + $2::numeric
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, endUserID, weiArg(amount))
	if err != nil {
		return fmt.Errorf("failed to add credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeductCredit atomically decreases an end user's credit balance.
// The balance check and the write are one conditional UPDATE, so concurrent
// deducts for the same end user cannot overdraw the balance.
func (r *Repository) DeductCredit(ctx context.Context, endUserID string, amount *big.Int) (bool, error) {
	query := `
		UPDATE end_users
		SET credit_balance_wei = credit_balance_wei - $2::numeric
		WHERE id = $1 AND credit_balance_wei >= $2::numeric
	`

	tag, err := r.db.Pool.Exec(ctx, query, endUserID, weiArg(amount))
	if err != nil {
		return false, fmt.Errorf("failed to deduct credit: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetCreditBalance reads an end user's current balance
func (r *Repository) GetCreditBalance(ctx context.Context, endUserID string) (*big.Int, error) {
	var balance string
	query := `SELECT credit_balance_wei::text FROM end_users WHERE id = $1`

	err := r.db.Pool.QueryRow(ctx, query, endUserID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return parseWei(balance)
}
