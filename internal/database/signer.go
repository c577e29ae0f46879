package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pymthouse/gateway/pkg/models"
)

// GetSignerConfig retrieves the singleton signer configuration row
func (r *Repository) GetSignerConfig(ctx context.Context) (*models.SignerConfig, error) {
	query := `
		SELECT id, name, eth_address, network, eth_rpc_url, signer_port, status,
		       deposit_wei::text, reserve_wei::text, default_cut_percent, billing_mode,
		       last_started_at, last_error, created_at
		FROM signer_config
		WHERE id = $1
	`

	var (
		cfg         models.SignerConfig
		ethAddress  sql.NullString
		lastError   sql.NullString
		lastStarted sql.NullTime
		deposit     string
		reserve     string
	)

	err := r.db.Pool.QueryRow(ctx, query, models.SignerConfigID).Scan(
		&cfg.ID, &cfg.Name, &ethAddress, &cfg.Network, &cfg.EthRPCURL, &cfg.SignerPort,
		&cfg.Status, &deposit, &reserve, &cfg.DefaultCutPercent, &cfg.BillingMode,
		&lastStarted, &lastError, &cfg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signer config: %w", err)
	}

	cfg.EthAddress = ethAddress.String
	cfg.LastError = lastError.String
	if lastStarted.Valid {
		t := lastStarted.Time
		cfg.LastStartedAt = &t
	}
	if cfg.DepositWei, err = parseWei(deposit); err != nil {
		return nil, err
	}
	if cfg.ReserveWei, err = parseWei(reserve); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UpdateSignerConfig updates operator-editable configuration fields.
// Status, address and error are owned by the reconciler and not touched here.
func (r *Repository) UpdateSignerConfig(ctx context.Context, cfg *models.SignerConfig) error {
	query := `
		UPDATE signer_config
		SET name = $2, network = $3, eth_rpc_url = $4, signer_port = $5,
		    deposit_wei = $6::numeric, reserve_wei = $7::numeric,
		    default_cut_percent = $8, billing_mode = $9
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		models.SignerConfigID, cfg.Name, cfg.Network, cfg.EthRPCURL, cfg.SignerPort,
		weiArg(cfg.DepositWei), weiArg(cfg.ReserveWei),
		cfg.DefaultCutPercent, cfg.BillingMode,
	)
	if err != nil {
		return fmt.Errorf("failed to update signer config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateSignerObservedState persists the reconciler-owned fields: status,
// reported address and last error. Empty strings store as NULL.
func (r *Repository) UpdateSignerObservedState(ctx context.Context, status models.SignerStatus, ethAddress, lastError string) error {
	query := `
		UPDATE signer_config
		SET status = $2, eth_address = NULLIF($3, ''), last_error = NULLIF($4, '')
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, models.SignerConfigID, status, ethAddress, lastError)
	if err != nil {
		return fmt.Errorf("failed to update signer observed state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
