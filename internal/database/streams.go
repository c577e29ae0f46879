package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pymthouse/gateway/pkg/models"
)

const streamSessionColumns = `id, end_user_id, bearer_token_hash, manifest_id, orchestrator_address,
	total_pixels::text, total_fee_wei::text, price_per_unit, pixels_per_unit, status,
	started_at, last_payment_at, ended_at`

func scanStreamSession(row pgx.Row) (*models.StreamSession, error) {
	var (
		session     models.StreamSession
		endUserID   sql.NullString
		tokenHash   sql.NullString
		orchAddress sql.NullString
		totalPixels string
		totalFee    string
		lastPayment sql.NullTime
		endedAt     sql.NullTime
	)

	err := row.Scan(
		&session.ID, &endUserID, &tokenHash, &session.ManifestID, &orchAddress,
		&totalPixels, &totalFee, &session.PricePerUnit, &session.PixelsPerUnit,
		&session.Status, &session.StartedAt, &lastPayment, &endedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stream session: %w", err)
	}

	session.EndUserID = endUserID.String
	session.BearerTokenHash = tokenHash.String
	session.OrchestratorAddress = orchAddress.String
	if lastPayment.Valid {
		t := lastPayment.Time
		session.LastPaymentAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	if session.TotalPixels, err = parseWei(totalPixels); err != nil {
		return nil, err
	}
	if session.TotalFeeWei, err = parseWei(totalFee); err != nil {
		return nil, err
	}

	return &session, nil
}

// GetActiveStreamSessionForUpdate locks and returns the active session for a
// manifest, if one exists. Must run inside a transaction; the row lock
// serializes concurrent usage increments for the same manifest.
func (r *Repository) GetActiveStreamSessionForUpdate(ctx context.Context, q Querier, manifestID string) (*models.StreamSession, error) {
	query := `SELECT ` + streamSessionColumns + ` FROM stream_sessions
		WHERE manifest_id = $1 AND status = 'active' FOR UPDATE`
	return scanStreamSession(q.QueryRow(ctx, query, manifestID))
}

// InsertStreamSession creates a new metering session
func (r *Repository) InsertStreamSession(ctx context.Context, q Querier, session *models.StreamSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = models.StreamStatusActive
	}

	query := `
		INSERT INTO stream_sessions (id, end_user_id, bearer_token_hash, manifest_id,
			orchestrator_address, total_pixels, total_fee_wei, price_per_unit, pixels_per_unit,
			status, last_payment_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), $6::numeric, $7::numeric, $8, $9, $10, $11)
		RETURNING started_at
	`

	now := time.Now().UTC()
	session.LastPaymentAt = &now

	err := q.QueryRow(ctx, query,
		session.ID, session.EndUserID, session.BearerTokenHash, session.ManifestID,
		session.OrchestratorAddress, weiArg(session.TotalPixels), weiArg(session.TotalFeeWei),
		session.PricePerUnit, session.PixelsPerUnit, session.Status, now,
	).Scan(&session.StartedAt)

	if err != nil {
		return fmt.Errorf("failed to insert stream session: %w", err)
	}

	return nil
}

// AddStreamSessionUsage folds a usage increment into a session's running
// totals and refreshes its last payment timestamp.
func (r *Repository) AddStreamSessionUsage(ctx context.Context, q Querier, sessionID string, pixels, feeWei *big.Int) error {
	query := `
		UPDATE stream_sessions
		SET total_pixels = total_pixels + $2::numeric,
		    total_fee_wei = total_fee_wei + $3::numeric,
		    last_payment_at = now()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, sessionID, weiArg(pixels), weiArg(feeWei))
	if err != nil {
		return fmt.Errorf("failed to add stream session usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// EndActiveStreamSession closes the active session for a manifest with the
// given terminal status. Returns whether an active session existed.
func (r *Repository) EndActiveStreamSession(ctx context.Context, manifestID string, status models.StreamStatus) (bool, error) {
	query := `
		UPDATE stream_sessions
		SET status = $2, ended_at = now()
		WHERE manifest_id = $1 AND status = 'active'
	`

	tag, err := r.db.Pool.Exec(ctx, query, manifestID, status)
	if err != nil {
		return false, fmt.Errorf("failed to end stream session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListStreamSessions retrieves sessions, optionally filtered by end user
func (r *Repository) ListStreamSessions(ctx context.Context, endUserID string, limit, offset int) ([]*models.StreamSession, error) {
	query := `SELECT ` + streamSessionColumns + ` FROM stream_sessions
		WHERE ($1 = '' OR end_user_id = $1)
		ORDER BY started_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, endUserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list stream sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.StreamSession
	for rows.Next() {
		session, err := scanStreamSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// UsageTotals aggregates metering counters across all sessions, for the
// usage reporting worker.
type UsageTotals struct {
	ActiveStreams     int
	TotalStreams      int
	TotalPixels       *big.Int
	TotalFeeWei       *big.Int
	TotalTransactions int
}

// GetUsageTotals computes platform-wide usage totals
func (r *Repository) GetUsageTotals(ctx context.Context) (*UsageTotals, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*),
			COALESCE(SUM(total_pixels), 0)::text,
			COALESCE(SUM(total_fee_wei), 0)::text,
			(SELECT COUNT(*) FROM transactions)
		FROM stream_sessions
	`

	var (
		totals UsageTotals
		pixels string
		fee    string
	)

	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&totals.ActiveStreams, &totals.TotalStreams, &pixels, &fee, &totals.TotalTransactions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage totals: %w", err)
	}

	if totals.TotalPixels, err = parseWei(pixels); err != nil {
		return nil, err
	}
	if totals.TotalFeeWei, err = parseWei(fee); err != nil {
		return nil, err
	}

	return &totals, nil
}
