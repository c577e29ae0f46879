package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pymthouse/gateway/pkg/models"
)

// CreateTokenSession persists a new bearer token record (hash only)
func (r *Repository) CreateTokenSession(ctx context.Context, session *models.TokenSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO token_sessions (id, user_id, end_user_id, label, token_hash, scopes, expires_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		session.ID, session.UserID, session.EndUserID, session.Label,
		session.TokenHash, session.Scopes, session.ExpiresAt,
	).Scan(&session.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create token session: %w", err)
	}

	return nil
}

func scanTokenSession(row pgx.Row) (*models.TokenSession, error) {
	var (
		session models.TokenSession
		userID  sql.NullString
		endUser sql.NullString
		label   sql.NullString
	)

	err := row.Scan(
		&session.ID, &userID, &endUser, &label,
		&session.TokenHash, &session.Scopes, &session.ExpiresAt, &session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token session: %w", err)
	}

	session.UserID = userID.String
	session.EndUserID = endUser.String
	session.Label = label.String

	return &session, nil
}

const tokenSessionColumns = `id, user_id, end_user_id, label, token_hash, scopes, expires_at, created_at`

// GetTokenSessionByHash retrieves an unexpired token session by its hash.
// Expired records are treated as absent.
func (r *Repository) GetTokenSessionByHash(ctx context.Context, hash string, now time.Time) (*models.TokenSession, error) {
	query := `SELECT ` + tokenSessionColumns + ` FROM token_sessions WHERE token_hash = $1 AND expires_at > $2`
	return scanTokenSession(r.db.Pool.QueryRow(ctx, query, hash, now))
}

// ListTokenSessions retrieves token sessions with pagination
func (r *Repository) ListTokenSessions(ctx context.Context, limit, offset int) ([]*models.TokenSession, error) {
	query := `SELECT ` + tokenSessionColumns + ` FROM token_sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list token sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.TokenSession
	for rows.Next() {
		session, err := scanTokenSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// DeleteTokenSession removes a token session. It returns the deleted record's
// token hash (so cached validations can be invalidated) and whether a record
// existed; deleting twice is not an error.
func (r *Repository) DeleteTokenSession(ctx context.Context, id string) (string, bool, error) {
	var hash string
	err := r.db.Pool.QueryRow(ctx, `DELETE FROM token_sessions WHERE id = $1 RETURNING token_hash`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to delete token session: %w", err)
	}
	return hash, true, nil
}

// CountTokenSessions returns the total number of token records
func (r *Repository) CountTokenSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM token_sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count token sessions: %w", err)
	}
	return count, nil
}
