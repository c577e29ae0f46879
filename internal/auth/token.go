package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/pkg/models"
)

// TokenPrefix is the fixed marker every bearer token starts with. Tokens
// without it are rejected before any storage lookup.
const TokenPrefix = "pmth_"

// DefaultTTL applies when an issue request does not specify a lifetime.
const DefaultTTL = 90 * 24 * time.Hour

// Store is the persistence surface the authenticator needs.
type Store interface {
	CreateTokenSession(ctx context.Context, session *models.TokenSession) error
	GetTokenSessionByHash(ctx context.Context, hash string, now time.Time) (*models.TokenSession, error)
	DeleteTokenSession(ctx context.Context, id string) (string, bool, error)
	CountTokenSessions(ctx context.Context) (int, error)
}

// ResultCache caches validation results on the hot payment path. A nil cache
// disables caching.
type ResultCache interface {
	GetAuthResult(ctx context.Context, tokenHash string) (*models.AuthResult, error)
	SetAuthResult(ctx context.Context, tokenHash string, result *models.AuthResult) error
	DeleteAuthResult(ctx context.Context, tokenHash string) error
}

// Service issues, validates and revokes bearer tokens.
type Service struct {
	store      Store
	cache      ResultCache
	defaultTTL time.Duration
	logger     *logging.Logger
}

// NewService creates a token service. defaultTTL applies to issue requests
// that carry no explicit lifetime; zero falls back to DefaultTTL.
func NewService(store Store, cache ResultCache, defaultTTL time.Duration, logger *logging.Logger) *Service {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Service{store: store, cache: cache, defaultTTL: defaultTTL, logger: logger}
}

// HashToken computes the SHA-256 hex digest stored at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateToken creates a new random bearer token and its hash.
func GenerateToken() (token, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token = TokenPrefix + hex.EncodeToString(raw)
	return token, HashToken(token), nil
}

// IssueParams binds a new token to a principal with a scope set and lifetime.
type IssueParams struct {
	UserID    string
	EndUserID string
	Label     string
	Scopes    string
	TTL       time.Duration
}

// Issue creates a bearer token. The raw token is returned exactly once; only
// its hash is persisted.
func (s *Service) Issue(ctx context.Context, params IssueParams) (*models.TokenSession, string, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	scopes := params.Scopes
	if scopes == "" {
		scopes = string(models.ScopeGateway)
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	session := &models.TokenSession{
		UserID:    params.UserID,
		EndUserID: params.EndUserID,
		Label:     params.Label,
		TokenHash: hash,
		Scopes:    models.ParseScopes(scopes).String(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	if err := s.store.CreateTokenSession(ctx, session); err != nil {
		return nil, "", err
	}

	return session, token, nil
}

// Validate checks a raw bearer token. It returns nil (not an error) when the
// token is unknown, malformed or expired; only storage failures error.
func (s *Service) Validate(ctx context.Context, token string) (*models.AuthResult, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, nil
	}

	hash := HashToken(token)

	if s.cache != nil {
		if result, err := s.cache.GetAuthResult(ctx, hash); err == nil && result != nil {
			return result, nil
		}
	}

	session, err := s.store.GetTokenSessionByHash(ctx, hash, time.Now().UTC())
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	result := &models.AuthResult{
		SessionID: session.ID,
		UserID:    session.UserID,
		EndUserID: session.EndUserID,
		TokenHash: hash,
		Scopes:    models.ParseScopes(session.Scopes),
	}

	if s.cache != nil {
		if err := s.cache.SetAuthResult(ctx, hash, result); err != nil {
			s.logger.WithError(err).Warn("Failed to cache auth result")
		}
	}

	return result, nil
}

// Revoke deletes a token session, returning whether a record existed.
// Revoking twice is not an error.
func (s *Service) Revoke(ctx context.Context, sessionID string) (bool, error) {
	hash, existed, err := s.store.DeleteTokenSession(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if existed && s.cache != nil {
		if err := s.cache.DeleteAuthResult(ctx, hash); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate cached auth result")
		}
	}

	return existed, nil
}

// Bootstrap issues an admin token when no credentials exist yet, so a fresh
// deployment can be configured. Returns the raw token, or "" if records
// already exist.
func (s *Service) Bootstrap(ctx context.Context) (string, error) {
	count, err := s.store.CountTokenSessions(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}

	_, token, err := s.Issue(ctx, IssueParams{
		Label:  "bootstrap admin",
		Scopes: string(models.ScopeAdmin),
	})
	if err != nil {
		return "", err
	}

	return token, nil
}
