package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/pkg/models"
)

type mockStore struct {
	sessions map[string]*models.TokenSession // keyed by ID
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[string]*models.TokenSession)}
}

func (m *mockStore) CreateTokenSession(ctx context.Context, session *models.TokenSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = time.Now()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockStore) GetTokenSessionByHash(ctx context.Context, hash string, now time.Time) (*models.TokenSession, error) {
	for _, s := range m.sessions {
		if s.TokenHash == hash && s.ExpiresAt.After(now) {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockStore) DeleteTokenSession(ctx context.Context, id string) (string, bool, error) {
	s, ok := m.sessions[id]
	if !ok {
		return "", false, nil
	}
	delete(m.sessions, id)
	return s.TokenHash, true, nil
}

func (m *mockStore) CountTokenSessions(ctx context.Context) (int, error) {
	return len(m.sessions), nil
}

func newTestService(store Store) *Service {
	logger, _ := logging.NewDefaultLogger()
	return NewService(store, nil, 0, logger)
}

func TestGenerateToken(t *testing.T) {
	token, hash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, token, len(TokenPrefix)+64) // 32 random bytes, hex encoded
	assert.Equal(t, HashToken(token), hash)

	// Two tokens never collide
	token2, _, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestIssueAndValidate(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	session, token, err := svc.Issue(ctx, IssueParams{
		EndUserID: "eu-1",
		Label:     "test token",
		Scopes:    "gateway",
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))

	// Only the hash is persisted
	stored := store.sessions[session.ID]
	assert.Equal(t, HashToken(token), stored.TokenHash)
	assert.NotContains(t, stored.TokenHash, token)

	result, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "eu-1", result.EndUserID)
	assert.True(t, result.Scopes.Has(models.ScopeGateway))
	assert.False(t, result.Scopes.Has(models.ScopeAdmin))
}

func TestValidateFailsClosed(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"missing prefix", "abcdef1234567890"},
		{"unknown token", TokenPrefix + "0000000000000000000000000000000000000000000000000000000000000000"},
		{"empty token", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Validate(ctx, tt.token)
			require.NoError(t, err)
			assert.Nil(t, result)
		})
	}
}

func TestValidateExpiredToken(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, token, err := svc.Issue(ctx, IssueParams{Scopes: "gateway", TTL: time.Hour})
	require.NoError(t, err)

	// Force the record into the past; the stored hash still matches
	for _, s := range store.sessions {
		s.ExpiresAt = time.Now().Add(-time.Minute)
	}

	result, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRevoke(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	session, token, err := svc.Issue(ctx, IssueParams{Scopes: "gateway", TTL: time.Hour})
	require.NoError(t, err)

	existed, err := svc.Revoke(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	// Revoked token no longer validates
	result, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, result)

	// Idempotent: second revoke reports not found, no error
	existed, err = svc.Revoke(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestIssueDefaults(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	session, _, err := svc.Issue(ctx, IssueParams{})
	require.NoError(t, err)

	assert.Equal(t, "gateway", session.Scopes)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), session.ExpiresAt, time.Minute)
}

func TestIssueConfiguredDefaultTTL(t *testing.T) {
	store := newMockStore()
	logger, _ := logging.NewDefaultLogger()
	svc := NewService(store, nil, time.Hour, logger)
	ctx := context.Background()

	// No explicit lifetime: the service default applies
	session, _, err := svc.Issue(ctx, IssueParams{})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	// An explicit lifetime still wins
	session, _, err = svc.Issue(ctx, IssueParams{TTL: 10 * time.Minute})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), session.ExpiresAt, time.Minute)
}

func TestBootstrap(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := context.Background()

	token, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	result, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Scopes.Has(models.ScopeAdmin))

	// Second bootstrap is a no-op once records exist
	token, err = svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}
