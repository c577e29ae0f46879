package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pymthouse/gateway/pkg/models"
)

// Default lifetimes. Auth results are short-lived so a revoked token dies
// quickly even if invalidation is missed; the signer status cache is
// refreshed by every reconciliation pass.
const (
	DefaultAuthTTL   = 30 * time.Second
	SignerStatusTTL  = time.Minute
	signerStatusKey  = "signer:status"
	authResultPrefix = "auth:"
)

// Cache provides hot-path caching using Redis
type Cache struct {
	client  *redis.Client
	authTTL time.Duration
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int, authTTL time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if authTTL <= 0 {
		authTTL = DefaultAuthTTL
	}

	return &Cache{client: client, authTTL: authTTL}, nil
}

// NewCacheWithClient wraps an existing Redis client, for tests
func NewCacheWithClient(client *redis.Client, authTTL time.Duration) *Cache {
	if authTTL <= 0 {
		authTTL = DefaultAuthTTL
	}
	return &Cache{client: client, authTTL: authTTL}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Auth result cache

// SetAuthResult caches a validated token's auth result by token hash
func (c *Cache) SetAuthResult(ctx context.Context, tokenHash string, result *models.AuthResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal auth result: %w", err)
	}
	return c.client.Set(ctx, authResultPrefix+tokenHash, data, c.authTTL).Err()
}

// GetAuthResult retrieves a cached auth result, nil on miss
func (c *Cache) GetAuthResult(ctx context.Context, tokenHash string) (*models.AuthResult, error) {
	data, err := c.client.Get(ctx, authResultPrefix+tokenHash).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get auth result from cache: %w", err)
	}

	var result models.AuthResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth result: %w", err)
	}
	result.TokenHash = tokenHash

	return &result, nil
}

// DeleteAuthResult invalidates a cached auth result on revocation
func (c *Cache) DeleteAuthResult(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, authResultPrefix+tokenHash).Err()
}

// Signer status cache

// SetSignerStatus caches the reconciled signer status
func (c *Cache) SetSignerStatus(ctx context.Context, status models.SignerStatus) error {
	return c.client.Set(ctx, signerStatusKey, string(status), SignerStatusTTL).Err()
}

// GetSignerStatus retrieves the cached signer status, "" on miss
func (c *Cache) GetSignerStatus(ctx context.Context) (models.SignerStatus, error) {
	val, err := c.client.Get(ctx, signerStatusKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get signer status from cache: %w", err)
	}
	return models.SignerStatus(val), nil
}
