package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "revoked_token:"

// TokenRepository tracks revoked access tokens. The identity service writes
// a revocation entry when a token is invalidated before expiry (logout,
// credential reset); this service only reads them.
type TokenRepository struct {
	client *redis.Client
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client}
}

// IsRevoked reports whether the token id appears in the revocation list
func (r *TokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// Revoke records a token id as revoked until its natural expiry
func (r *TokenRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := r.client.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
