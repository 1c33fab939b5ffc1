package middleware

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	redisRepo "teamhub-backend/internal/repository/redis"
	appJWT "teamhub-backend/pkg/jwt"
)

// RedisRevocationChecker implements RevocationChecker against the Redis
// revocation list maintained by the identity service
type RedisRevocationChecker struct {
	tokens *redisRepo.TokenRepository
}

// NewRedisRevocationChecker creates a new RedisRevocationChecker
func NewRedisRevocationChecker(tokens *redisRepo.TokenRepository) *RedisRevocationChecker {
	return &RedisRevocationChecker{tokens: tokens}
}

// IsTokenRevoked checks whether the token's id appears in the revocation
// list. The token is parsed without verification; the signature was already
// validated by the auth middleware.
func (c *RedisRevocationChecker) IsTokenRevoked(ctx context.Context, tokenString string) (bool, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &appJWT.Claims{})
	if err != nil {
		return false, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*appJWT.Claims)
	if !ok {
		return false, fmt.Errorf("invalid claims")
	}
	if claims.ID == "" {
		return false, nil
	}

	return c.tokens.IsRevoked(ctx, claims.ID)
}
