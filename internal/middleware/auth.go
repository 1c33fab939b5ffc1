package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
	"teamhub-backend/pkg/response"
)

// IdentityKey is the gin context key holding the verified caller identity
const IdentityKey = "identity"

// RevocationChecker reports whether a still-valid token has been revoked
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenString string) (bool, error)
}

// Auth creates a Gin middleware that verifies the bearer credential and
// places the resulting identity in the request context.
// revocationChecker may be nil; when it errors the request proceeds
// (fail-open: signature validation already passed, revocation is
// best-effort when Redis is unavailable).
func Auth(verifier domain.IdentityVerifier, revocationChecker RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}
		tokenString := parts[1]

		identity, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		if revocationChecker != nil {
			revoked, err := revocationChecker.IsTokenRevoked(c.Request.Context(), tokenString)
			if err == nil && revoked {
				response.FromError(c, apperrors.InvalidTokenError("Token revoked"))
				c.Abort()
				return
			}
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// Identity extracts the verified caller identity placed by Auth
func Identity(c *gin.Context) (*domain.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*domain.Identity)
	return identity, ok
}
