package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
)

// Audience expected on every access token
const Audience = "teamhub-api"

// Claims represents JWT claims structure
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"` // member, admin
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the platform's auth service.
// It implements domain.IdentityVerifier.
type Verifier struct {
	secretKey     string
	tokenDuration time.Duration
}

// NewVerifier creates a new token verifier
func NewVerifier(secretKey string, tokenDuration time.Duration) *Verifier {
	return &Verifier{
		secretKey:     secretKey,
		tokenDuration: tokenDuration,
	}
}

// Verify validates a bearer credential and yields the caller identity
func (v *Verifier) Verify(ctx context.Context, credential string) (*domain.Identity, error) {
	claims, err := v.ValidateToken(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ExpiredTokenError()
		}
		return nil, apperrors.InvalidTokenError("Invalid token")
	}

	if !containsAudience(claims.Audience, Audience) {
		return nil, apperrors.InvalidTokenError("Invalid token audience")
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleMember
	}

	return &domain.Identity{UserID: claims.UserID, Role: role}, nil
}

// ValidateToken validates and parses a JWT token
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// GenerateToken creates a signed access token. The chat core never issues
// tokens in production; this mirrors what the auth service signs and exists
// for local development and tests.
func (v *Verifier) GenerateToken(userID uuid.UUID, role string) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(v.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "teamhub-auth",
			Audience:  jwt.ClaimStrings{Audience},
			Subject:   userID.String(),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(v.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ExtractUserID extracts user ID from token without full validation (for logging)
func (v *Verifier) ExtractUserID(tokenString string) (uuid.UUID, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid claims")
	}

	return claims.UserID, nil
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
