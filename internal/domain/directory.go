package domain

import (
	"context"

	"github.com/google/uuid"
)

// Roles carried by verified identities. Anything other than RoleAdmin is
// treated as a regular member by the authorization policy.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Identity is the result of verifying a bearer credential
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// IdentityVerifier validates a bearer credential and yields the caller
// identity. Implemented outside the chat core (account service issues the
// credentials); the core only consumes it.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// UserProfile is display data for a user, used for read-side enrichment
// only — never for authorization decisions beyond Role
type UserProfile struct {
	UserID    uuid.UUID `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
}

// UserDirectory resolves user ids to display profiles
type UserDirectory interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
}

// ProjectDirectory exposes the project data the authorization policy needs
// for project conversations
type ProjectDirectory interface {
	ProjectManagerOf(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error)
}
