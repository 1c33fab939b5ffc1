package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationKind classifies a conversation; fixed at creation
type ConversationKind string

const (
	ConversationDirect  ConversationKind = "direct"
	ConversationGroup   ConversationKind = "group"
	ConversationProject ConversationKind = "project"
)

// IsValid reports whether the kind is one of the known conversation kinds
func (k ConversationKind) IsValid() bool {
	switch k {
	case ConversationDirect, ConversationGroup, ConversationProject:
		return true
	}
	return false
}

// SystemUserID is the sentinel creator for platform-generated conversations
// and the sender of system messages
var SystemUserID = uuid.Nil

// Conversation represents conversation metadata
// Maps to CockroachDB conversations table
type Conversation struct {
	ConversationID uuid.UUID        `json:"conversation_id" db:"conversation_id"`
	Kind           ConversationKind `json:"kind" db:"kind"`
	Title          *string          `json:"title,omitempty" db:"title"`
	Description    *string          `json:"description,omitempty" db:"description"`
	CreatedBy      uuid.UUID        `json:"created_by" db:"created_by"` // SystemUserID for platform-generated
	ProjectID      *uuid.UUID       `json:"project_id,omitempty" db:"project_id"`
	LastMessageID  *uuid.UUID       `json:"last_message_id,omitempty" db:"last_message_id"`
	LastActivityAt time.Time        `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	Participants   []uuid.UUID      `json:"participants"`
}

// HasParticipant reports whether userID is in the participant set
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ParticipantState holds a participant's view-local flags
// Maps to CockroachDB conversation_participants table
type ParticipantState struct {
	ConversationID uuid.UUID `json:"conversation_id" db:"conversation_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Archived       bool      `json:"archived" db:"archived"`
	Muted          bool      `json:"muted" db:"muted"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
}

// ConversationResponse is the conversation enriched for clients
type ConversationResponse struct {
	*Conversation
	ParticipantProfiles []*UserProfile `json:"participant_profiles,omitempty"`
	UnreadCount         int            `json:"unread_count"`
	Archived            bool           `json:"archived"`
	Muted               bool           `json:"muted"`
}
