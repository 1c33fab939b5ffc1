package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxContentLength bounds message content size in characters
const MaxContentLength = 5000

// MessageKind classifies message content
type MessageKind string

const (
	MessageText         MessageKind = "text"
	MessageFile         MessageKind = "file"
	MessageImage        MessageKind = "image"
	MessageSystem       MessageKind = "system"
	MessageNotification MessageKind = "notification"
)

// IsValid reports whether the kind is one of the known message kinds
func (k MessageKind) IsValid() bool {
	switch k {
	case MessageText, MessageFile, MessageImage, MessageSystem, MessageNotification:
		return true
	}
	return false
}

// MessageStatus is the client-facing delivery annotation
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Attachment describes a file attached to a message
type Attachment struct {
	Filename     string  `json:"filename"`
	Mime         string  `json:"mime"`
	Size         int64   `json:"size"`
	URL          string  `json:"url"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

// Reaction groups the users who reacted with one emoji.
// Count always equals len(Users).
type Reaction struct {
	Users []uuid.UUID `json:"users"`
	Count int         `json:"count"`
}

// ReadReceipt records that a user has read a message; at most one per user
type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message represents a chat message entity
// Maps to Cassandra messages table; belongs to exactly one conversation
type Message struct {
	MessageID      uuid.UUID            `json:"message_id" cql:"message_id"`
	ConversationID uuid.UUID            `json:"conversation_id" cql:"conversation_id"`
	SenderID       *uuid.UUID           `json:"sender_id,omitempty" cql:"sender_id"` // nil for system messages
	Content        string               `json:"content" cql:"content"`
	Kind           MessageKind          `json:"kind" cql:"kind"`
	Attachments    []Attachment         `json:"attachments,omitempty"`
	ReplyTo        *uuid.UUID           `json:"reply_to,omitempty" cql:"reply_to"` // weak reference, same conversation
	Mentions       []uuid.UUID          `json:"mentions,omitempty"`
	Reactions      map[string]*Reaction `json:"reactions,omitempty"`
	ReadBy         []ReadReceipt        `json:"read_by,omitempty"`
	IsEdited       bool                 `json:"is_edited" cql:"is_edited"`
	EditedAt       *time.Time           `json:"edited_at,omitempty" cql:"edited_at"`
	IsDeleted      bool                 `json:"is_deleted" cql:"is_deleted"`
	DeletedAt      *time.Time           `json:"deleted_at,omitempty" cql:"deleted_at"`
	CreatedAt      time.Time            `json:"created_at" cql:"created_at"`
}

// IsReadBy reports whether userID already has a read receipt
func (m *Message) IsReadBy(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// ToggleReaction adds the actor to the emoji bucket, or removes them if
// already present. The bucket is dropped when its count reaches zero.
// Returns true if the reaction was added, false if removed.
func (m *Message) ToggleReaction(emoji string, userID uuid.UUID) bool {
	if m.Reactions == nil {
		m.Reactions = make(map[string]*Reaction)
	}
	bucket, ok := m.Reactions[emoji]
	if !ok {
		m.Reactions[emoji] = &Reaction{Users: []uuid.UUID{userID}, Count: 1}
		return true
	}
	for i, u := range bucket.Users {
		if u == userID {
			bucket.Users = append(bucket.Users[:i], bucket.Users[i+1:]...)
			bucket.Count = len(bucket.Users)
			if bucket.Count == 0 {
				delete(m.Reactions, emoji)
			}
			return false
		}
	}
	bucket.Users = append(bucket.Users, userID)
	bucket.Count = len(bucket.Users)
	return true
}

// MessageResponse represents the message returned to clients
type MessageResponse struct {
	*Message
	Sender *UserProfile  `json:"sender,omitempty"` // resolved display data, nil for system messages
	Status MessageStatus `json:"status"`
}

// DeletedPlaceholder replaces soft-deleted content for callers not allowed
// to see the original
const DeletedPlaceholder = "[message deleted]"

// MessageFilter narrows a conversation message listing. Before/After are
// cursor message ids; results are newest-first.
type MessageFilter struct {
	Kind           *MessageKind
	SenderID       *uuid.UUID
	Search         string // content substring match
	Before         *uuid.UUID
	After          *uuid.UUID
	Limit          int
	IncludeDeleted bool
}
