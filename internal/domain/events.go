package domain

import (
	"github.com/google/uuid"
)

// Inbound client event names (session-scoped, gateway dispatched)
const (
	EventMessageSend       = "message:send"
	EventMessageEdit       = "message:edit"
	EventMessageReact      = "message:react"
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
)

// Outbound broadcast event names
const (
	EventMessageNew                     = "message:new"
	EventMessageSent                    = "message:sent" // sender-only ack
	EventMessageEdited                  = "message:edited"
	EventMessageDeleted                 = "message:deleted"
	EventMessageReaction                = "message:reaction"
	EventConversationUpdated            = "conversation:updated"
	EventConversationParticipantAdded   = "conversation:participant_added"
	EventConversationParticipantRemoved = "conversation:participant_removed"
	EventConversationDeleted            = "conversation:deleted"
	EventTyping                         = "typing"
	EventUserOnline                     = "user:online"
	EventUserOffline                    = "user:offline"
)

// MessageSentPayload acknowledges the sender's own send, echoing the
// client-supplied correlation id
type MessageSentPayload struct {
	ClientCorrelationID string           `json:"client_correlation_id,omitempty"`
	Message             *MessageResponse `json:"message"`
}

// MessageDeletedPayload announces a soft-deleted message
type MessageDeletedPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// MessageReactionPayload carries the full reaction state after a toggle
type MessageReactionPayload struct {
	MessageID      uuid.UUID            `json:"message_id"`
	ConversationID uuid.UUID            `json:"conversation_id"`
	Reactions      map[string]*Reaction `json:"reactions"`
	ActorID        uuid.UUID            `json:"actor_id"`
}

// ParticipantChangePayload announces membership changes
type ParticipantChangePayload struct {
	Conversation *Conversation `json:"conversation"`
	UserID       uuid.UUID     `json:"user_id"`
}

// ConversationDeletedPayload announces an admin purge
type ConversationDeletedPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// TypingPayload relays typing indicators; never persisted
type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

// PresencePayload announces online/offline transitions
type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
}
