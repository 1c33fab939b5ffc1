package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
)

// inboundFrame is the wire format for every client-originated event
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// errorPayload is sent back to the origin connection when an inbound event
// fails; errors are never broadcast
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sendMessagePayload struct {
	ConversationID      uuid.UUID           `json:"conversation_id"`
	Content             string              `json:"content"`
	Kind                domain.MessageKind  `json:"kind,omitempty"`
	Attachments         []domain.Attachment `json:"attachments,omitempty"`
	ReplyTo             *uuid.UUID          `json:"reply_to,omitempty"`
	Mentions            []uuid.UUID         `json:"mentions,omitempty"`
	ClientCorrelationID string              `json:"client_correlation_id,omitempty"`
}

type editMessagePayload struct {
	MessageID uuid.UUID   `json:"message_id"`
	Content   string      `json:"content"`
	Mentions  []uuid.UUID `json:"mentions,omitempty"`
}

type reactMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Emoji     string    `json:"emoji"`
}

type joinConversationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type typingEventPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}
