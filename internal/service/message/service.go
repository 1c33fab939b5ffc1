package message

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
	"teamhub-backend/pkg/logger"
	"teamhub-backend/pkg/sanitize"
)

// Repository is the message persistence surface the service needs
type Repository interface {
	Insert(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, messageID uuid.UUID) (*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	List(ctx context.Context, conversationID uuid.UUID, filter domain.MessageFilter) ([]*domain.Message, error)
	ListUnread(ctx context.Context, conversationID, userID uuid.UUID) ([]*domain.Message, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error
}

// ConversationStore is the slice of conversation persistence used for
// membership checks and the denormalized activity pointer
type ConversationStore interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	TouchActivity(ctx context.Context, conversationID, lastMessageID uuid.UUID, at time.Time) error
}

// Service handles message business logic
type Service struct {
	messageRepo   Repository
	conversations ConversationStore
	users         domain.UserDirectory
}

// NewService creates a new message service
func NewService(messageRepo Repository, conversations ConversationStore, users domain.UserDirectory) *Service {
	return &Service{
		messageRepo:   messageRepo,
		conversations: conversations,
		users:         users,
	}
}

// SendMessageInput contains message creation data
type SendMessageInput struct {
	Actor          *domain.Identity
	ConversationID uuid.UUID
	Content        string
	Kind           domain.MessageKind
	Attachments    []domain.Attachment
	ReplyTo        *uuid.UUID
	Mentions       []uuid.UUID
}

// SendMessage validates and stores a message in a conversation the actor
// participates in
func (s *Service) SendMessage(ctx context.Context, input *SendMessageInput) (*domain.MessageResponse, error) {
	if err := s.requireParticipant(ctx, input.ConversationID, input.Actor); err != nil {
		return nil, err
	}

	kind := input.Kind
	if kind == "" {
		kind = domain.MessageText
	}
	if !kind.IsValid() {
		return nil, apperrors.ValidationError("Invalid message kind")
	}
	if kind == domain.MessageSystem || kind == domain.MessageNotification {
		return nil, apperrors.ValidationError("Reserved message kind")
	}

	content := sanitize.Content(input.Content)
	if content == "" && len(input.Attachments) == 0 {
		return nil, apperrors.ValidationError("Message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return nil, apperrors.ValidationError("Message content exceeds maximum length")
	}
	for i := range input.Attachments {
		input.Attachments[i].Filename = sanitize.Filename(input.Attachments[i].Filename)
	}

	if input.ReplyTo != nil {
		target, err := s.messageRepo.GetByID(ctx, *input.ReplyTo)
		if err != nil {
			return nil, err
		}
		if target.ConversationID != input.ConversationID {
			return nil, apperrors.ValidationError("Reply target is not in this conversation")
		}
	}

	senderID := input.Actor.UserID
	message := &domain.Message{
		ConversationID: input.ConversationID,
		SenderID:       &senderID,
		Content:        content,
		Kind:           kind,
		Attachments:    input.Attachments,
		ReplyTo:        input.ReplyTo,
		Mentions:       input.Mentions,
		CreatedAt:      time.Now(),
	}

	if err := s.messageRepo.Insert(ctx, message); err != nil {
		return nil, err
	}

	s.touchActivity(ctx, message)

	return s.toResponse(ctx, message), nil
}

// SendSystemMessage records a platform-generated message in a conversation.
// System messages have no sender and skip the participant check.
func (s *Service) SendSystemMessage(ctx context.Context, conversationID uuid.UUID, content string) (*domain.Message, error) {
	message := &domain.Message{
		ConversationID: conversationID,
		Content:        content,
		Kind:           domain.MessageSystem,
		CreatedAt:      time.Now(),
	}

	if err := s.messageRepo.Insert(ctx, message); err != nil {
		return nil, err
	}

	s.touchActivity(ctx, message)

	return message, nil
}

// EditMessageInput contains message edit data. Mentions replace the
// message's mention set when non-nil.
type EditMessageInput struct {
	Actor     *domain.Identity
	MessageID uuid.UUID
	Content   string
	Mentions  []uuid.UUID
}

// EditMessage updates a message's content. Only the original sender may
// edit; an absent message, a deleted message, and another sender's message
// all produce the same not-found error.
func (s *Service) EditMessage(ctx context.Context, input *EditMessageInput) (*domain.MessageResponse, error) {
	message, err := s.messageRepo.GetByID(ctx, input.MessageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, message.ConversationID, input.Actor); err != nil {
		return nil, err
	}
	if message.IsDeleted || message.SenderID == nil || *message.SenderID != input.Actor.UserID {
		return nil, apperrors.NotFoundError("Message")
	}

	content := sanitize.Content(input.Content)
	if content == "" {
		return nil, apperrors.ValidationError("Message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return nil, apperrors.ValidationError("Message content exceeds maximum length")
	}

	now := time.Now()
	message.Content = content
	if input.Mentions != nil {
		message.Mentions = input.Mentions
	}
	message.IsEdited = true
	message.EditedAt = &now

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	return s.toResponse(ctx, message), nil
}

// DeleteMessage soft-deletes a message. Allowed for the original sender and
// for admins; the row is kept as a tombstone.
func (s *Service) DeleteMessage(ctx context.Context, actor *domain.Identity, messageID uuid.UUID) (*domain.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, message.ConversationID, actor); err != nil {
		return nil, err
	}
	if message.IsDeleted {
		return nil, apperrors.NotFoundError("Message")
	}

	isSender := message.SenderID != nil && *message.SenderID == actor.UserID
	if !isSender && !actor.IsAdmin() {
		return nil, apperrors.AuthorizationError("Not allowed to delete this message")
	}

	now := time.Now()
	message.IsDeleted = true
	message.DeletedAt = &now

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	return message, nil
}

// ToggleReaction adds or removes the actor's reaction on a message.
// Returns the updated message and whether the reaction was added.
func (s *Service) ToggleReaction(ctx context.Context, actor *domain.Identity, messageID uuid.UUID, emoji string) (*domain.Message, bool, error) {
	if emoji == "" {
		return nil, false, apperrors.ValidationError("Reaction emoji is required")
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if err := s.requireParticipant(ctx, message.ConversationID, actor); err != nil {
		return nil, false, err
	}
	if message.IsDeleted {
		return nil, false, apperrors.NotFoundError("Message")
	}

	added := message.ToggleReaction(emoji, actor.UserID)

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, false, err
	}

	return message, added, nil
}

// MarkRead records a read receipt for the actor on a message. Re-reading
// and reading one's own message are no-ops.
func (s *Service) MarkRead(ctx context.Context, actor *domain.Identity, messageID uuid.UUID) (*domain.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, message.ConversationID, actor); err != nil {
		return nil, err
	}

	if message.IsReadBy(actor.UserID) {
		return message, nil
	}
	if message.SenderID != nil && *message.SenderID == actor.UserID {
		return message, nil
	}

	message.ReadBy = append(message.ReadBy, domain.ReadReceipt{UserID: actor.UserID, ReadAt: time.Now()})

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	return message, nil
}

// MarkConversationRead records read receipts for every unread message in a
// conversation and returns how many were marked
func (s *Service) MarkConversationRead(ctx context.Context, actor *domain.Identity, conversationID uuid.UUID) (int, error) {
	if err := s.requireParticipant(ctx, conversationID, actor); err != nil {
		return 0, err
	}

	unread, err := s.messageRepo.ListUnread(ctx, conversationID, actor.UserID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, message := range unread {
		message.ReadBy = append(message.ReadBy, domain.ReadReceipt{UserID: actor.UserID, ReadAt: now})
		if err := s.messageRepo.Update(ctx, message); err != nil {
			return 0, err
		}
	}

	return len(unread), nil
}

// ListMessagesInput contains listing parameters
type ListMessagesInput struct {
	Actor          *domain.Identity
	ConversationID uuid.UUID
	Filter         domain.MessageFilter
}

// ListMessages retrieves conversation messages for the actor, newest first.
// Soft-deleted messages are excluded unless the filter asks for them, and
// then appear as tombstones with their content redacted for everyone but
// the original sender and admins.
func (s *Service) ListMessages(ctx context.Context, input *ListMessagesInput) ([]*domain.MessageResponse, error) {
	if err := s.requireParticipant(ctx, input.ConversationID, input.Actor); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.List(ctx, input.ConversationID, input.Filter)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, message := range messages {
		responses[i] = s.toResponse(ctx, redactFor(message, input.Actor))
	}
	return responses, nil
}

// UnreadCount counts the actor's unread messages in a conversation
func (s *Service) UnreadCount(ctx context.Context, actor *domain.Identity, conversationID uuid.UUID) (int, error) {
	if err := s.requireParticipant(ctx, conversationID, actor); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, conversationID, actor.UserID)
}

// requireParticipant enforces the membership check. Missing and forbidden
// are deliberately the same error; admins bypass the check.
func (s *Service) requireParticipant(ctx context.Context, conversationID uuid.UUID, actor *domain.Identity) error {
	if actor.IsAdmin() {
		return nil
	}
	ok, err := s.conversations.IsParticipant(ctx, conversationID, actor.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundError("Conversation")
	}
	return nil
}

// touchActivity updates the conversation's denormalized last-message
// pointer; the message is already durable, so failures only log
func (s *Service) touchActivity(ctx context.Context, message *domain.Message) {
	if err := s.conversations.TouchActivity(ctx, message.ConversationID, message.MessageID, message.CreatedAt); err != nil {
		logger.Warn("failed to update conversation activity")
	}
}

// redactFor replaces deleted content with a placeholder unless the viewer
// is the original sender or an admin
func redactFor(message *domain.Message, viewer *domain.Identity) *domain.Message {
	if !message.IsDeleted {
		return message
	}
	if viewer.IsAdmin() || (message.SenderID != nil && *message.SenderID == viewer.UserID) {
		return message
	}

	redacted := *message
	redacted.Content = domain.DeletedPlaceholder
	redacted.Attachments = nil
	redacted.Mentions = nil
	redacted.Reactions = nil
	return &redacted
}

// toResponse enriches a message with sender display data; resolution
// failures degrade to a bare response
func (s *Service) toResponse(ctx context.Context, message *domain.Message) *domain.MessageResponse {
	response := &domain.MessageResponse{
		Message: message,
		Status:  domain.StatusSent,
	}
	if len(message.ReadBy) > 0 {
		response.Status = domain.StatusRead
	}

	if message.SenderID != nil {
		profile, err := s.users.Resolve(ctx, *message.SenderID)
		if err == nil {
			response.Sender = profile
		}
	}

	return response
}
