package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
	"teamhub-backend/internal/policy"
	apperrors "teamhub-backend/pkg/errors"
	"teamhub-backend/pkg/logger"
)

// Repository is the conversation persistence surface the service needs
type Repository interface {
	Create(ctx context.Context, conversation *domain.Conversation) error
	GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error)
	FindDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetParticipantState(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ParticipantState, error)
	SetParticipantFlags(ctx context.Context, conversationID, userID uuid.UUID, archived, muted *bool) error
	UpdateMeta(ctx context.Context, conversationID uuid.UUID, title, description *string) error
	AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error)
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error)
	Delete(ctx context.Context, conversationID uuid.UUID) error
}

// MessagePurger removes a conversation's message history during a purge
type MessagePurger interface {
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error
}

// UnreadCounter counts unread messages for the conversation listing
type UnreadCounter interface {
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
}

// Service handles conversation business logic
type Service struct {
	conversationRepo Repository
	messages         MessagePurger
	unread           UnreadCounter
	users            domain.UserDirectory
	projects         domain.ProjectDirectory
}

// NewService creates a new conversation service
func NewService(
	conversationRepo Repository,
	messages MessagePurger,
	unread UnreadCounter,
	users domain.UserDirectory,
	projects domain.ProjectDirectory,
) *Service {
	return &Service{
		conversationRepo: conversationRepo,
		messages:         messages,
		unread:           unread,
		users:            users,
		projects:         projects,
	}
}

// CreateConversationInput contains conversation creation data. The actor is
// always part of the resulting participant set.
type CreateConversationInput struct {
	Actor        *domain.Identity
	Kind         domain.ConversationKind
	Title        *string
	Description  *string
	ProjectID    *uuid.UUID
	Participants []uuid.UUID
}

// CreateConversation creates a new conversation. Creating a direct
// conversation with a user pair that already has one returns the existing
// conversation instead of failing.
func (s *Service) CreateConversation(ctx context.Context, input *CreateConversationInput) (*domain.Conversation, error) {
	if !input.Kind.IsValid() {
		return nil, apperrors.ValidationError("Invalid conversation kind")
	}

	participants := withActor(input.Participants, input.Actor.UserID)

	switch input.Kind {
	case domain.ConversationDirect:
		if len(participants) != 2 {
			return nil, apperrors.ValidationError("Direct conversation must have exactly 2 participants")
		}
	case domain.ConversationProject:
		if input.ProjectID == nil {
			return nil, apperrors.ValidationError("Project conversation requires a project id")
		}
	}

	if input.Kind == domain.ConversationDirect {
		existing, err := s.conversationRepo.FindDirect(ctx, participants[0], participants[1])
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := time.Now()
	conversation := &domain.Conversation{
		ConversationID: uuid.New(),
		Kind:           input.Kind,
		Title:          input.Title,
		Description:    input.Description,
		CreatedBy:      input.Actor.UserID,
		ProjectID:      input.ProjectID,
		LastActivityAt: now,
		CreatedAt:      now,
		Participants:   participants,
	}

	if err := s.conversationRepo.Create(ctx, conversation); err != nil {
		// Lost a creation race for the same direct pair; the winner's
		// conversation is the one to return
		if apperrors.HasCode(err, apperrors.ErrCodeConflict) && input.Kind == domain.ConversationDirect {
			existing, findErr := s.conversationRepo.FindDirect(ctx, participants[0], participants[1])
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	return conversation, nil
}

// GetConversation retrieves a conversation for the actor. Non-participants
// get a not-found error unless the actor is an admin, so conversation
// existence is not leaked.
func (s *Service) GetConversation(ctx context.Context, actor *domain.Identity, conversationID uuid.UUID) (*domain.ConversationResponse, error) {
	conversation, err := s.authorizedGet(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, conversation, actor.UserID), nil
}

// ListConversationsInput contains listing parameters
type ListConversationsInput struct {
	Actor  *domain.Identity
	Limit  int
	Offset int
}

// ListConversations retrieves the actor's conversations, most recent
// activity first, with unread counts and the actor's per-conversation flags
func (s *Service) ListConversations(ctx context.Context, input *ListConversationsInput) ([]*domain.ConversationResponse, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	conversations, err := s.conversationRepo.ListForUser(ctx, input.Actor.UserID, limit, input.Offset)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.ConversationResponse, len(conversations))
	for i, conversation := range conversations {
		responses[i] = s.toResponse(ctx, conversation, input.Actor.UserID)
	}
	return responses, nil
}

// UpdateConversationInput contains metadata and per-participant flag
// updates; nil fields are left unchanged
type UpdateConversationInput struct {
	Actor          *domain.Identity
	ConversationID uuid.UUID
	Title          *string
	Description    *string
	Archived       *bool
	Muted          *bool
}

// UpdateConversation updates conversation metadata and/or the actor's own
// archived/muted flags. Metadata changes are policy-gated; flag changes only
// require participation.
func (s *Service) UpdateConversation(ctx context.Context, input *UpdateConversationInput) (*domain.ConversationResponse, error) {
	conversation, err := s.authorizedGet(ctx, input.Actor, input.ConversationID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil || input.Description != nil {
		allowed := policy.Allow(policy.Input{
			Role:             input.Actor.Role,
			IsCreator:        conversation.CreatedBy == input.Actor.UserID,
			IsProjectManager: s.isProjectManager(ctx, conversation, input.Actor.UserID),
			Kind:             conversation.Kind,
			Action:           policy.ActionEditMeta,
		})
		if !allowed {
			return nil, apperrors.AuthorizationError("Not allowed to edit this conversation")
		}

		if err := s.conversationRepo.UpdateMeta(ctx, input.ConversationID, input.Title, input.Description); err != nil {
			return nil, err
		}
		if input.Title != nil {
			conversation.Title = input.Title
		}
		if input.Description != nil {
			conversation.Description = input.Description
		}
	}

	if input.Archived != nil || input.Muted != nil {
		if err := s.conversationRepo.SetParticipantFlags(ctx, input.ConversationID, input.Actor.UserID, input.Archived, input.Muted); err != nil {
			return nil, err
		}
	}

	return s.toResponse(ctx, conversation, input.Actor.UserID), nil
}

// AddParticipant adds a user to a group or project conversation
func (s *Service) AddParticipant(ctx context.Context, actor *domain.Identity, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conversation, err := s.authorizedGet(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	if conversation.Kind == domain.ConversationDirect {
		return nil, apperrors.ValidationError("Cannot modify participants of a direct conversation")
	}

	allowed := policy.Allow(policy.Input{
		Role:             actor.Role,
		IsCreator:        conversation.CreatedBy == actor.UserID,
		IsProjectManager: s.isProjectManager(ctx, conversation, actor.UserID),
		Kind:             conversation.Kind,
		Action:           policy.ActionAddParticipant,
	})
	if !allowed {
		return nil, apperrors.AuthorizationError("Not allowed to add participants")
	}

	return s.conversationRepo.AddParticipant(ctx, conversationID, userID)
}

// RemoveParticipant removes a user from a group or project conversation.
// Any participant may remove themselves.
func (s *Service) RemoveParticipant(ctx context.Context, actor *domain.Identity, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conversation, err := s.authorizedGet(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	if conversation.Kind == domain.ConversationDirect {
		return nil, apperrors.ValidationError("Cannot modify participants of a direct conversation")
	}

	allowed := policy.Allow(policy.Input{
		Role:             actor.Role,
		IsCreator:        conversation.CreatedBy == actor.UserID,
		IsProjectManager: s.isProjectManager(ctx, conversation, actor.UserID),
		IsSelf:           actor.UserID == userID,
		Kind:             conversation.Kind,
		Action:           policy.ActionRemoveParticipant,
	})
	if !allowed {
		return nil, apperrors.AuthorizationError("Not allowed to remove this participant")
	}

	// The repository re-checks this under the row lock; this check catches
	// it before the transaction and gives callers a stable error
	if len(conversation.Participants) == 1 && conversation.HasParticipant(userID) {
		return nil, apperrors.ValidationError("Cannot remove the last participant")
	}

	return s.conversationRepo.RemoveParticipant(ctx, conversationID, userID)
}

// PurgeConversation hard-deletes a conversation and its entire message
// history. Admin only.
func (s *Service) PurgeConversation(ctx context.Context, actor *domain.Identity, conversationID uuid.UUID) (*domain.Conversation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.AuthorizationError("Only admins can delete conversations")
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.DeleteByConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.conversationRepo.Delete(ctx, conversationID); err != nil {
		return nil, err
	}

	return conversation, nil
}

// authorizedGet loads a conversation and enforces the participant check.
// Missing and forbidden are deliberately the same error.
func (s *Service) authorizedGet(ctx context.Context, actor *domain.Identity, conversationID uuid.UUID) (*domain.Conversation, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(actor.UserID) && !actor.IsAdmin() {
		return nil, apperrors.NotFoundError("Conversation")
	}
	return conversation, nil
}

func (s *Service) isProjectManager(ctx context.Context, conversation *domain.Conversation, userID uuid.UUID) bool {
	if conversation.Kind != domain.ConversationProject || conversation.ProjectID == nil {
		return false
	}
	managerID, err := s.projects.ProjectManagerOf(ctx, *conversation.ProjectID)
	if err != nil {
		logger.Warn("failed to resolve project manager")
		return false
	}
	return managerID == userID
}

// toResponse enriches a conversation with the viewer's flags, unread count,
// and participant display profiles. Enrichment failures degrade to a bare
// response rather than failing the read.
func (s *Service) toResponse(ctx context.Context, conversation *domain.Conversation, viewerID uuid.UUID) *domain.ConversationResponse {
	response := &domain.ConversationResponse{Conversation: conversation}

	if state, err := s.conversationRepo.GetParticipantState(ctx, conversation.ConversationID, viewerID); err == nil {
		response.Archived = state.Archived
		response.Muted = state.Muted
	}

	if count, err := s.unread.CountUnread(ctx, conversation.ConversationID, viewerID); err == nil {
		response.UnreadCount = count
	} else {
		logger.Warn("failed to count unread messages")
	}

	for _, userID := range conversation.Participants {
		profile, err := s.users.Resolve(ctx, userID)
		if err != nil {
			continue
		}
		response.ParticipantProfiles = append(response.ParticipantProfiles, profile)
	}

	return response
}

func withActor(participants []uuid.UUID, actorID uuid.UUID) []uuid.UUID {
	result := make([]uuid.UUID, 0, len(participants)+1)
	seen := make(map[uuid.UUID]bool)
	for _, p := range append([]uuid.UUID{actorID}, participants...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}
