package conversation

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
	"teamhub-backend/internal/middleware"
	"teamhub-backend/internal/service/conversation"
	"teamhub-backend/internal/service/message"
	"teamhub-backend/internal/ws"
	"teamhub-backend/pkg/pagination"
	"teamhub-backend/pkg/response"
)

// Handler handles conversation HTTP requests
type Handler struct {
	conversationService *conversation.Service
	messageService      *message.Service
	router              *ws.Router
	users               domain.UserDirectory
}

// NewHandler creates a new conversation handler
func NewHandler(
	conversationService *conversation.Service,
	messageService *message.Service,
	router *ws.Router,
	users domain.UserDirectory,
) *Handler {
	return &Handler{
		conversationService: conversationService,
		messageService:      messageService,
		router:              router,
		users:               users,
	}
}

// RegisterRoutes mounts the conversation routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/conversations", h.CreateConversation)
	rg.GET("/conversations", h.ListConversations)
	rg.GET("/conversations/:id", h.GetConversation)
	rg.PUT("/conversations/:id", h.UpdateConversation)
	rg.DELETE("/conversations/:id", h.DeleteConversation)
	rg.POST("/conversations/:id/participants", h.AddParticipant)
	rg.DELETE("/conversations/:id/participants/:userId", h.RemoveParticipant)
	rg.POST("/conversations/:id/read", h.MarkRead)
	rg.GET("/conversations/:id/unread", h.UnreadCount)
}

// CreateConversationRequest represents create conversation request
type CreateConversationRequest struct {
	Kind         string   `json:"kind" binding:"required,oneof=direct group project"`
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	ProjectID    *string  `json:"project_id"`
	Participants []string `json:"participants" binding:"required,min=1"`
}

// CreateConversation creates a new conversation
// POST /v1/conversations
func (h *Handler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	actor, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	participants, err := parseUUIDs(req.Participants)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	var projectID *uuid.UUID
	if req.ProjectID != nil {
		id, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			response.ValidationError(c, "Invalid project id")
			return
		}
		projectID = &id
	}

	created, err := h.conversationService.CreateConversation(c.Request.Context(), &conversation.CreateConversationInput{
		Actor:        actor,
		Kind:         domain.ConversationKind(req.Kind),
		Title:        req.Title,
		Description:  req.Description,
		ProjectID:    projectID,
		Participants: participants,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	// New participants are not in the conversation room yet; notify their
	// personal rooms
	for _, userID := range created.Participants {
		h.router.Publish(ws.UserRoom(userID), domain.EventConversationUpdated, created)
	}

	response.Success(c, http.StatusCreated, created)
}

// ListConversations retrieves the caller's conversations
// GET /v1/conversations?page=1&limit=20
func (h *Handler) ListConversations(c *gin.Context) {
	actor, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	params, err := pagination.Parse(c.Query("page"), c.Query("limit"))
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	conversations, err := h.conversationService.ListConversations(c.Request.Context(), &conversation.ListConversationsInput{
		Actor:  actor,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, conversations)
}

// GetConversation retrieves one conversation
// GET /v1/conversations/:id
func (h *Handler) GetConversation(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	conv, err := h.conversationService.GetConversation(c.Request.Context(), actor, conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, conv)
}

// UpdateConversationRequest represents metadata and flag updates
type UpdateConversationRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
	Muted       *bool   `json:"muted"`
}

// UpdateConversation updates metadata and/or the caller's flags
// PUT /v1/conversations/:id
func (h *Handler) UpdateConversation(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	updated, err := h.conversationService.UpdateConversation(c.Request.Context(), &conversation.UpdateConversationInput{
		Actor:          actor,
		ConversationID: conversationID,
		Title:          req.Title,
		Description:    req.Description,
		Archived:       req.Archived,
		Muted:          req.Muted,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	// Metadata changes are visible to everyone; flag changes are private
	if req.Title != nil || req.Description != nil {
		h.router.Publish(ws.ConversationRoom(conversationID), domain.EventConversationUpdated, updated.Conversation)
	}

	response.Success(c, http.StatusOK, updated)
}

// DeleteConversation purges a conversation and its history (admin only)
// DELETE /v1/conversations/:id
func (h *Handler) DeleteConversation(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	deleted, err := h.conversationService.PurgeConversation(c.Request.Context(), actor, conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	payload := domain.ConversationDeletedPayload{ConversationID: conversationID}
	h.router.Publish(ws.ConversationRoom(conversationID), domain.EventConversationDeleted, payload)
	for _, userID := range deleted.Participants {
		h.router.Publish(ws.UserRoom(userID), domain.EventConversationDeleted, payload)
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// AddParticipantRequest carries the user to add
type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddParticipant adds a user to a conversation
// POST /v1/conversations/:id/participants
func (h *Handler) AddParticipant(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.ValidationError(c, "Invalid user id")
		return
	}

	updated, err := h.conversationService.AddParticipant(c.Request.Context(), actor, conversationID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.recordMembershipChange(c, conversationID, userID, "%s joined the conversation")

	payload := domain.ParticipantChangePayload{Conversation: updated, UserID: userID}
	h.router.Publish(ws.ConversationRoom(conversationID), domain.EventConversationParticipantAdded, payload)
	h.router.Publish(ws.UserRoom(userID), domain.EventConversationParticipantAdded, payload)

	response.Success(c, http.StatusOK, updated)
}

// RemoveParticipant removes a user from a conversation
// DELETE /v1/conversations/:id/participants/:userId
func (h *Handler) RemoveParticipant(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ValidationError(c, "Invalid user id")
		return
	}

	updated, err := h.conversationService.RemoveParticipant(c.Request.Context(), actor, conversationID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.recordMembershipChange(c, conversationID, userID, "%s left the conversation")

	payload := domain.ParticipantChangePayload{Conversation: updated, UserID: userID}
	h.router.Publish(ws.ConversationRoom(conversationID), domain.EventConversationParticipantRemoved, payload)
	h.router.Publish(ws.UserRoom(userID), domain.EventConversationParticipantRemoved, payload)

	response.Success(c, http.StatusOK, updated)
}

// MarkRead marks every unread message in the conversation as read
// POST /v1/conversations/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	count, err := h.messageService.MarkConversationRead(c.Request.Context(), actor, conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"marked_read": count})
}

// UnreadCount returns the caller's unread message count
// GET /v1/conversations/:id/unread
func (h *Handler) UnreadCount(c *gin.Context) {
	actor, conversationID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), actor, conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread_count": count})
}

// recordMembershipChange writes a system message announcing a membership
// change and broadcasts it; best-effort
func (h *Handler) recordMembershipChange(c *gin.Context, conversationID, userID uuid.UUID, format string) {
	name := "A user"
	if profile, err := h.users.Resolve(c.Request.Context(), userID); err == nil {
		name = profile.FirstName + " " + profile.LastName
	}

	systemMessage, err := h.messageService.SendSystemMessage(c.Request.Context(), conversationID, fmt.Sprintf(format, name))
	if err != nil {
		return
	}
	h.router.Publish(ws.ConversationRoom(conversationID), domain.EventMessageNew, &domain.MessageResponse{
		Message: systemMessage,
		Status:  domain.StatusSent,
	})
}

func (h *Handler) actorAndID(c *gin.Context) (*domain.Identity, uuid.UUID, bool) {
	actor, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return nil, uuid.Nil, false
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation id")
		return nil, uuid.Nil, false
	}

	return actor, conversationID, true
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(values))
	for i, value := range values {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id: %s", value)
		}
		ids[i] = id
	}
	return ids, nil
}
