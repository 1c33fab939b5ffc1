package message

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
	"teamhub-backend/internal/middleware"
	"teamhub-backend/internal/service/message"
	"teamhub-backend/internal/ws"
	"teamhub-backend/pkg/response"
)

// Handler handles message HTTP requests
type Handler struct {
	messageService *message.Service
	router         *ws.Router
}

// NewHandler creates a new message handler
func NewHandler(messageService *message.Service, router *ws.Router) *Handler {
	return &Handler{
		messageService: messageService,
		router:         router,
	}
}

// RegisterRoutes mounts the message routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.SendMessage)
	rg.GET("/messages", h.ListMessages)
	rg.PUT("/messages/:id", h.EditMessage)
	rg.DELETE("/messages/:id", h.DeleteMessage)
	rg.POST("/messages/:id/reactions", h.ToggleReaction)
	rg.POST("/messages/:id/read", h.MarkRead)
}

// SendMessageRequest represents message creation
type SendMessageRequest struct {
	ConversationID string              `json:"conversation_id" binding:"required"`
	Content        string              `json:"content"`
	Kind           string              `json:"kind"`
	Attachments    []domain.Attachment `json:"attachments"`
	ReplyTo        *string             `json:"reply_to"`
	Mentions       []string            `json:"mentions"`
}

// SendMessage stores a message and broadcasts it to the conversation
// POST /v1/messages
func (h *Handler) SendMessage(c *gin.Context) {
	actor, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		response.ValidationError(c, "Invalid conversation id")
		return
	}

	var replyTo *uuid.UUID
	if req.ReplyTo != nil {
		id, err := uuid.Parse(*req.ReplyTo)
		if err != nil {
			response.ValidationError(c, "Invalid reply target id")
			return
		}
		replyTo = &id
	}

	mentions := make([]uuid.UUID, 0, len(req.Mentions))
	for _, raw := range req.Mentions {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ValidationError(c, "Invalid mention id: "+raw)
			return
		}
		mentions = append(mentions, id)
	}

	sent, err := h.messageService.SendMessage(c.Request.Context(), &message.SendMessageInput{
		Actor:          actor,
		ConversationID: conversationID,
		Content:        req.Content,
		Kind:           domain.MessageKind(req.Kind),
		Attachments:    req.Attachments,
		ReplyTo:        replyTo,
		Mentions:       mentions,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.router.Publish(ws.ConversationRoom(conversationID), domain.EventMessageNew, sent)

	response.Success(c, http.StatusCreated, sent)
}

// ListMessages retrieves conversation messages with filters
// GET /v1/messages?conversation_id=&limit=&before=&after=&kind=&sender_id=&search=&include_deleted=
func (h *Handler) ListMessages(c *gin.Context) {
	actor, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	conversationID, err := uuid.Parse(c.Query("conversation_id"))
	if err != nil {
		response.ValidationError(c, "Invalid conversation id")
		return
	}

	filter, err := buildFilter(c)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	messages, err := h.messageService.ListMessages(c.Request.Context(), &message.ListMessagesInput{
		Actor:          actor,
		ConversationID: conversationID,
		Filter:         filter,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, messages)
}

// EditMessageRequest represents message edit
type EditMessageRequest struct {
	Content  string   `json:"content" binding:"required"`
	Mentions []string `json:"mentions"`
}

// EditMessage updates message content
// PUT /v1/messages/:id
func (h *Handler) EditMessage(c *gin.Context) {
	actor, messageID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	var mentions []uuid.UUID
	if req.Mentions != nil {
		mentions = make([]uuid.UUID, 0, len(req.Mentions))
		for _, raw := range req.Mentions {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.ValidationError(c, "Invalid mention id: "+raw)
				return
			}
			mentions = append(mentions, id)
		}
	}

	edited, err := h.messageService.EditMessage(c.Request.Context(), &message.EditMessageInput{
		Actor:     actor,
		MessageID: messageID,
		Content:   req.Content,
		Mentions:  mentions,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.router.Publish(ws.ConversationRoom(edited.ConversationID), domain.EventMessageEdited, edited)

	response.Success(c, http.StatusOK, edited)
}

// DeleteMessage soft-deletes a message
// DELETE /v1/messages/:id
func (h *Handler) DeleteMessage(c *gin.Context) {
	actor, messageID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	deleted, err := h.messageService.DeleteMessage(c.Request.Context(), actor, messageID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.router.Publish(ws.ConversationRoom(deleted.ConversationID), domain.EventMessageDeleted, domain.MessageDeletedPayload{
		MessageID:      deleted.MessageID,
		ConversationID: deleted.ConversationID,
	})

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ToggleReactionRequest carries the emoji to toggle
type ToggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ToggleReaction adds or removes the caller's reaction
// POST /v1/messages/:id/reactions
func (h *Handler) ToggleReaction(c *gin.Context) {
	actor, messageID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req ToggleReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	updated, added, err := h.messageService.ToggleReaction(c.Request.Context(), actor, messageID, req.Emoji)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.router.Publish(ws.ConversationRoom(updated.ConversationID), domain.EventMessageReaction, domain.MessageReactionPayload{
		MessageID:      updated.MessageID,
		ConversationID: updated.ConversationID,
		Reactions:      updated.Reactions,
		ActorID:        actor.UserID,
	})

	response.Success(c, http.StatusOK, gin.H{"added": added, "reactions": updated.Reactions})
}

// MarkRead records a read receipt on a message
// POST /v1/messages/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	actor, messageID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	marked, err := h.messageService.MarkRead(c.Request.Context(), actor, messageID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read_by": marked.ReadBy})
}

func (h *Handler) actorAndID(c *gin.Context) (*domain.Identity, uuid.UUID, bool) {
	actor, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return nil, uuid.Nil, false
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid message id")
		return nil, uuid.Nil, false
	}

	return actor, messageID, true
}

func buildFilter(c *gin.Context) (domain.MessageFilter, error) {
	var filter domain.MessageFilter

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := c.Query("kind"); raw != "" {
		kind := domain.MessageKind(raw)
		filter.Kind = &kind
	}
	if raw := c.Query("sender_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errInvalidCursor("sender_id")
		}
		filter.SenderID = &id
	}
	if raw := c.Query("before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errInvalidCursor("before")
		}
		filter.Before = &id
	}
	if raw := c.Query("after"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errInvalidCursor("after")
		}
		filter.After = &id
	}
	filter.Search = c.Query("search")
	filter.IncludeDeleted = c.Query("include_deleted") == "true"

	return filter, nil
}

func errInvalidCursor(param string) error {
	return fmt.Errorf("invalid %s parameter", param)
}
