package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"teamhub-backend/internal/domain"
	"teamhub-backend/internal/service/message"
	apperrors "teamhub-backend/pkg/errors"
	"teamhub-backend/pkg/logger"
	"teamhub-backend/pkg/metrics"
	"teamhub-backend/pkg/response"
)

// ConversationAccess is the slice of conversation persistence the gateway
// needs: initial room subscriptions and membership checks for joins
type ConversationAccess interface {
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// MessageService is the message operations reachable over the socket
type MessageService interface {
	SendMessage(ctx context.Context, input *message.SendMessageInput) (*domain.MessageResponse, error)
	EditMessage(ctx context.Context, input *message.EditMessageInput) (*domain.MessageResponse, error)
	ToggleReaction(ctx context.Context, actor *domain.Identity, messageID uuid.UUID, emoji string) (*domain.Message, bool, error)
}

// PresenceMirror reflects connection state into shared storage. The mirror
// entry carries a TTL, so connected clients must refresh it periodically.
type PresenceMirror interface {
	SetUserOnline(ctx context.Context, userID uuid.UUID) error
	RefreshUserOnline(ctx context.Context, userID uuid.UUID) error
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
}

// roomPageSize is the batch size for loading a user's conversations on
// connect; every current conversation gets a room subscription
const roomPageSize = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// Gateway authenticates websocket connections and dispatches session
// events. One Gateway serves all connections of this instance.
type Gateway struct {
	verifier      domain.IdentityVerifier
	registry      *ConnectionRegistry
	router        *Router
	conversations ConversationAccess
	messages      MessageService
	presence      PresenceMirror
	metrics       *metrics.Metrics
}

// NewGateway creates a new Gateway
func NewGateway(
	verifier domain.IdentityVerifier,
	registry *ConnectionRegistry,
	router *Router,
	conversations ConversationAccess,
	messages MessageService,
	presence PresenceMirror,
	m *metrics.Metrics,
) *Gateway {
	return &Gateway{
		verifier:      verifier,
		registry:      registry,
		router:        router,
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		metrics:       m,
	}
}

// ServeWS authenticates the request, upgrades it, and starts the client
// pumps. The credential comes from the "token" query parameter or the
// Authorization header.
func (g *Gateway) ServeWS(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		credential = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	identity, err := g.verifier.Verify(c.Request.Context(), credential)
	if err != nil {
		metrics.ChatWebSocketConnectionUnauthorizedTotal.Inc()
		response.FromError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		gateway:  g,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		connID:   uuid.New().String(),
		identity: identity,
	}

	g.connect(client)

	go client.writePump()
	go client.readPump()
}

func (g *Gateway) connect(client *Client) {
	ctx := context.Background()
	userID := client.identity.UserID

	g.router.Join(client, UserRoom(userID))

	var rooms []Room
	for offset := 0; ; offset += roomPageSize {
		conversations, err := g.conversations.ListForUser(ctx, userID, roomPageSize, offset)
		if err != nil {
			logger.Warn("failed to load conversations for socket", zap.Error(err))
			break
		}
		for _, conversation := range conversations {
			room := ConversationRoom(conversation.ConversationID)
			g.router.Join(client, room)
			rooms = append(rooms, room)
		}
		if len(conversations) < roomPageSize {
			break
		}
	}

	if cameOnline := g.registry.Register(userID, client.connID); cameOnline {
		if err := g.presence.SetUserOnline(ctx, userID); err != nil {
			logger.Warn("failed to mirror presence", zap.Error(err))
		}
		payload := domain.PresencePayload{UserID: userID}
		for _, room := range rooms {
			g.router.PublishExcept(room, client, domain.EventUserOnline, payload)
		}
	}

	g.metrics.IncrementWebSocketConnections()
	logger.Info("websocket connected",
		zap.String("conn_id", client.connID),
		zap.String("user_id", userID.String()))
}

// disconnect tears down a client: room membership, registry entry, and, on
// the last connection, the presence mirror and offline broadcast
func (g *Gateway) disconnect(client *Client) {
	ctx := context.Background()
	userID := client.identity.UserID

	rooms := g.router.LeaveAll(client)

	if wentOffline := g.registry.Unregister(userID, client.connID); wentOffline {
		if err := g.presence.SetUserOffline(ctx, userID); err != nil {
			logger.Warn("failed to mirror presence", zap.Error(err))
		}
		payload := domain.PresencePayload{UserID: userID}
		for _, room := range rooms {
			if room == UserRoom(userID) {
				continue
			}
			g.router.Publish(room, domain.EventUserOffline, payload)
		}
	}

	client.close()
	g.metrics.DecrementWebSocketConnections()
	logger.Info("websocket disconnected",
		zap.String("conn_id", client.connID),
		zap.String("user_id", userID.String()))
}

// refreshPresence extends the mirror TTL for a live connection; driven by
// the write pump's ping tick, which fires well inside the TTL window
func (g *Gateway) refreshPresence(client *Client) {
	if err := g.presence.RefreshUserOnline(context.Background(), client.identity.UserID); err != nil {
		logger.Warn("failed to refresh presence", zap.Error(err))
	}
}

// dispatch routes one inbound frame. Failures go back to the origin
// connection only, as "<scope>:error".
func (g *Gateway) dispatch(client *Client, frame *inboundFrame) {
	ctx := context.Background()
	g.metrics.RecordWebSocketMessage(frame.Event, "inbound")

	switch frame.Event {
	case domain.EventMessageSend:
		g.handleMessageSend(ctx, client, frame.Data)
	case domain.EventMessageEdit:
		g.handleMessageEdit(ctx, client, frame.Data)
	case domain.EventMessageReact:
		g.handleMessageReact(ctx, client, frame.Data)
	case domain.EventConversationJoin:
		g.handleConversationJoin(ctx, client, frame.Data)
	case domain.EventConversationLeave:
		g.handleConversationLeave(client, frame.Data)
	case domain.EventTypingStart:
		g.handleTyping(client, frame.Data, true)
	case domain.EventTypingStop:
		g.handleTyping(client, frame.Data, false)
	default:
		client.sendError("gateway", string(apperrors.ErrCodeInvalidInput), "Unknown event")
	}
}

func (g *Gateway) handleMessageSend(ctx context.Context, client *Client, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.sendError("message", string(apperrors.ErrCodeInvalidInput), "Malformed payload")
		return
	}

	sent, err := g.messages.SendMessage(ctx, &message.SendMessageInput{
		Actor:          client.identity,
		ConversationID: payload.ConversationID,
		Content:        payload.Content,
		Kind:           payload.Kind,
		Attachments:    payload.Attachments,
		ReplyTo:        payload.ReplyTo,
		Mentions:       payload.Mentions,
	})
	if err != nil {
		g.sendAppError(client, "message", err)
		return
	}

	client.sendEvent(domain.EventMessageSent, domain.MessageSentPayload{
		ClientCorrelationID: payload.ClientCorrelationID,
		Message:             sent,
	})
	g.router.PublishExcept(ConversationRoom(sent.ConversationID), client, domain.EventMessageNew, sent)
	g.metrics.RecordMessageSent(string(sent.Kind))
}

func (g *Gateway) handleMessageEdit(ctx context.Context, client *Client, data json.RawMessage) {
	var payload editMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.sendError("message", string(apperrors.ErrCodeInvalidInput), "Malformed payload")
		return
	}

	edited, err := g.messages.EditMessage(ctx, &message.EditMessageInput{
		Actor:     client.identity,
		MessageID: payload.MessageID,
		Content:   payload.Content,
		Mentions:  payload.Mentions,
	})
	if err != nil {
		g.sendAppError(client, "message", err)
		return
	}

	g.router.Publish(ConversationRoom(edited.ConversationID), domain.EventMessageEdited, edited)
}

func (g *Gateway) handleMessageReact(ctx context.Context, client *Client, data json.RawMessage) {
	var payload reactMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.sendError("message", string(apperrors.ErrCodeInvalidInput), "Malformed payload")
		return
	}

	updated, _, err := g.messages.ToggleReaction(ctx, client.identity, payload.MessageID, payload.Emoji)
	if err != nil {
		g.sendAppError(client, "message", err)
		return
	}

	g.router.Publish(ConversationRoom(updated.ConversationID), domain.EventMessageReaction, domain.MessageReactionPayload{
		MessageID:      updated.MessageID,
		ConversationID: updated.ConversationID,
		Reactions:      updated.Reactions,
		ActorID:        client.identity.UserID,
	})
}

func (g *Gateway) handleConversationJoin(ctx context.Context, client *Client, data json.RawMessage) {
	var payload joinConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.sendError("conversation", string(apperrors.ErrCodeInvalidInput), "Malformed payload")
		return
	}

	if !client.identity.IsAdmin() {
		ok, err := g.conversations.IsParticipant(ctx, payload.ConversationID, client.identity.UserID)
		if err != nil {
			g.sendAppError(client, "conversation", err)
			return
		}
		if !ok {
			// Same shape as a missing conversation
			g.sendAppError(client, "conversation", apperrors.NotFoundError("Conversation"))
			return
		}
	}

	g.router.Join(client, ConversationRoom(payload.ConversationID))
}

func (g *Gateway) handleConversationLeave(client *Client, data json.RawMessage) {
	var payload joinConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.sendError("conversation", string(apperrors.ErrCodeInvalidInput), "Malformed payload")
		return
	}

	g.router.Leave(client, ConversationRoom(payload.ConversationID))
}

// handleTyping relays typing indicators to the conversation room; nothing
// is persisted
func (g *Gateway) handleTyping(client *Client, data json.RawMessage, isTyping bool) {
	var payload typingEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.sendError("typing", string(apperrors.ErrCodeInvalidInput), "Malformed payload")
		return
	}

	room := ConversationRoom(payload.ConversationID)
	if !g.router.InRoom(client, room) {
		client.sendError("typing", string(apperrors.ErrCodeNotFound), "Conversation not found")
		return
	}

	g.router.PublishExcept(room, client, domain.EventTyping, domain.TypingPayload{
		ConversationID: payload.ConversationID,
		UserID:         client.identity.UserID,
		IsTyping:       isTyping,
	})
}

func (g *Gateway) sendAppError(client *Client, scope string, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Code == apperrors.ErrCodeInternal || appErr.Code == apperrors.ErrCodeDatabase {
		logger.Error("websocket event failed", zap.String("scope", scope), zap.Error(err))
	}
	g.metrics.RecordWebSocketError(string(appErr.Code))
	client.sendError(scope, string(appErr.Code), appErr.Message)
}
