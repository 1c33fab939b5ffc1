package ws

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"teamhub-backend/internal/domain"
	"teamhub-backend/pkg/metrics"
)

// Registered once for the whole test binary; promauto panics on duplicates.
var testMetrics = metrics.NewMetrics("ws-test")

type MockConversationAccess struct {
	mock.Mock
}

func (m *MockConversationAccess) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationAccess) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type MockPresenceMirror struct {
	mock.Mock
}

func (m *MockPresenceMirror) SetUserOnline(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockPresenceMirror) RefreshUserOnline(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockPresenceMirror) SetUserOffline(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func newTestGateway(conversations *MockConversationAccess, presence *MockPresenceMirror) *Gateway {
	return NewGateway(nil, NewConnectionRegistry(), NewRouter(), conversations, nil, presence, testMetrics)
}

func newTestClient(g *Gateway, userID uuid.UUID, connID string) *Client {
	return &Client{
		gateway:  g,
		send:     make(chan []byte, sendBufferSize),
		connID:   connID,
		identity: &domain.Identity{UserID: userID, Role: domain.RoleMember},
	}
}

func conversationPage(n int) []*domain.Conversation {
	page := make([]*domain.Conversation, n)
	for i := range page {
		page[i] = &domain.Conversation{ConversationID: uuid.New(), Kind: domain.ConversationGroup}
	}
	return page
}

func TestConnect_JoinsEveryConversationRoom(t *testing.T) {
	conversations := new(MockConversationAccess)
	presence := new(MockPresenceMirror)
	gateway := newTestGateway(conversations, presence)

	userID := uuid.New()
	first := conversationPage(roomPageSize)
	second := conversationPage(5)

	conversations.On("ListForUser", mock.Anything, userID, roomPageSize, 0).Return(first, nil)
	conversations.On("ListForUser", mock.Anything, userID, roomPageSize, roomPageSize).Return(second, nil)
	presence.On("SetUserOnline", mock.Anything, userID).Return(nil)

	client := newTestClient(gateway, userID, "conn-1")
	gateway.connect(client)

	assert.True(t, gateway.router.InRoom(client, UserRoom(userID)))
	assert.True(t, gateway.router.InRoom(client, ConversationRoom(first[0].ConversationID)))
	assert.True(t, gateway.router.InRoom(client, ConversationRoom(first[roomPageSize-1].ConversationID)))
	assert.True(t, gateway.router.InRoom(client, ConversationRoom(second[4].ConversationID)))
	conversations.AssertExpectations(t)
}

func TestConnect_MirrorsPresenceOnFirstConnectionOnly(t *testing.T) {
	conversations := new(MockConversationAccess)
	presence := new(MockPresenceMirror)
	gateway := newTestGateway(conversations, presence)

	userID := uuid.New()
	conversations.On("ListForUser", mock.Anything, userID, roomPageSize, 0).Return(conversationPage(1), nil)
	presence.On("SetUserOnline", mock.Anything, userID).Return(nil)

	gateway.connect(newTestClient(gateway, userID, "conn-1"))
	gateway.connect(newTestClient(gateway, userID, "conn-2"))

	presence.AssertNumberOfCalls(t, "SetUserOnline", 1)
}

func TestRefreshPresence_ExtendsMirrorEntry(t *testing.T) {
	conversations := new(MockConversationAccess)
	presence := new(MockPresenceMirror)
	gateway := newTestGateway(conversations, presence)

	userID := uuid.New()
	presence.On("RefreshUserOnline", mock.Anything, userID).Return(nil)

	client := newTestClient(gateway, userID, "conn-1")
	gateway.refreshPresence(client)
	gateway.refreshPresence(client)

	presence.AssertNumberOfCalls(t, "RefreshUserOnline", 2)
}

func TestRefreshPresence_MirrorFailureIsSwallowed(t *testing.T) {
	conversations := new(MockConversationAccess)
	presence := new(MockPresenceMirror)
	gateway := newTestGateway(conversations, presence)

	userID := uuid.New()
	presence.On("RefreshUserOnline", mock.Anything, userID).Return(fmt.Errorf("redis down"))

	assert.NotPanics(t, func() {
		gateway.refreshPresence(newTestClient(gateway, userID, "conn-1"))
	})
}
