package message

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
)

// Mocks

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) Update(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) List(ctx context.Context, conversationID uuid.UUID, filter domain.MessageFilter) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListUnread(ctx context.Context, conversationID, userID uuid.UUID) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepository) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationStore) TouchActivity(ctx context.Context, conversationID, lastMessageID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, conversationID, lastMessageID, at)
	return args.Error(0)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Resolve(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserProfile), args.Error(1)
}

func newTestService() (*Service, *MockMessageRepository, *MockConversationStore, *MockUserDirectory) {
	repo := new(MockMessageRepository)
	conversations := new(MockConversationStore)
	users := new(MockUserDirectory)
	return NewService(repo, conversations, users), repo, conversations, users
}

func member(userID uuid.UUID) *domain.Identity {
	return &domain.Identity{UserID: userID, Role: domain.RoleMember}
}

func textMessage(conversationID, senderID uuid.UUID, content string) *domain.Message {
	return &domain.Message{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		SenderID:       &senderID,
		Content:        content,
		Kind:           domain.MessageText,
		CreatedAt:      time.Now(),
	}
}

// Tests

func TestSendMessage(t *testing.T) {
	service, repo, conversations, users := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)
	repo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	conversations.On("TouchActivity", mock.Anything, conversationID, mock.Anything, mock.Anything).Return(nil)
	users.On("Resolve", mock.Anything, actorID).Return(&domain.UserProfile{FirstName: "Ada"}, nil)

	response, err := service.SendMessage(context.Background(), &SendMessageInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
		Content:        "Hello World",
	})

	assert.NoError(t, err)
	assert.Equal(t, "Hello World", response.Content)
	assert.Equal(t, domain.MessageText, response.Kind)
	assert.Equal(t, domain.StatusSent, response.Status)
	assert.Equal(t, "Ada", response.Sender.FirstName)
	repo.AssertExpectations(t)
	conversations.AssertExpectations(t)
}

func TestSendMessage_NonParticipantGetsNotFound(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(false, nil)

	_, err := service.SendMessage(context.Background(), &SendMessageInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
		Content:        "Hello",
	})

	// Must be indistinguishable from a missing conversation
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSendMessage_ContentTooLong(t *testing.T) {
	service, _, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)

	_, err := service.SendMessage(context.Background(), &SendMessageInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
		Content:        strings.Repeat("a", domain.MaxContentLength+1),
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestSendMessage_EmptyContentWithoutAttachments(t *testing.T) {
	service, _, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)

	_, err := service.SendMessage(context.Background(), &SendMessageInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestSendMessage_ReservedKindRejected(t *testing.T) {
	service, _, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)

	_, err := service.SendMessage(context.Background(), &SendMessageInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
		Content:        "joined",
		Kind:           domain.MessageSystem,
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestSendMessage_ReplyMustBeSameConversation(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()
	target := textMessage(uuid.New(), uuid.New(), "elsewhere")

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)
	repo.On("GetByID", mock.Anything, target.MessageID).Return(target, nil)

	_, err := service.SendMessage(context.Background(), &SendMessageInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
		Content:        "reply",
		ReplyTo:        &target.MessageID,
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestSendSystemMessage(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	conversationID := uuid.New()

	repo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	conversations.On("TouchActivity", mock.Anything, conversationID, mock.Anything, mock.Anything).Return(nil)

	message, err := service.SendSystemMessage(context.Background(), conversationID, "Ada joined the conversation")

	assert.NoError(t, err)
	assert.Nil(t, message.SenderID)
	assert.Equal(t, domain.MessageSystem, message.Kind)
	repo.AssertExpectations(t)
}

func TestEditMessage(t *testing.T) {
	service, repo, conversations, users := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), actorID, "typo")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)
	repo.On("Update", mock.Anything, message).Return(nil)
	users.On("Resolve", mock.Anything, actorID).Return(&domain.UserProfile{}, nil)

	response, err := service.EditMessage(context.Background(), &EditMessageInput{
		Actor:     member(actorID),
		MessageID: message.MessageID,
		Content:   "fixed",
	})

	assert.NoError(t, err)
	assert.Equal(t, "fixed", response.Content)
	assert.True(t, response.IsEdited)
	assert.NotNil(t, response.EditedAt)
	repo.AssertExpectations(t)
}

func TestEditMessage_ReplacesMentions(t *testing.T) {
	service, repo, conversations, users := newTestService()

	actorID := uuid.New()
	mentioned := uuid.New()
	message := textMessage(uuid.New(), actorID, "hey")
	message.Mentions = []uuid.UUID{uuid.New()}

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)
	repo.On("Update", mock.Anything, message).Return(nil)
	users.On("Resolve", mock.Anything, actorID).Return(&domain.UserProfile{}, nil)

	response, err := service.EditMessage(context.Background(), &EditMessageInput{
		Actor:     member(actorID),
		MessageID: message.MessageID,
		Content:   "hey @you",
		Mentions:  []uuid.UUID{mentioned},
	})

	assert.NoError(t, err)
	assert.Equal(t, []uuid.UUID{mentioned}, response.Mentions)
}

func TestEditMessage_OnlySenderCanEdit(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), uuid.New(), "not yours")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)

	_, err := service.EditMessage(context.Background(), &EditMessageInput{
		Actor:     member(actorID),
		MessageID: message.MessageID,
		Content:   "hijack",
	})

	// Same error as a missing message
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestEditMessage_DeletedMessageNotEditable(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), actorID, "gone")
	message.IsDeleted = true

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)

	_, err := service.EditMessage(context.Background(), &EditMessageInput{
		Actor:     member(actorID),
		MessageID: message.MessageID,
		Content:   "resurrect",
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestDeleteMessage_SenderAllowed(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), actorID, "oops")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)
	repo.On("Update", mock.Anything, message).Return(nil)

	deleted, err := service.DeleteMessage(context.Background(), member(actorID), message.MessageID)

	assert.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedAt)
	assert.Equal(t, "oops", deleted.Content) // content kept as tombstone, redacted at read time
}

func TestDeleteMessage_AdminAllowed(t *testing.T) {
	service, repo, _, _ := newTestService()

	message := textMessage(uuid.New(), uuid.New(), "moderated")
	actor := &domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	repo.On("Update", mock.Anything, message).Return(nil)

	deleted, err := service.DeleteMessage(context.Background(), actor, message.MessageID)

	assert.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
}

func TestDeleteMessage_OtherMemberForbidden(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), uuid.New(), "keep out")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)

	_, err := service.DeleteMessage(context.Background(), member(actorID), message.MessageID)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}

func TestToggleReaction_AddAndRemove(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), uuid.New(), "nice")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)
	repo.On("Update", mock.Anything, message).Return(nil)

	updated, added, err := service.ToggleReaction(context.Background(), member(actorID), message.MessageID, "👍")
	assert.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, updated.Reactions["👍"].Count)

	updated, added, err = service.ToggleReaction(context.Background(), member(actorID), message.MessageID, "👍")
	assert.NoError(t, err)
	assert.False(t, added)
	assert.NotContains(t, updated.Reactions, "👍") // empty bucket dropped
}

func TestMarkRead_Idempotent(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), uuid.New(), "read me")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)
	repo.On("Update", mock.Anything, message).Return(nil)

	_, err := service.MarkRead(context.Background(), member(actorID), message.MessageID)
	assert.NoError(t, err)
	assert.Len(t, message.ReadBy, 1)

	// Second read must not add another receipt or hit the store again
	_, err = service.MarkRead(context.Background(), member(actorID), message.MessageID)
	assert.NoError(t, err)
	assert.Len(t, message.ReadBy, 1)
	repo.AssertNumberOfCalls(t, "Update", 1)
}

func TestMarkRead_OwnMessageNoop(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	actorID := uuid.New()
	message := textMessage(uuid.New(), actorID, "mine")

	repo.On("GetByID", mock.Anything, message.MessageID).Return(message, nil)
	conversations.On("IsParticipant", mock.Anything, message.ConversationID, actorID).Return(true, nil)

	_, err := service.MarkRead(context.Background(), member(actorID), message.MessageID)

	assert.NoError(t, err)
	assert.Empty(t, message.ReadBy)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestMarkConversationRead(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()
	unread := []*domain.Message{
		textMessage(conversationID, uuid.New(), "one"),
		textMessage(conversationID, uuid.New(), "two"),
	}

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)
	repo.On("ListUnread", mock.Anything, conversationID, actorID).Return(unread, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)

	count, err := service.MarkConversationRead(context.Background(), member(actorID), conversationID)

	assert.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, unread[0].IsReadBy(actorID))
	assert.True(t, unread[1].IsReadBy(actorID))
	repo.AssertNumberOfCalls(t, "Update", 2)
}

func TestListMessages_RedactsDeletedForOthers(t *testing.T) {
	service, repo, conversations, users := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()
	senderID := uuid.New()

	deleted := textMessage(conversationID, senderID, "secret")
	deleted.IsDeleted = true
	visible := textMessage(conversationID, senderID, "hello")

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)
	repo.On("List", mock.Anything, conversationID, mock.Anything).Return([]*domain.Message{deleted, visible}, nil)
	users.On("Resolve", mock.Anything, senderID).Return(&domain.UserProfile{}, nil)

	responses, err := service.ListMessages(context.Background(), &ListMessagesInput{
		Actor:          member(actorID),
		ConversationID: conversationID,
		Filter:         domain.MessageFilter{IncludeDeleted: true},
	})

	assert.NoError(t, err)
	assert.Len(t, responses, 2)
	assert.Equal(t, domain.DeletedPlaceholder, responses[0].Content)
	assert.Equal(t, "hello", responses[1].Content)
}

func TestListMessages_SenderSeesOwnDeletedContent(t *testing.T) {
	service, repo, conversations, users := newTestService()

	conversationID := uuid.New()
	senderID := uuid.New()

	deleted := textMessage(conversationID, senderID, "my words")
	deleted.IsDeleted = true

	conversations.On("IsParticipant", mock.Anything, conversationID, senderID).Return(true, nil)
	repo.On("List", mock.Anything, conversationID, mock.Anything).Return([]*domain.Message{deleted}, nil)
	users.On("Resolve", mock.Anything, senderID).Return(&domain.UserProfile{}, nil)

	responses, err := service.ListMessages(context.Background(), &ListMessagesInput{
		Actor:          member(senderID),
		ConversationID: conversationID,
		Filter:         domain.MessageFilter{IncludeDeleted: true},
	})

	assert.NoError(t, err)
	assert.Equal(t, "my words", responses[0].Content)
}

func TestUnreadCount(t *testing.T) {
	service, repo, conversations, _ := newTestService()

	conversationID := uuid.New()
	actorID := uuid.New()

	conversations.On("IsParticipant", mock.Anything, conversationID, actorID).Return(true, nil)
	repo.On("CountUnread", mock.Anything, conversationID, actorID).Return(4, nil)

	count, err := service.UnreadCount(context.Background(), member(actorID), conversationID)

	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}
