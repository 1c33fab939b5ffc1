package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
)

// Mocks

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) FindDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationRepository) GetParticipantState(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ParticipantState, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParticipantState), args.Error(1)
}

func (m *MockConversationRepository) SetParticipantFlags(ctx context.Context, conversationID, userID uuid.UUID, archived, muted *bool) error {
	args := m.Called(ctx, conversationID, userID, archived, muted)
	return args.Error(0)
}

func (m *MockConversationRepository) UpdateMeta(ctx context.Context, conversationID uuid.UUID, title, description *string) error {
	args := m.Called(ctx, conversationID, title, description)
	return args.Error(0)
}

func (m *MockConversationRepository) AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Delete(ctx context.Context, conversationID uuid.UUID) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MockMessagePurger struct {
	mock.Mock
}

func (m *MockMessagePurger) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MockUnreadCounter struct {
	mock.Mock
}

func (m *MockUnreadCounter) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
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

type MockProjectDirectory struct {
	mock.Mock
}

func (m *MockProjectDirectory) ProjectManagerOf(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func newTestService() (*Service, *MockConversationRepository, *MockMessagePurger, *MockUnreadCounter, *MockUserDirectory, *MockProjectDirectory) {
	repo := new(MockConversationRepository)
	purger := new(MockMessagePurger)
	unread := new(MockUnreadCounter)
	users := new(MockUserDirectory)
	projects := new(MockProjectDirectory)
	return NewService(repo, purger, unread, users, projects), repo, purger, unread, users, projects
}

func member(userID uuid.UUID) *domain.Identity {
	return &domain.Identity{UserID: userID, Role: domain.RoleMember}
}

func admin() *domain.Identity {
	return &domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}
}

func groupConversation(createdBy uuid.UUID, participants ...uuid.UUID) *domain.Conversation {
	title := "Standup"
	return &domain.Conversation{
		ConversationID: uuid.New(),
		Kind:           domain.ConversationGroup,
		Title:          &title,
		CreatedBy:      createdBy,
		LastActivityAt: time.Now(),
		CreatedAt:      time.Now(),
		Participants:   append([]uuid.UUID{createdBy}, participants...),
	}
}

// Tests

func TestCreateConversation_Group(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	actorID := uuid.New()
	other := uuid.New()
	title := "Planning"

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Conversation")).Return(nil)

	conversation, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor:        member(actorID),
		Kind:         domain.ConversationGroup,
		Title:        &title,
		Participants: []uuid.UUID{other},
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.ConversationGroup, conversation.Kind)
	assert.Equal(t, actorID, conversation.CreatedBy)
	assert.True(t, conversation.HasParticipant(actorID))
	assert.True(t, conversation.HasParticipant(other))
	repo.AssertExpectations(t)
}

func TestCreateConversation_ActorAlwaysIncluded(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	actorID := uuid.New()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Conversation")).Return(nil)

	// Actor listed twice in input must not produce a duplicate participant
	conversation, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor:        member(actorID),
		Kind:         domain.ConversationGroup,
		Participants: []uuid.UUID{actorID, uuid.New()},
	})

	assert.NoError(t, err)
	assert.Len(t, conversation.Participants, 2)
}

func TestCreateConversation_InvalidKind(t *testing.T) {
	service, _, _, _, _, _ := newTestService()

	_, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor: member(uuid.New()),
		Kind:  domain.ConversationKind("channel"),
	})

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestCreateConversation_DirectRequiresTwoParticipants(t *testing.T) {
	service, _, _, _, _, _ := newTestService()

	_, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor:        member(uuid.New()),
		Kind:         domain.ConversationDirect,
		Participants: []uuid.UUID{uuid.New(), uuid.New()}, // 3 with the actor
	})

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestCreateConversation_DirectDeduplicates(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	actorID := uuid.New()
	other := uuid.New()
	existing := &domain.Conversation{
		ConversationID: uuid.New(),
		Kind:           domain.ConversationDirect,
		Participants:   []uuid.UUID{actorID, other},
	}

	repo.On("FindDirect", mock.Anything, actorID, other).Return(existing, nil)

	conversation, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor:        member(actorID),
		Kind:         domain.ConversationDirect,
		Participants: []uuid.UUID{other},
	})

	assert.NoError(t, err)
	assert.Equal(t, existing.ConversationID, conversation.ConversationID)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateConversation_DirectCreationRace(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	actorID := uuid.New()
	other := uuid.New()
	winner := &domain.Conversation{
		ConversationID: uuid.New(),
		Kind:           domain.ConversationDirect,
		Participants:   []uuid.UUID{actorID, other},
	}

	// No existing conversation at first check, but the insert hits the
	// unique constraint because a concurrent request won the race
	repo.On("FindDirect", mock.Anything, actorID, other).Return(nil, nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(apperrors.ConflictError("Direct conversation already exists"))
	repo.On("FindDirect", mock.Anything, actorID, other).Return(winner, nil).Once()

	conversation, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor:        member(actorID),
		Kind:         domain.ConversationDirect,
		Participants: []uuid.UUID{other},
	})

	assert.NoError(t, err)
	assert.Equal(t, winner.ConversationID, conversation.ConversationID)
}

func TestCreateConversation_ProjectRequiresProjectID(t *testing.T) {
	service, _, _, _, _, _ := newTestService()

	_, err := service.CreateConversation(context.Background(), &CreateConversationInput{
		Actor: member(uuid.New()),
		Kind:  domain.ConversationProject,
	})

	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestGetConversation_NonParticipantGetsNotFound(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	conversation := groupConversation(uuid.New(), uuid.New())
	outsider := member(uuid.New())

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)

	_, err := service.GetConversation(context.Background(), outsider, conversation.ConversationID)

	// Must be indistinguishable from a missing conversation
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestGetConversation_AdminBypassesParticipantCheck(t *testing.T) {
	service, repo, _, unread, users, _ := newTestService()

	conversation := groupConversation(uuid.New(), uuid.New())
	actor := admin()

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)
	repo.On("GetParticipantState", mock.Anything, conversation.ConversationID, actor.UserID).
		Return(nil, apperrors.NotFoundError("Conversation"))
	unread.On("CountUnread", mock.Anything, conversation.ConversationID, actor.UserID).Return(0, nil)
	users.On("Resolve", mock.Anything, mock.Anything).Return(nil, apperrors.NotFoundError("User"))

	response, err := service.GetConversation(context.Background(), actor, conversation.ConversationID)

	assert.NoError(t, err)
	assert.Equal(t, conversation.ConversationID, response.ConversationID)
}

func TestListConversations_EnrichesWithStateAndUnread(t *testing.T) {
	service, repo, _, unread, users, _ := newTestService()

	actorID := uuid.New()
	conversation := groupConversation(actorID, uuid.New())

	repo.On("ListForUser", mock.Anything, actorID, 20, 0).Return([]*domain.Conversation{conversation}, nil)
	repo.On("GetParticipantState", mock.Anything, conversation.ConversationID, actorID).
		Return(&domain.ParticipantState{Archived: true, Muted: false}, nil)
	unread.On("CountUnread", mock.Anything, conversation.ConversationID, actorID).Return(3, nil)
	users.On("Resolve", mock.Anything, mock.Anything).Return(&domain.UserProfile{FirstName: "Ada"}, nil)

	responses, err := service.ListConversations(context.Background(), &ListConversationsInput{
		Actor: member(actorID),
	})

	assert.NoError(t, err)
	assert.Len(t, responses, 1)
	assert.Equal(t, 3, responses[0].UnreadCount)
	assert.True(t, responses[0].Archived)
	assert.Len(t, responses[0].ParticipantProfiles, 2)
}

func TestUpdateConversation_MetaRequiresPolicy(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	creatorID := uuid.New()
	memberID := uuid.New()
	conversation := groupConversation(creatorID, memberID)
	title := "Renamed"

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)

	_, err := service.UpdateConversation(context.Background(), &UpdateConversationInput{
		Actor:          member(memberID),
		ConversationID: conversation.ConversationID,
		Title:          &title,
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	repo.AssertNotCalled(t, "UpdateMeta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateConversation_FlagsAllowedForAnyParticipant(t *testing.T) {
	service, repo, _, unread, users, _ := newTestService()

	creatorID := uuid.New()
	memberID := uuid.New()
	conversation := groupConversation(creatorID, memberID)
	archived := true

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)
	repo.On("SetParticipantFlags", mock.Anything, conversation.ConversationID, memberID, &archived, (*bool)(nil)).Return(nil)
	repo.On("GetParticipantState", mock.Anything, conversation.ConversationID, memberID).
		Return(&domain.ParticipantState{Archived: true}, nil)
	unread.On("CountUnread", mock.Anything, conversation.ConversationID, memberID).Return(0, nil)
	users.On("Resolve", mock.Anything, mock.Anything).Return(&domain.UserProfile{}, nil)

	response, err := service.UpdateConversation(context.Background(), &UpdateConversationInput{
		Actor:          member(memberID),
		ConversationID: conversation.ConversationID,
		Archived:       &archived,
	})

	assert.NoError(t, err)
	assert.True(t, response.Archived)
	repo.AssertExpectations(t)
}

func TestAddParticipant_DirectRejected(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	actorID := uuid.New()
	other := uuid.New()
	conversation := &domain.Conversation{
		ConversationID: uuid.New(),
		Kind:           domain.ConversationDirect,
		CreatedBy:      actorID,
		Participants:   []uuid.UUID{actorID, other},
	}

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)

	_, err := service.AddParticipant(context.Background(), member(actorID), conversation.ConversationID, uuid.New())

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestAddParticipant_CreatorAllowed(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	creatorID := uuid.New()
	newUser := uuid.New()
	conversation := groupConversation(creatorID, uuid.New())
	updated := groupConversation(creatorID, uuid.New(), newUser)

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)
	repo.On("AddParticipant", mock.Anything, conversation.ConversationID, newUser).Return(updated, nil)

	result, err := service.AddParticipant(context.Background(), member(creatorID), conversation.ConversationID, newUser)

	assert.NoError(t, err)
	assert.True(t, result.HasParticipant(newUser))
	repo.AssertExpectations(t)
}

func TestAddParticipant_MemberForbidden(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	creatorID := uuid.New()
	memberID := uuid.New()
	conversation := groupConversation(creatorID, memberID)

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)

	_, err := service.AddParticipant(context.Background(), member(memberID), conversation.ConversationID, uuid.New())

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}

func TestAddParticipant_ProjectManagerAllowed(t *testing.T) {
	service, repo, _, _, _, projects := newTestService()

	managerID := uuid.New()
	projectID := uuid.New()
	newUser := uuid.New()
	conversation := &domain.Conversation{
		ConversationID: uuid.New(),
		Kind:           domain.ConversationProject,
		CreatedBy:      domain.SystemUserID,
		ProjectID:      &projectID,
		Participants:   []uuid.UUID{managerID, uuid.New()},
	}

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)
	projects.On("ProjectManagerOf", mock.Anything, projectID).Return(managerID, nil)
	repo.On("AddParticipant", mock.Anything, conversation.ConversationID, newUser).Return(conversation, nil)

	_, err := service.AddParticipant(context.Background(), member(managerID), conversation.ConversationID, newUser)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRemoveParticipant_SelfAlwaysAllowed(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	creatorID := uuid.New()
	memberID := uuid.New()
	conversation := groupConversation(creatorID, memberID)

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)
	repo.On("RemoveParticipant", mock.Anything, conversation.ConversationID, memberID).Return(conversation, nil)

	_, err := service.RemoveParticipant(context.Background(), member(memberID), conversation.ConversationID, memberID)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRemoveParticipant_LastParticipantRejected(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	creatorID := uuid.New()
	conversation := groupConversation(creatorID)

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)

	_, err := service.RemoveParticipant(context.Background(), member(creatorID), conversation.ConversationID, creatorID)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	repo.AssertNotCalled(t, "RemoveParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveParticipant_MemberCannotRemoveOthers(t *testing.T) {
	service, repo, _, _, _, _ := newTestService()

	creatorID := uuid.New()
	memberID := uuid.New()
	otherID := uuid.New()
	conversation := groupConversation(creatorID, memberID, otherID)

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)

	_, err := service.RemoveParticipant(context.Background(), member(memberID), conversation.ConversationID, otherID)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}

func TestPurgeConversation_AdminOnly(t *testing.T) {
	service, repo, purger, _, _, _ := newTestService()

	conversation := groupConversation(uuid.New(), uuid.New())

	_, err := service.PurgeConversation(context.Background(), member(uuid.New()), conversation.ConversationID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	repo.On("GetByID", mock.Anything, conversation.ConversationID).Return(conversation, nil)
	purger.On("DeleteByConversation", mock.Anything, conversation.ConversationID).Return(nil)
	repo.On("Delete", mock.Anything, conversation.ConversationID).Return(nil)

	_, err = service.PurgeConversation(context.Background(), admin(), conversation.ConversationID)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	purger.AssertExpectations(t)
}
