package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"chatsync/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) EnsureConversation(ctx context.Context, conversationID string, participants []string) error {
	args := m.Called(ctx, conversationID, participants)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (string, error) {
	args := m.Called(ctx, conversationID, msg)
	return args.String(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ConversationRepositoryMock) DeleteMessage(ctx context.Context, conversationID string, messageID string) error {
	args := m.Called(ctx, conversationID, messageID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SubscribeMessages(conversationID string, onSnapshot func([]models.Message)) (func(), error) {
	args := m.Called(conversationID, onSnapshot)
	var cancel func()
	if val := args.Get(0); val != nil {
		cancel = val.(func())
	}
	return cancel, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, group models.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

type StatusRepositoryMock struct {
	mock.Mock
}

func (m *StatusRepositoryMock) AppendStatus(ctx context.Context, status models.Status) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *StatusRepositoryMock) ListStatuses(ctx context.Context) ([]models.Status, error) {
	args := m.Called(ctx)
	var statuses []models.Status
	if val := args.Get(0); val != nil {
		statuses = val.([]models.Status)
	}
	return statuses, args.Error(1)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Upload(ctx context.Context, path string, r io.Reader, size int64, onProgress func(pct float64)) (string, error) {
	args := m.Called(ctx, path, r, size, onProgress)
	return args.String(0), args.Error(1)
}
