package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"learner-chat/internal/identity"
	"learner-chat/internal/models"
	"learner-chat/internal/repositories"
	"learner-chat/internal/service"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) GetOrCreateRoom(ctx context.Context, courseID string, chatType models.ChatType) (models.ChatRoom, error) {
	args := m.Called(ctx, courseID, chatType)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID int, userID int, text string, mentionIDs []int) (models.ChatMessage, error) {
	args := m.Called(ctx, roomID, userID, text, mentionIDs)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID int, requestingUserID int, isPrivileged bool) error {
	args := m.Called(ctx, messageID, requestingUserID, isPrivileged)
	return args.Error(0)
}

type IdentityAdapterMock struct {
	mock.Mock
}

func (m *IdentityAdapterMock) CheckAccess(ctx context.Context, courseID string, userID int) (identity.Access, error) {
	args := m.Called(ctx, courseID, userID)
	var access identity.Access
	if val := args.Get(0); val != nil {
		access = val.(identity.Access)
	}
	return access, args.Error(1)
}

func (m *IdentityAdapterMock) CourseRoster(ctx context.Context, courseID string) ([]identity.User, error) {
	args := m.Called(ctx, courseID)
	var users []identity.User
	if val := args.Get(0); val != nil {
		users = val.([]identity.User)
	}
	return users, args.Error(1)
}

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) GetMessages(ctx context.Context, courseID string, chatType models.ChatType, caller service.Caller) (models.RoomView, error) {
	args := m.Called(ctx, courseID, chatType, caller)
	var view models.RoomView
	if val := args.Get(0); val != nil {
		view = val.(models.RoomView)
	}
	return view, args.Error(1)
}

func (m *ChatServiceMock) PostMessage(ctx context.Context, courseID string, chatType models.ChatType, caller service.Caller, rawText string) (models.MessageView, error) {
	args := m.Called(ctx, courseID, chatType, caller, rawText)
	var msg models.MessageView
	if val := args.Get(0); val != nil {
		msg = val.(models.MessageView)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) DeleteMessage(ctx context.Context, courseID string, chatType models.ChatType, messageID int, caller service.Caller) error {
	args := m.Called(ctx, courseID, chatType, messageID, caller)
	return args.Error(0)
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ identity.Adapter = (*IdentityAdapterMock)(nil)
