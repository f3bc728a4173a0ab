package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"learner-chat/internal/identity"
	"learner-chat/internal/mocks"
	"learner-chat/internal/models"
	"learner-chat/internal/repositories"
	"learner-chat/internal/service"
)

const courseID = "course-v1:Org+CS101+2026"

var (
	alice = identity.User{ID: 1, Username: "alice", DisplayName: "Alice"}
	bob   = identity.User{ID: 2, Username: "bob", DisplayName: "Bob"}
)

func newTestService(rooms *mocks.RoomRepositoryMock, messages *mocks.MessageRepositoryMock, id *mocks.IdentityAdapterMock) *service.ChatService {
	return service.NewChatService(rooms, messages, id, nil, 0, 0)
}

func enrolled(id *mocks.IdentityAdapterMock, userID int, staff bool) {
	id.On("CheckAccess", mock.Anything, courseID, userID).Return(identity.Access{Enrolled: true, Staff: staff}, nil).Once()
}

func TestPostMessageRoundTrip(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	enrolled(id, bob.ID, false)
	id.On("CourseRoster", mock.Anything, courseID).Return([]identity.User{alice, bob}, nil).Once()
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7, CourseID: courseID, ChatType: models.ChatTypeGeneral}, nil).Once()
	messages.On("CreateMessage", mock.Anything, 7, bob.ID, "hi @alice!", []int{alice.ID}).
		Return(models.ChatMessage{ID: 3, RoomID: 7, UserID: bob.ID, Message: "hi @alice!", MentionIDs: []int{alice.ID}, CreatedAt: time.Now()}, nil).Once()

	view, err := svc.PostMessage(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID, Username: "bob"}, "  hi @alice!  ")
	require.NoError(t, err)
	require.Equal(t, "hi @alice!", view.Message)
	require.Equal(t, []models.ChatUser{{ID: 1, Username: "alice", DisplayName: "Alice"}}, view.Mentions)
	require.True(t, view.CanDelete)
	require.False(t, view.IsDeleted)

	rooms.AssertExpectations(t)
	messages.AssertExpectations(t)
	id.AssertExpectations(t)
}

func TestPostMessageEmpty(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	enrolled(id, bob.ID, false)

	_, err := svc.PostMessage(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID}, "   \n\t  ")
	require.ErrorIs(t, err, repositories.ErrEmptyMessage)
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageTooLong(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := service.NewChatService(rooms, messages, id, nil, 5, 0)

	enrolled(id, bob.ID, false)

	_, err := svc.PostMessage(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID}, "toolongmessage")
	require.ErrorIs(t, err, service.ErrMessageTooLong)
}

func TestPostMessageNotEnrolled(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	id.On("CheckAccess", mock.Anything, courseID, bob.ID).Return(identity.Access{}, nil).Once()

	_, err := svc.PostMessage(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID}, "hello")
	require.ErrorIs(t, err, service.ErrNotEnrolled)
	rooms.AssertNotCalled(t, "GetOrCreateRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMessagesShapesViewForCaller(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	deletedBy := alice.ID
	stored := []models.ChatMessage{
		{ID: 1, RoomID: 7, UserID: alice.ID, Message: "hello", IsDeleted: true, DeletedBy: &deletedBy, MentionIDs: []int{bob.ID}},
		{ID: 2, RoomID: 7, UserID: bob.ID, Message: "@alice hi", MentionIDs: []int{alice.ID}},
	}

	enrolled(id, bob.ID, false)
	id.On("CourseRoster", mock.Anything, courseID).Return([]identity.User{alice, bob}, nil).Once()
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeQA).Return(models.ChatRoom{ID: 7}, nil).Once()
	messages.On("ListMessages", mock.Anything, 7, 100).Return(stored, nil).Once()

	view, err := svc.GetMessages(context.Background(), courseID, models.ChatTypeQA, service.Caller{ID: bob.ID, Username: "bob"})
	require.NoError(t, err)
	require.Equal(t, 7, view.RoomID)
	require.Equal(t, models.ChatTypeQA, view.ChatType)
	require.Equal(t, 1, view.MessageCount)
	require.Len(t, view.Messages, 2)

	// deleted message keeps its position, masked and without mentions
	require.True(t, view.Messages[0].IsDeleted)
	require.Equal(t, service.DeletedPlaceholder, view.Messages[0].Message)
	require.Empty(t, view.Messages[0].Mentions)
	require.False(t, view.Messages[0].CanDelete)

	require.Equal(t, "@alice hi", view.Messages[1].Message)
	require.Equal(t, []models.ChatUser{{ID: 1, Username: "alice", DisplayName: "Alice"}}, view.Messages[1].Mentions)
	require.True(t, view.Messages[1].CanDelete)
}

func TestGetMessagesStaffCanDeleteAll(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	staff := service.Caller{ID: 99, Username: "prof"}
	id.On("CheckAccess", mock.Anything, courseID, staff.ID).Return(identity.Access{Staff: true}, nil).Once()
	id.On("CourseRoster", mock.Anything, courseID).Return([]identity.User{alice, bob}, nil).Once()
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7}, nil).Once()
	messages.On("ListMessages", mock.Anything, 7, 100).Return([]models.ChatMessage{
		{ID: 1, RoomID: 7, UserID: alice.ID, Message: "hello"},
		{ID: 2, RoomID: 7, UserID: bob.ID, Message: "world"},
	}, nil).Once()

	view, err := svc.GetMessages(context.Background(), courseID, models.ChatTypeGeneral, staff)
	require.NoError(t, err)
	for _, msg := range view.Messages {
		require.True(t, msg.CanDelete)
	}
}

func TestGetMessagesServesWithoutRoster(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	enrolled(id, bob.ID, false)
	id.On("CourseRoster", mock.Anything, courseID).Return(nil, errors.New("identity service down")).Once()
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7}, nil).Once()
	messages.On("ListMessages", mock.Anything, 7, 100).Return([]models.ChatMessage{
		{ID: 1, RoomID: 7, UserID: alice.ID, Message: "hello", MentionIDs: []int{bob.ID}},
	}, nil).Once()

	view, err := svc.GetMessages(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID, Username: "bob", DisplayName: "Bob"})
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)

	// unresolvable author and mentions degrade to id-only entries; the
	// caller's own identity still comes from the token
	require.Equal(t, models.ChatUser{ID: alice.ID}, view.Messages[0].User)
	require.Equal(t, []models.ChatUser{{ID: 2, Username: "bob", DisplayName: "Bob"}}, view.Messages[0].Mentions)
}

func TestGetMessagesIsRepeatable(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	stored := []models.ChatMessage{
		{ID: 1, RoomID: 7, UserID: alice.ID, Message: "first"},
		{ID: 2, RoomID: 7, UserID: alice.ID, Message: "second"},
	}
	id.On("CheckAccess", mock.Anything, courseID, bob.ID).Return(identity.Access{Enrolled: true}, nil).Twice()
	id.On("CourseRoster", mock.Anything, courseID).Return([]identity.User{alice, bob}, nil).Twice()
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7}, nil).Twice()
	messages.On("ListMessages", mock.Anything, 7, 100).Return(stored, nil).Twice()

	first, err := svc.GetMessages(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID})
	require.NoError(t, err)
	second, err := svc.GetMessages(context.Background(), courseID, models.ChatTypeGeneral, service.Caller{ID: bob.ID})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDeleteMessageRoomMismatch(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	enrolled(id, bob.ID, false)
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7}, nil).Once()
	messages.On("GetMessage", mock.Anything, 3).Return(models.ChatMessage{ID: 3, RoomID: 8, UserID: bob.ID}, nil).Once()

	err := svc.DeleteMessage(context.Background(), courseID, models.ChatTypeGeneral, 3, service.Caller{ID: bob.ID})
	require.ErrorIs(t, err, service.ErrRoomMismatch)
	messages.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessagePassesPrivilegedFlag(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	staff := service.Caller{ID: 99}
	id.On("CheckAccess", mock.Anything, courseID, staff.ID).Return(identity.Access{Staff: true}, nil).Once()
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeTechnical).Return(models.ChatRoom{ID: 7}, nil).Once()
	messages.On("GetMessage", mock.Anything, 3).Return(models.ChatMessage{ID: 3, RoomID: 7, UserID: alice.ID}, nil).Once()
	messages.On("SoftDeleteMessage", mock.Anything, 3, staff.ID, true).Return(nil).Once()

	require.NoError(t, svc.DeleteMessage(context.Background(), courseID, models.ChatTypeTechnical, 3, staff))
	messages.AssertExpectations(t)
}

func TestDeleteMessageConcurrentSingleWinner(t *testing.T) {
	const workers = 8

	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	id.On("CheckAccess", mock.Anything, courseID, alice.ID).Return(identity.Access{Enrolled: true}, nil).Times(workers)
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7}, nil).Times(workers)
	messages.On("GetMessage", mock.Anything, 3).Return(models.ChatMessage{ID: 3, RoomID: 7, UserID: alice.ID}, nil).Times(workers)
	messages.On("SoftDeleteMessage", mock.Anything, 3, alice.ID, false).Return(nil).Once()
	messages.On("SoftDeleteMessage", mock.Anything, 3, alice.ID, false).Return(repositories.ErrMessageAlreadyDeleted)

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.DeleteMessage(context.Background(), courseID, models.ChatTypeGeneral, 3, service.Caller{ID: alice.ID})
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repositories.ErrMessageAlreadyDeleted):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, conflicts)
}

func TestDeleteMessageAlreadyDeleted(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	id := new(mocks.IdentityAdapterMock)
	svc := newTestService(rooms, messages, id)

	enrolled(id, alice.ID, false)
	rooms.On("GetOrCreateRoom", mock.Anything, courseID, models.ChatTypeGeneral).Return(models.ChatRoom{ID: 7}, nil).Once()
	messages.On("GetMessage", mock.Anything, 3).Return(models.ChatMessage{ID: 3, RoomID: 7, UserID: alice.ID, IsDeleted: true}, nil).Once()
	messages.On("SoftDeleteMessage", mock.Anything, 3, alice.ID, false).Return(repositories.ErrMessageAlreadyDeleted).Once()

	err := svc.DeleteMessage(context.Background(), courseID, models.ChatTypeGeneral, 3, service.Caller{ID: alice.ID})
	require.ErrorIs(t, err, repositories.ErrMessageAlreadyDeleted)
}
