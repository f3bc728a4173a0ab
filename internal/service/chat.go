package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"learner-chat/internal/identity"
	"learner-chat/internal/mentions"
	"learner-chat/internal/models"
	"learner-chat/internal/observability"
	"learner-chat/internal/repositories"
	"learner-chat/internal/telemetry"
)

var (
	ErrNotEnrolled         = errors.New("user not enrolled in course")
	ErrRoomMismatch        = errors.New("message does not belong to room")
	ErrMessageTooLong      = errors.New("message too long")
	ErrIdentityUnavailable = errors.New("identity service unavailable")
)

// DeletedPlaceholder replaces the text of soft-deleted messages in responses.
// The stored text is kept untouched for audit.
const DeletedPlaceholder = "[message removed]"

const tracerName = "learner-chat/service"

// Caller identifies the authenticated request principal.
type Caller struct {
	ID          int
	Username    string
	DisplayName string
}

// ChatService orchestrates rooms, messages, mention resolution and
// authorization. Every operation requires the caller to be actively enrolled
// in the course or course staff; the privileged flag comes from the identity
// adapter, never from the client.
type ChatService struct {
	rooms         repositories.RoomRepository
	messages      repositories.MessageRepository
	identity      identity.Adapter
	events        *telemetry.ChatEventEmitter
	maxMessageLen int
	historyLimit  int
}

// NewChatService constructs a ChatService. events may be nil.
func NewChatService(rooms repositories.RoomRepository, messages repositories.MessageRepository, idAdapter identity.Adapter, events *telemetry.ChatEventEmitter, maxMessageLen, historyLimit int) *ChatService {
	if maxMessageLen <= 0 {
		maxMessageLen = 4000
	}
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &ChatService{
		rooms:         rooms,
		messages:      messages,
		identity:      idAdapter,
		events:        events,
		maxMessageLen: maxMessageLen,
		historyLimit:  historyLimit,
	}
}

// GetMessages resolves the room and returns its message list shaped for the
// caller: per-message can_delete flags, deleted messages masked with empty
// mentions, ascending (created_at, id) order.
func (s *ChatService) GetMessages(ctx context.Context, courseID string, chatType models.ChatType, caller Caller) (models.RoomView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "chat.get_messages")
	defer span.End()
	span.SetAttributes(attribute.String("chat.course_id", courseID), attribute.String("chat.type", string(chatType)))

	access, err := s.checkAccess(ctx, courseID, caller.ID)
	if err != nil {
		return models.RoomView{}, err
	}

	room, err := s.rooms.GetOrCreateRoom(ctx, courseID, chatType)
	if err != nil {
		return models.RoomView{}, err
	}

	msgs, err := s.messages.ListMessages(ctx, room.ID, s.historyLimit)
	if err != nil {
		return models.RoomView{}, err
	}

	userByID, err := s.rosterIndex(ctx, courseID, caller)
	if err != nil {
		// the list already loaded; serve it with id-only user entries
		// rather than failing polling clients on a roster outage
		log.Printf("roster unavailable for %s, serving ids only: %v", courseID, err)
		userByID = indexRoster(nil, caller)
	}

	view := models.RoomView{
		RoomID:   room.ID,
		CourseID: courseID,
		ChatType: chatType,
		Messages: make([]models.MessageView, 0, len(msgs)),
	}
	for _, m := range msgs {
		if !m.IsDeleted {
			view.MessageCount++
		}
		view.Messages = append(view.Messages, renderMessage(m, caller, access.Staff, userByID))
	}
	return view, nil
}

// PostMessage validates and appends a message to the room, resolving mentions
// against the course roster at append time. The returned view carries the
// full, non-redacted content.
func (s *ChatService) PostMessage(ctx context.Context, courseID string, chatType models.ChatType, caller Caller, rawText string) (models.MessageView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "chat.post_message")
	defer span.End()
	span.SetAttributes(attribute.String("chat.course_id", courseID), attribute.String("chat.type", string(chatType)))

	access, err := s.checkAccess(ctx, courseID, caller.ID)
	if err != nil {
		return models.MessageView{}, err
	}

	text := strings.TrimSpace(rawText)
	if text == "" {
		return models.MessageView{}, repositories.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.maxMessageLen {
		return models.MessageView{}, ErrMessageTooLong
	}

	room, err := s.rooms.GetOrCreateRoom(ctx, courseID, chatType)
	if err != nil {
		return models.MessageView{}, err
	}

	roster, err := s.identity.CourseRoster(ctx, courseID)
	if err != nil {
		return models.MessageView{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	candidates := make([]mentions.Candidate, 0, len(roster))
	for _, u := range roster {
		candidates = append(candidates, mentions.Candidate{ID: u.ID, Username: u.Username})
	}
	mentionIDs := mentions.Resolve(text, candidates)

	msg, err := s.messages.CreateMessage(ctx, room.ID, caller.ID, text, mentionIDs)
	if err != nil {
		return models.MessageView{}, err
	}

	observability.IncMessagePosted(string(chatType))
	observability.AddMentionsResolved(len(mentionIDs))
	s.events.MessagePosted(ctx, telemetry.ChatEventPayload{
		RoomID:    room.ID,
		CourseID:  courseID,
		ChatType:  string(chatType),
		MessageID: msg.ID,
		UserID:    caller.ID,
	})

	userByID := indexRoster(roster, caller)
	return renderMessage(msg, caller, access.Staff, userByID), nil
}

// DeleteMessage soft-deletes a message after verifying it belongs to the room
// addressed by (course, chat type). Deletion is permitted to the author and
// to privileged callers, and happens at most once per message.
func (s *ChatService) DeleteMessage(ctx context.Context, courseID string, chatType models.ChatType, messageID int, caller Caller) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "chat.delete_message")
	defer span.End()
	span.SetAttributes(attribute.String("chat.course_id", courseID), attribute.Int("chat.message_id", messageID))

	access, err := s.checkAccess(ctx, courseID, caller.ID)
	if err != nil {
		return err
	}

	room, err := s.rooms.GetOrCreateRoom(ctx, courseID, chatType)
	if err != nil {
		return err
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != room.ID {
		return ErrRoomMismatch
	}

	if err := s.messages.SoftDeleteMessage(ctx, messageID, caller.ID, access.Staff); err != nil {
		return err
	}

	observability.IncMessageDeleted(string(chatType))
	s.events.MessageDeleted(ctx, telemetry.ChatEventPayload{
		RoomID:    room.ID,
		CourseID:  courseID,
		ChatType:  string(chatType),
		MessageID: messageID,
		UserID:    caller.ID,
	})
	return nil
}

func (s *ChatService) checkAccess(ctx context.Context, courseID string, userID int) (identity.Access, error) {
	access, err := s.identity.CheckAccess(ctx, courseID, userID)
	if err != nil {
		return identity.Access{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	if !access.Enrolled && !access.Staff {
		return identity.Access{}, ErrNotEnrolled
	}
	return access, nil
}

func (s *ChatService) rosterIndex(ctx context.Context, courseID string, caller Caller) (map[int]identity.User, error) {
	roster, err := s.identity.CourseRoster(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	return indexRoster(roster, caller), nil
}

func indexRoster(roster []identity.User, caller Caller) map[int]identity.User {
	userByID := make(map[int]identity.User, len(roster)+1)
	for _, u := range roster {
		userByID[u.ID] = u
	}
	// staff callers may not appear in the enrollment roster
	if _, ok := userByID[caller.ID]; !ok {
		userByID[caller.ID] = identity.User{ID: caller.ID, Username: caller.Username, DisplayName: caller.DisplayName}
	}
	return userByID
}

func renderMessage(m models.ChatMessage, caller Caller, callerIsStaff bool, userByID map[int]identity.User) models.MessageView {
	view := models.MessageView{
		ID:        m.ID,
		User:      chatUser(m.UserID, userByID),
		Message:   m.Message,
		Mentions:  make([]models.ChatUser, 0, len(m.MentionIDs)),
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
		CanDelete: m.UserID == caller.ID || callerIsStaff,
	}
	if m.IsDeleted {
		view.Message = DeletedPlaceholder
		return view
	}
	for _, id := range m.MentionIDs {
		view.Mentions = append(view.Mentions, chatUser(id, userByID))
	}
	return view
}

func chatUser(id int, userByID map[int]identity.User) models.ChatUser {
	if u, ok := userByID[id]; ok {
		return models.ChatUser{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
	}
	// author or mention no longer in the roster; keep the id
	return models.ChatUser{ID: id}
}
