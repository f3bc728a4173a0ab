package telemetry

import (
	"context"
	"log"
	"time"
)

// Routing keys for room activity events.
const (
	RoutingKeyMessagePosted  = "chat.message.posted"
	RoutingKeyMessageDeleted = "chat.message.deleted"
)

// ChatEventEnvelope wraps a room activity event for the message bus.
type ChatEventEnvelope struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	OccurredAt    string           `json:"occurred_at"`
	Service       string           `json:"service"`
	Environment   string           `json:"environment"`
	Payload       ChatEventPayload `json:"payload"`
}

type ChatEventPayload struct {
	RoomID    int    `json:"room_id"`
	CourseID  string `json:"course_id"`
	ChatType  string `json:"chat_type"`
	MessageID int    `json:"message_id"`
	UserID    int    `json:"user_id"`
}

// ChatEventEmitter publishes room activity for downstream consumers such as
// notification workers. The delivery model to chat clients stays poll-based;
// these events never reach the browser. Publish failures are logged and do
// not affect the request.
type ChatEventEmitter struct {
	publisher   Publisher
	service     string
	environment string
}

func NewChatEventEmitter(publisher Publisher, service, environment string) *ChatEventEmitter {
	return &ChatEventEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// MessagePosted emits a chat.message.posted event.
func (e *ChatEventEmitter) MessagePosted(ctx context.Context, payload ChatEventPayload) {
	e.emit(ctx, RoutingKeyMessagePosted, "message_posted", payload)
}

// MessageDeleted emits a chat.message.deleted event.
func (e *ChatEventEmitter) MessageDeleted(ctx context.Context, payload ChatEventPayload) {
	e.emit(ctx, RoutingKeyMessageDeleted, "message_deleted", payload)
}

func (e *ChatEventEmitter) emit(ctx context.Context, routingKey, eventType string, payload ChatEventPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := ChatEventEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, routingKey, envelope); err != nil {
		log.Printf("chat event publish failed: %v", err)
	}
}
