package models

import "time"

// ChatMessage is the stored form of a room message. Room and author are
// immutable after creation; the deleted fields transition once, from unset to
// set, and the message text is retained for audit even after deletion.
type ChatMessage struct {
	ID         int        `db:"id" json:"id"`
	RoomID     int        `db:"room_id" json:"room_id"`
	UserID     int        `db:"user_id" json:"user_id"`
	Message    string     `db:"message" json:"message"`
	MentionIDs []int      `db:"-" json:"mention_ids"`
	IsDeleted  bool       `db:"is_deleted" json:"is_deleted"`
	DeletedBy  *int       `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ChatUser is the user shape embedded in API responses.
type ChatUser struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// MessageView is the per-caller rendering of a message. CanDelete is computed
// for the requesting user and never persisted. Deleted messages keep their
// position but carry placeholder text and no mentions.
type MessageView struct {
	ID        int        `json:"id"`
	User      ChatUser   `json:"user"`
	Message   string     `json:"message"`
	Mentions  []ChatUser `json:"mentions"`
	IsDeleted bool       `json:"is_deleted"`
	CreatedAt time.Time  `json:"created_at"`
	CanDelete bool       `json:"can_delete"`
}

// RoomView is the list-messages response. MessageCount counts non-deleted
// messages only.
type RoomView struct {
	RoomID       int           `json:"room_id"`
	CourseID     string        `json:"course_id"`
	ChatType     ChatType      `json:"chat_type"`
	MessageCount int           `json:"message_count"`
	Messages     []MessageView `json:"messages"`
}
