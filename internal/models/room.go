package models

import (
	"errors"
	"time"
)

// ChatType identifies one of the fixed room categories a course carries.
type ChatType string

const (
	ChatTypeGeneral   ChatType = "general"
	ChatTypeQA        ChatType = "qa"
	ChatTypeTechnical ChatType = "technical"
)

var ErrInvalidChatType = errors.New("invalid chat type")

// ParseChatType validates a raw chat type value from the request path.
func ParseChatType(raw string) (ChatType, error) {
	switch ChatType(raw) {
	case ChatTypeGeneral, ChatTypeQA, ChatTypeTechnical:
		return ChatType(raw), nil
	}
	return "", ErrInvalidChatType
}

// ChatRoom represents a chat room for a course. Exactly one room exists per
// (course, chat type) pair; rooms are created on first reference and never
// deleted.
type ChatRoom struct {
	ID        int       `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	ChatType  ChatType  `db:"chat_type" json:"chat_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
