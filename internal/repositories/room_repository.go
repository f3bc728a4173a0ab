package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"learner-chat/internal/models"
)

// RoomRepository abstracts chat room persistence.
type RoomRepository interface {
	GetOrCreateRoom(ctx context.Context, courseID string, chatType models.ChatType) (models.ChatRoom, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `id, course_id, chat_type, created_at, updated_at`

// GetOrCreateRoom returns the room for (course, chat type), creating it on
// first reference. The insert is conflict-safe, so concurrent first access
// resolves to a single row: a loser of the create race re-reads the winner's.
func (r *RoomRepo) GetOrCreateRoom(ctx context.Context, courseID string, chatType models.ChatType) (models.ChatRoom, error) {
	var room models.ChatRoom
	selectQuery := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE course_id=$1 AND chat_type=$2`

	err := r.db.GetContext(ctx, &room, selectQuery, courseID, chatType)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO chat_rooms (course_id, chat_type) VALUES ($1, $2)
        ON CONFLICT (course_id, chat_type) DO NOTHING
        RETURNING `+roomColumns, courseID, chatType).StructScan(&room)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the create race; the row exists now
		err = r.db.GetContext(ctx, &room, selectQuery, courseID, chatType)
	}
	if err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}
