package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"learner-chat/internal/models"
)

var (
	ErrMessageNotFound       = errors.New("message not found")
	ErrMessageAlreadyDeleted = errors.New("message already deleted")
	ErrEmptyMessage          = errors.New("message cannot be empty")
	ErrPermissionDenied      = errors.New("permission denied")
)

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int, userID int, text string, mentionIDs []int) (models.ChatMessage, error)
	ListMessages(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, messageID int) (models.ChatMessage, error)
	SoftDeleteMessage(ctx context.Context, messageID int, requestingUserID int, isPrivileged bool) error
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, user_id, message, is_deleted, deleted_by, deleted_at, created_at, updated_at`

// CreateMessage persists a message and its mention set in one transaction; a
// message is either fully stored with its mentions or not stored at all.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int, userID int, text string, mentionIDs []int) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.ChatMessage
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chat_messages (room_id, user_id, message) VALUES ($1, $2, $3)
        RETURNING `+messageColumns, roomID, userID, text).StructScan(&msg); err != nil {
		return models.ChatMessage{}, err
	}

	for i, id := range mentionIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_message_mentions (message_id, user_id, position) VALUES ($1, $2, $3)`, msg.ID, id, i); err != nil {
			return models.ChatMessage{}, err
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chat_rooms SET updated_at = NOW() WHERE id=$1`, roomID); err != nil {
		return models.ChatMessage{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, err
	}

	msg.MentionIDs = mentionIDs
	return msg, nil
}

// ListMessages returns up to limit most recent messages in ascending
// (created_at, id) order. The order is total and stable, so polling clients
// see a monotonically extending prefix. Soft-deleted rows are included;
// masking their content is a read-side concern.
func (r *MessageRepo) ListMessages(ctx context.Context, roomID int, limit int) ([]models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT * FROM chat_messages WHERE room_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2
        ) recent ORDER BY created_at ASC, id ASC`
	var msgs []models.ChatMessage
	if err := r.db.SelectContext(ctx, &msgs, query, roomID, limit); err != nil {
		return nil, err
	}
	return r.attachMentions(ctx, msgs)
}

// GetMessage fetches a single message with its mentions.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, err
	}

	msgs, err := r.attachMentions(ctx, []models.ChatMessage{msg})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return msgs[0], nil
}

// SoftDeleteMessage flips a message to deleted exactly once, when the caller
// is the author or privileged. The conditional update makes concurrent
// deletes resolve to a single winner; the loser observes ErrMessageAlreadyDeleted.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int, requestingUserID int, isPrivileged bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_messages
        SET is_deleted = TRUE, deleted_by = $2, deleted_at = NOW(), updated_at = NOW()
        WHERE id=$1 AND is_deleted = FALSE AND (user_id=$2 OR $3)`, messageID, requestingUserID, isPrivileged)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var row struct {
		UserID    int  `db:"user_id"`
		IsDeleted bool `db:"is_deleted"`
	}
	err = r.db.GetContext(ctx, &row, `SELECT user_id, is_deleted FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if row.IsDeleted {
		return ErrMessageAlreadyDeleted
	}
	return ErrPermissionDenied
}

func (r *MessageRepo) attachMentions(ctx context.Context, msgs []models.ChatMessage) ([]models.ChatMessage, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := make([]int, 0, len(msgs))
	index := make(map[int]int, len(msgs))
	for i, m := range msgs {
		ids = append(ids, m.ID)
		index[m.ID] = i
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT message_id, user_id FROM chat_message_mentions
        WHERE message_id = ANY($1) ORDER BY message_id, position`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, userID int
		if err := rows.Scan(&messageID, &userID); err != nil {
			return nil, err
		}
		i := index[messageID]
		msgs[i].MentionIDs = append(msgs[i].MentionIDs, userID)
	}
	return msgs, rows.Err()
}
