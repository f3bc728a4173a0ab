package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_rooms (
            id SERIAL PRIMARY KEY,
            course_id VARCHAR(255) NOT NULL,
            chat_type VARCHAR(20) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(course_id, chat_type)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id SERIAL PRIMARY KEY,
            room_id INT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            message TEXT NOT NULL,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_by INT,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_created
            ON chat_messages (room_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS chat_message_mentions (
            message_id INT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            position INT NOT NULL,
            PRIMARY KEY(message_id, position)
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
