package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_created
	ON messages(created_at);
`

// Store persists conversation messages in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the conversation database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to open database: %w", err)
	}

	// SQLite supports one writer; a single connection serialises writes and
	// avoids SQLITE_BUSY under concurrent load. WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("conversation: failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("conversation: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append writes one message.
func (s *Store) Append(ctx context.Context, conversationID string, m Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, conversationID, m.Role, m.Content, m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("conversation: failed to insert message: %w", err)
	}
	return nil
}

// History returns the most recent limit messages across all conversations,
// oldest first, so a restarted assistant picks up where the dialogue left
// off.
func (s *Store) History(ctx context.Context, limit int) ([]Message, error) {
	// rowid breaks ties between messages written in the same millisecond.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: history iteration: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
