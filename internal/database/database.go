package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection.
// Writes are serialized through writeMu — the workload is write-light and
// SQLite allows a single writer anyway. Concurrent reads go straight through.
type DB struct {
	*sql.DB
	writeMu sync.Mutex
}

// New opens (or creates) the SQLite database at the given path
func New(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps the in-memory variant coherent and serializes writes
	// at the pool level as well.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("✅ SQLite database opened at %s", path)

	return &DB{DB: db}, nil
}

// Initialize creates all required tables
func (db *DB) Initialize() error {
	log.Println("🔍 Checking database schema...")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			external_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			thread_context TEXT NOT NULL DEFAULT '[]',
			reply_metadata TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			replied_at TIMESTAMP,
			metadata TEXT NOT NULL DEFAULT '{}',
			received_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(channel, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_status_channel ON messages(status, channel)`,

		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL DEFAULT '',
			source_message TEXT NOT NULL,
			source_sender TEXT NOT NULL,
			suggested_reply TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			channel TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_status ON cards(status)`,

		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			todo_type TEXT NOT NULL,
			bucket TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'created',
			priority INTEGER NOT NULL DEFAULT 100,
			due_date TIMESTAMP,
			context TEXT NOT NULL DEFAULT '{}',
			source_card_id TEXT NOT NULL DEFAULT '',
			snoozed_until TIMESTAMP,
			is_agent_internal INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_status ON todos(user_id, status)`,

		`CREATE TABLE IF NOT EXISTS activity (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			todo_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_todo ON activity(todo_id, seq)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Println("✅ Database schema ready")
	return nil
}

// write runs a mutating statement under the write lock
func (db *DB) write(query string, args ...any) (sql.Result, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return db.Exec(query, args...)
}
