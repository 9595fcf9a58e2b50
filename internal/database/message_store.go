package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aiassist/internal/models"
)

// MessageStore persists inbound messages from channel adapters
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// Insert stores a new message. Returns ErrDuplicate when (channel, external_id)
// was already seen — the caller must treat the message as processed.
func (s *MessageStore) Insert(ctx context.Context, msg *models.StoredMessage) error {
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = models.MessageStatusPending
	}

	threadJSON, err := json.Marshal(msg.ThreadContext)
	if err != nil {
		return fmt.Errorf("failed to marshal thread context: %w", err)
	}
	replyMeta := rawOrEmpty(msg.ReplyMetadata, "{}")
	metadata := rawOrEmpty(msg.Metadata, "{}")

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel, external_id, sender, sender_name, subject, content,
			thread_context, reply_metadata, status, metadata, received_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Channel, msg.ExternalID, msg.Sender, msg.SenderName, msg.Subject, msg.Content,
		string(threadJSON), replyMeta, string(msg.Status), metadata, msg.ReceivedAt, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetByExternalID looks a message up by its channel-native id
func (s *MessageStore) GetByExternalID(ctx context.Context, channel, externalID string) (*models.StoredMessage, error) {
	row := s.db.QueryRowContext(ctx, selectMessage+` WHERE channel = ? AND external_id = ?`, channel, externalID)
	return scanMessage(row)
}

// Get looks a message up by its internal id
func (s *MessageStore) Get(ctx context.Context, id string) (*models.StoredMessage, error) {
	row := s.db.QueryRowContext(ctx, selectMessage+` WHERE id = ?`, id)
	return scanMessage(row)
}

// GetPending returns pending messages for a channel, oldest first
func (s *MessageStore) GetPending(ctx context.Context, channel string) ([]*models.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		selectMessage+` WHERE status = ? AND channel = ? ORDER BY received_at ASC`,
		string(models.MessageStatusPending), channel)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetByChannel returns the most recent messages for a channel
func (s *MessageStore) GetByChannel(ctx context.Context, channel string, limit int) ([]*models.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		selectMessage+` WHERE channel = ? ORDER BY received_at DESC LIMIT ?`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// UpdateStatus transitions a message's pipeline status. Replied messages get
// a replied_at timestamp.
func (s *MessageStore) UpdateStatus(ctx context.Context, id string, status models.MessageStatus) error {
	now := time.Now().UTC()
	var repliedAt any
	if status == models.MessageStatusReplied {
		repliedAt = now
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, replied_at = COALESCE(?, replied_at), updated_at = ? WHERE id = ?`,
		string(status), repliedAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectMessage = `
	SELECT id, channel, external_id, sender, sender_name, subject, content,
		thread_context, reply_metadata, status, replied_at, metadata, received_at, created_at, updated_at
	FROM messages`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.StoredMessage, error) {
	var m models.StoredMessage
	var threadJSON, replyMeta, metadata, status string
	var repliedAt sql.NullTime
	err := row.Scan(&m.ID, &m.Channel, &m.ExternalID, &m.Sender, &m.SenderName, &m.Subject, &m.Content,
		&threadJSON, &replyMeta, &status, &repliedAt, &metadata, &m.ReceivedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	m.Status = models.MessageStatus(status)
	if repliedAt.Valid {
		t := repliedAt.Time
		m.RepliedAt = &t
	}
	if err := json.Unmarshal([]byte(threadJSON), &m.ThreadContext); err != nil {
		m.ThreadContext = nil
	}
	m.ReplyMetadata = json.RawMessage(replyMeta)
	m.Metadata = json.RawMessage(metadata)
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*models.StoredMessage, error) {
	var out []*models.StoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func rawOrEmpty(raw json.RawMessage, empty string) string {
	if len(raw) == 0 {
		return empty
	}
	return string(raw)
}
