package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aiassist/internal/models"
)

// CardStore persists approval cards. The CardQueue is the authoritative
// in-memory view; this store is its write-through backing.
type CardStore struct {
	db *DB
}

// NewCardStore creates a card store
func NewCardStore(db *DB) *CardStore {
	return &CardStore{db: db}
}

// Insert stores a new card. Returns ErrDuplicate when the id exists.
func (s *CardStore) Insert(ctx context.Context, card *models.ApprovalCard) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, conversation_id, message_id, source_message, source_sender,
			suggested_reply, confidence, status, channel, created_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.ConversationID, card.MessageID, card.SourceMessage, card.SourceSender,
		card.SuggestedReply, card.Confidence, string(card.Status), card.Channel,
		card.CreatedAt, card.ExpiresAt, card.UpdatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert card: %w", err)
	}
	return nil
}

// Get returns a card by id
func (s *CardStore) Get(ctx context.Context, id string) (*models.ApprovalCard, error) {
	row := s.db.QueryRowContext(ctx, selectCard+` WHERE id = ?`, id)
	return scanCard(row)
}

// ListByStatus returns cards in a given status, oldest first
func (s *CardStore) ListByStatus(ctx context.Context, status models.CardStatus) ([]*models.ApprovalCard, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCard+` WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var out []*models.ApprovalCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a card's status and updates its reply text
// (used by edit; other transitions pass the existing reply through).
func (s *CardStore) UpdateStatus(ctx context.Context, id string, status models.CardStatus, suggestedReply string) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET status = ?, suggested_reply = ?, updated_at = ? WHERE id = ?`,
		string(status), suggestedReply, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectCard = `
	SELECT id, conversation_id, message_id, source_message, source_sender,
		suggested_reply, confidence, status, channel, created_at, expires_at, updated_at
	FROM cards`

func scanCard(row rowScanner) (*models.ApprovalCard, error) {
	var c models.ApprovalCard
	var status string
	err := row.Scan(&c.ID, &c.ConversationID, &c.MessageID, &c.SourceMessage, &c.SourceSender,
		&c.SuggestedReply, &c.Confidence, &status, &c.Channel, &c.CreatedAt, &c.ExpiresAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}
	c.Status = models.CardStatus(status)
	return &c, nil
}
