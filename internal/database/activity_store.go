package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aiassist/internal/models"
)

// ActivityStore is the append-only log of agent activity, ordered per todo.
// Persistence happens before broadcast so a late subscriber can replay the
// full history without gaps.
type ActivityStore struct {
	db *DB
}

// NewActivityStore creates an activity store
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Append persists an activity event and returns its sequence number within
// the todo's stream.
func (s *ActivityStore) Append(ctx context.Context, todoID string, event models.ActivityEvent) (int64, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal activity event: %w", err)
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (todo_id, job_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		todoID, event.JobID, string(event.Type), string(payload), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to append activity: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read activity seq: %w", err)
	}
	return seq, nil
}

// GetForTodo returns a todo's activity events in append order
func (s *ActivityStore) GetForTodo(ctx context.Context, todoID string) ([]models.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload FROM activity WHERE todo_id = ? ORDER BY seq ASC`, todoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []models.ActivityRecord
	for rows.Next() {
		var rec models.ActivityRecord
		var payload string
		if err := rows.Scan(&rec.Seq, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Event); err != nil {
			return nil, fmt.Errorf("failed to decode activity event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
