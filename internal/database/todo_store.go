package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aiassist/internal/models"
)

// TodoStore persists todo items. Status transitions are conditional updates so
// concurrent actors cannot double-claim a todo.
type TodoStore struct {
	db *DB
}

// NewTodoStore creates a todo store
func NewTodoStore(db *DB) *TodoStore {
	return &TodoStore{db: db}
}

// Create stores a new todo
func (s *TodoStore) Create(ctx context.Context, todo *models.TodoItem) error {
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	if todo.Status == "" {
		todo.Status = models.TodoStatusCreated
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (id, user_id, title, description, todo_type, bucket, status, priority,
			due_date, context, source_card_id, snoozed_until, is_agent_internal, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.UserID, todo.Title, todo.Description, string(todo.TodoType), string(todo.Bucket),
		string(todo.Status), todo.Priority, nullableTime(todo.DueDate), rawOrEmpty(todo.Context, "{}"),
		todo.SourceCardID, nullableTime(todo.SnoozedUntil), boolToInt(todo.IsAgentInternal),
		todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

// Get returns a todo by id
func (s *TodoStore) Get(ctx context.Context, id string) (*models.TodoItem, error) {
	row := s.db.QueryRowContext(ctx, selectTodo+` WHERE id = ?`, id)
	return scanTodo(row)
}

// List returns all todos for a user
func (s *TodoStore) List(ctx context.Context, userID string) ([]*models.TodoItem, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTodo+` WHERE user_id = ? ORDER BY priority ASC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()
	return scanTodos(rows)
}

// ListActive returns all non-completed todos for a user (the live sync feed)
func (s *TodoStore) ListActive(ctx context.Context, userID string) ([]*models.TodoItem, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTodo+` WHERE user_id = ? AND status != ? ORDER BY priority ASC, created_at ASC`,
		userID, string(models.TodoStatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to list active todos: %w", err)
	}
	defer rows.Close()
	return scanTodos(rows)
}

// ListByStatus returns a user's todos in a given status, in pickup order
// (priority ascending, then created_at ascending).
func (s *TodoStore) ListByStatus(ctx context.Context, userID string, status models.TodoStatus) ([]*models.TodoItem, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTodo+` WHERE user_id = ? AND status = ? ORDER BY priority ASC, created_at ASC`,
		userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list todos by status: %w", err)
	}
	defer rows.Close()
	return scanTodos(rows)
}

// ListAllByStatus returns todos in a given status across all users.
// Used by the crash-recovery sweep.
func (s *TodoStore) ListAllByStatus(ctx context.Context, status models.TodoStatus) ([]*models.TodoItem, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTodo+` WHERE status = ? ORDER BY priority ASC, created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list todos by status: %w", err)
	}
	defer rows.Close()
	return scanTodos(rows)
}

// Update rewrites a todo's mutable fields (not its status)
func (s *TodoStore) Update(ctx context.Context, todo *models.TodoItem) error {
	todo.UpdatedAt = time.Now().UTC()

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE todos SET title = ?, description = ?, todo_type = ?, bucket = ?, priority = ?,
			due_date = ?, context = ?, snoozed_until = ?, is_agent_internal = ?, updated_at = ?
		WHERE id = ?`,
		todo.Title, todo.Description, string(todo.TodoType), string(todo.Bucket), todo.Priority,
		nullableTime(todo.DueDate), rawOrEmpty(todo.Context, "{}"), nullableTime(todo.SnoozedUntil),
		boolToInt(todo.IsAgentInternal), todo.UpdatedAt, todo.ID)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus atomically transitions a todo from one status to another.
// Returns ErrNotFound when the todo is missing or no longer in `from` —
// another actor got there first.
func (s *TodoStore) UpdateStatus(ctx context.Context, id string, from, to models.TodoStatus) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE todos SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to transition todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete marks a todo completed regardless of its current status
// (explicit user action is always allowed to complete).
func (s *TodoStore) Complete(ctx context.Context, id string) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE todos SET status = ?, updated_at = ? WHERE id = ?`,
		string(models.TodoStatusCompleted), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Snooze moves a todo to snoozed until the given time
func (s *TodoStore) Snooze(ctx context.Context, id string, until time.Time) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE todos SET status = ?, snoozed_until = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(models.TodoStatusSnoozed), until, time.Now().UTC(), id, string(models.TodoStatusCreated))
	if err != nil {
		return fmt.Errorf("failed to snooze todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a todo. This is the only way a todo ever leaves the table.
func (s *TodoStore) Delete(ctx context.Context, id string) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectTodo = `
	SELECT id, user_id, title, description, todo_type, bucket, status, priority,
		due_date, context, source_card_id, snoozed_until, is_agent_internal, created_at, updated_at
	FROM todos`

func scanTodo(row rowScanner) (*models.TodoItem, error) {
	var t models.TodoItem
	var todoType, bucket, status, contextJSON string
	var dueDate, snoozedUntil sql.NullTime
	var agentInternal int
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &todoType, &bucket, &status,
		&t.Priority, &dueDate, &contextJSON, &t.SourceCardID, &snoozedUntil, &agentInternal,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan todo: %w", err)
	}
	t.TodoType = models.TodoType(todoType)
	t.Bucket = models.TodoBucket(bucket)
	t.Status = models.TodoStatus(status)
	t.Context = json.RawMessage(contextJSON)
	t.IsAgentInternal = agentInternal != 0
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if snoozedUntil.Valid {
		u := snoozedUntil.Time
		t.SnoozedUntil = &u
	}
	return &t, nil
}

func scanTodos(rows *sql.Rows) ([]*models.TodoItem, error) {
	var out []*models.TodoItem
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
