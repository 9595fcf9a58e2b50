package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"aiassist/internal/database"
	"aiassist/internal/models"
)

// DefaultUserID owns todos created without an explicit user. This is a
// single-operator server; the column exists so multi-user can come later
// without a migration.
const DefaultUserID = "default"

// TodoService is the single mutation path for todos. Every write persists to
// the store first, then broadcasts on the todos topic, so WebSocket clients,
// REST callers and the orchestrator all observe the same ordered stream.
type TodoService struct {
	store  *database.TodoStore
	bus    *EventBus
	logger *slog.Logger
}

// NewTodoService creates a todo service backed by the given store
func NewTodoService(store *database.TodoStore, bus *EventBus) *TodoService {
	return &TodoService{store: store, bus: bus, logger: slog.Default()}
}

// Create validates, persists and broadcasts a new todo
func (s *TodoService) Create(ctx context.Context, todo *models.TodoItem) (*models.TodoItem, error) {
	if todo.Title == "" {
		return nil, fmt.Errorf("todo title is required")
	}
	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	if todo.UserID == "" {
		todo.UserID = DefaultUserID
	}
	if todo.TodoType == "" {
		todo.TodoType = models.TodoTypeAdministrative
	}
	if todo.Bucket == "" {
		todo.Bucket = models.BucketHumanOnly
	}
	todo.Status = models.TodoStatusCreated
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	if err := s.store.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	s.logger.Info("todo created", "todo_id", todo.ID, "bucket", todo.Bucket, "type", todo.TodoType)
	s.bus.Publish(TopicTodos, Event{Type: models.WSTypeTodoCreated, Data: todo})
	return todo, nil
}

// Get returns one todo by id
func (s *TodoService) Get(ctx context.Context, id string) (*models.TodoItem, error) {
	return s.store.Get(ctx, id)
}

// ListActive returns all non-completed todos for the live sync feed
func (s *TodoService) ListActive(ctx context.Context, userID string) ([]*models.TodoItem, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	return s.store.ListActive(ctx, userID)
}

// List returns all todos for a user, completed included
func (s *TodoService) List(ctx context.Context, userID string) ([]*models.TodoItem, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	return s.store.List(ctx, userID)
}

// Complete marks a todo completed from any status. Completing an already
// completed todo is a no-op that still returns the todo.
func (s *TodoService) Complete(ctx context.Context, id string) (*models.TodoItem, error) {
	if err := s.store.Complete(ctx, id); err != nil {
		return nil, err
	}
	todo, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(TopicTodos, Event{Type: models.WSTypeTodoUpdated, Data: todo})
	return todo, nil
}

// Delete removes a todo permanently. The only way a todo leaves the store.
func (s *TodoService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.bus.Publish(TopicTodos, Event{Type: models.WSTypeTodoDeleted, Data: map[string]string{"id": id}})
	return nil
}

// Update replaces a todo's editable fields. Status is not touched here;
// use Transition, Complete or Snooze for lifecycle changes.
func (s *TodoService) Update(ctx context.Context, todo *models.TodoItem) (*models.TodoItem, error) {
	existing, err := s.store.Get(ctx, todo.ID)
	if err != nil {
		return nil, err
	}

	existing.Title = todo.Title
	if todo.Description != "" {
		existing.Description = todo.Description
	}
	if todo.TodoType != "" {
		existing.TodoType = todo.TodoType
	}
	if todo.Bucket != "" {
		existing.Bucket = todo.Bucket
	}
	existing.Priority = todo.Priority
	existing.DueDate = todo.DueDate
	if todo.Context != nil {
		existing.Context = todo.Context
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update todo %s: %w", todo.ID, err)
	}
	s.bus.Publish(TopicTodos, Event{Type: models.WSTypeTodoUpdated, Data: existing})
	return existing, nil
}

// Snooze parks a created todo until the given time
func (s *TodoService) Snooze(ctx context.Context, id string, until time.Time) (*models.TodoItem, error) {
	if until.Before(time.Now()) {
		return nil, fmt.Errorf("snooze time must be in the future")
	}
	if err := s.store.Snooze(ctx, id, until); err != nil {
		return nil, err
	}
	todo, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("todo snoozed", "todo_id", id, "until", until)
	s.bus.Publish(TopicTodos, Event{Type: models.WSTypeTodoUpdated, Data: todo})
	return todo, nil
}

// Transition moves a todo from one status to another, enforcing the legal
// transition set and failing with ErrNotFound when the todo is no longer in
// the expected source status. Broadcasts on success.
func (s *TodoService) Transition(ctx context.Context, id string, from, to models.TodoStatus) (*models.TodoItem, error) {
	if !models.CanTransition(from, to) {
		return nil, fmt.Errorf("illegal todo transition %s → %s", from, to)
	}
	if err := s.store.UpdateStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	todo, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(TopicTodos, Event{Type: models.WSTypeTodoUpdated, Data: todo})
	return todo, nil
}

// WakeSnoozed returns snoozed todos whose snoozed_until elapsed to created.
// Returns how many were woken.
func (s *TodoService) WakeSnoozed(ctx context.Context) int {
	snoozed, err := s.store.ListAllByStatus(ctx, models.TodoStatusSnoozed)
	if err != nil {
		s.logger.Error("failed to list snoozed todos", "error", err)
		return 0
	}

	now := time.Now()
	woken := 0
	for _, todo := range snoozed {
		if todo.SnoozedUntil == nil || todo.SnoozedUntil.After(now) {
			continue
		}
		if _, err := s.Transition(ctx, todo.ID, models.TodoStatusSnoozed, models.TodoStatusCreated); err != nil {
			if err != database.ErrNotFound {
				s.logger.Error("failed to wake snoozed todo", "todo_id", todo.ID, "error", err)
			}
			continue
		}
		woken++
	}
	return woken
}
