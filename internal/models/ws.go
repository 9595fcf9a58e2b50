package models

import (
	"encoding/json"
	"time"
)

// Server → client WebSocket message types. All envelopes carry a lower_snake_case
// type discriminator.
const (
	WSTypeCardsSync   = "cards_sync"
	WSTypeCardCreated = "card_created"
	WSTypeCardUpdated = "card_updated"
	WSTypeCardDeleted = "card_deleted"

	WSTypeTodosSync   = "todos_sync"
	WSTypeTodoCreated = "todo_created"
	WSTypeTodoUpdated = "todo_updated"
	WSTypeTodoDeleted = "todo_deleted"

	WSTypeError = "error"
	WSTypePong  = "pong"
)

// ServerMessage is the envelope for all server → client WebSocket messages
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// CardAction is a client → server action on /ws/cards
type CardAction struct {
	Action  string `json:"action"` // "approve", "dismiss", "edit", "ping"
	CardID  string `json:"card_id,omitempty"`
	NewText string `json:"new_text,omitempty"`
}

// TodoAction is a client → server action on /ws/todos
type TodoAction struct {
	Action string `json:"action"` // "create", "complete", "delete", "update", "snooze", "ping"
	TodoID string `json:"todo_id,omitempty"`

	// create / update fields
	Title        string          `json:"title,omitempty"`
	Description  string          `json:"description,omitempty"`
	TodoType     TodoType        `json:"todo_type,omitempty"`
	Bucket       TodoBucket      `json:"bucket,omitempty"`
	Priority     *int32          `json:"priority,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Context      json.RawMessage `json:"context,omitempty"`
	SourceCardID string          `json:"source_card_id,omitempty"`

	// snooze
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
}
