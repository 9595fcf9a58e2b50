package models

import (
	"encoding/json"
	"time"
)

// TodoType classifies what kind of work a todo represents
type TodoType string

const (
	TodoTypeDeliverable    TodoType = "deliverable"
	TodoTypeResearch       TodoType = "research"
	TodoTypeErrand         TodoType = "errand"
	TodoTypeLearning       TodoType = "learning"
	TodoTypeAdministrative TodoType = "administrative"
	TodoTypeCreative       TodoType = "creative"
	TodoTypeReview         TodoType = "review"
)

// TodoBucket decides whether the orchestrator may auto-pick a todo
type TodoBucket string

const (
	BucketAgentStartable TodoBucket = "agent_startable"
	BucketHumanOnly      TodoBucket = "human_only"
)

// TodoStatus is a todo's lifecycle state
type TodoStatus string

const (
	TodoStatusCreated        TodoStatus = "created"
	TodoStatusAgentWorking   TodoStatus = "agent_working"
	TodoStatusReadyForReview TodoStatus = "ready_for_review"
	TodoStatusWaitingOnYou   TodoStatus = "waiting_on_you"
	TodoStatusSnoozed        TodoStatus = "snoozed"
	TodoStatusCompleted      TodoStatus = "completed"
)

// todoTransitions is the legal transition set. Completed is additionally
// reachable from any status via explicit user action.
var todoTransitions = map[TodoStatus][]TodoStatus{
	TodoStatusCreated:        {TodoStatusAgentWorking, TodoStatusCompleted, TodoStatusSnoozed},
	TodoStatusAgentWorking:   {TodoStatusReadyForReview, TodoStatusCreated, TodoStatusCompleted},
	TodoStatusReadyForReview: {TodoStatusCompleted, TodoStatusWaitingOnYou},
	TodoStatusSnoozed:        {TodoStatusCreated, TodoStatusCompleted},
	TodoStatusWaitingOnYou:   {TodoStatusCompleted},
}

// CanTransition reports whether from → to is a legal todo state transition
func CanTransition(from, to TodoStatus) bool {
	if to == TodoStatusCompleted {
		return true
	}
	for _, next := range todoTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TodoItem is a unit of work with a lifecycle. Agent-startable todos may be
// auto-picked by the orchestrator; IsAgentInternal excludes a todo from pickup
// (used for bookkeeping items agents create for themselves).
type TodoItem struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	TodoType        TodoType        `json:"todo_type"`
	Bucket          TodoBucket      `json:"bucket"`
	Status          TodoStatus      `json:"status"`
	Priority        int32           `json:"priority"` // lower = higher priority
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Context         json.RawMessage `json:"context,omitempty"` // opaque structured blob
	SourceCardID    string          `json:"source_card_id,omitempty"`
	SnoozedUntil    *time.Time      `json:"snoozed_until,omitempty"`
	IsAgentInternal bool            `json:"is_agent_internal"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Eligible reports whether the orchestrator may pick this todo up
func (t *TodoItem) Eligible() bool {
	return t.Status == TodoStatusCreated && t.Bucket == BucketAgentStartable && !t.IsAgentInternal
}
