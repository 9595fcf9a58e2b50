package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"aiassist/internal/database"
	"aiassist/internal/llm"
	"aiassist/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// scriptedProvider returns canned completions in order. When the script is
// exhausted it keeps returning the last entry. gate, when set, blocks each
// call until released (or the context ends) to hold workers in flight.
type scriptedProvider struct {
	mu     sync.Mutex
	script []scriptStep
	calls  int
	gate   chan struct{}
}

type scriptStep struct {
	completion *llm.Completion
	err        error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Completion, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++
	step := p.script[idx]
	return step.completion, step.err
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func textCompletion(text string) scriptStep {
	return scriptStep{completion: &llm.Completion{Text: text, StopReason: "end_turn"}}
}

func toolCompletion(name, args string) scriptStep {
	return scriptStep{completion: &llm.Completion{
		ToolCalls:  []llm.ToolCall{{ID: uuid.New().String(), Name: name, Arguments: args}},
		StopReason: "tool_use",
	}}
}

func pendingCard(receivedAt time.Time) *models.ApprovalCard {
	now := time.Now().UTC()
	return &models.ApprovalCard{
		ID:             uuid.New().String(),
		ConversationID: "email:alice@trusted.org",
		MessageID:      uuid.New().String(),
		SourceMessage:  "Can you review the draft?",
		SourceSender:   "alice@trusted.org",
		SuggestedReply: "Sure, I will have a look today.",
		Confidence:     0.9,
		Status:         models.CardStatusPending,
		Channel:        "email",
		CreatedAt:      now,
		ExpiresAt:      receivedAt.Add(24 * time.Hour),
		UpdatedAt:      now,
	}
}

func agentTodo(t *testing.T, store *database.TodoStore, priority int32) *models.TodoItem {
	t.Helper()
	now := time.Now().UTC()
	todo := &models.TodoItem{
		ID:        uuid.New().String(),
		UserID:    DefaultUserID,
		Title:     "Summarize the meeting notes",
		TodoType:  models.TodoTypeResearch,
		Bucket:    models.BucketAgentStartable,
		Status:    models.TodoStatusCreated,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(context.Background(), todo); err != nil {
		t.Fatalf("create todo: %v", err)
	}
	return todo
}

// waitFor polls until cond is true or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
