package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"aiassist/internal/database"
	"aiassist/internal/models"
	"aiassist/internal/rules"
)

const validTriage = `{"category":"reply","urgency":0.7,"suggested_reply":"Sure, sending it over today.","confidence":0.85,"reason":"direct question"}`

func inboundMessage() models.InboundMessage {
	return models.InboundMessage{
		ID:         uuid.New().String(),
		Channel:    "email",
		Sender:     "alice@trusted.org",
		Subject:    "Draft",
		Content:    "Can you send me the draft?",
		ReceivedAt: time.Now().UTC(),
	}
}

func newTestProcessor(t *testing.T, engine *rules.Engine, provider *scriptedProvider) (*MessageProcessor, *CardQueue) {
	t.Helper()
	db := newTestDB(t)
	queue := NewCardQueue(database.NewCardStore(db), NewEventBus(), nil)
	if engine == nil {
		engine = rules.NewEngine()
	}
	return NewMessageProcessor(engine, provider, queue, nil, 0.6, 24*time.Hour), queue
}

func TestProcessMintsCard(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{textCompletion(validTriage)}}
	processor, queue := newTestProcessor(t, nil, provider)

	msg := inboundMessage()
	result := processor.Process(context.Background(), msg)

	if result.Action != ActionCarded {
		t.Fatalf("action = %s, want Carded", result.Action)
	}
	if result.Card == nil || result.Card.MessageID != msg.ID {
		t.Fatalf("card = %+v", result.Card)
	}
	if result.Card.SuggestedReply != "Sure, sending it over today." {
		t.Errorf("reply = %q", result.Card.SuggestedReply)
	}

	pending := queue.Pending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("queue pending = %d, want 1", len(pending))
	}
	wantExpiry := msg.ReceivedAt.Add(24 * time.Hour)
	if !pending[0].ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expiry = %v, want %v", pending[0].ExpiresAt, wantExpiry)
	}
}

func TestProcessIgnoreRuleSkipsLLM(t *testing.T) {
	engine := rules.NewEngine()
	rulesYAML := `
rules:
  - name: drop-newsletters
    body_contains: unsubscribe
    action: ignore
`
	if err := engine.Load([]byte(rulesYAML)); err != nil {
		t.Fatalf("load rules: %v", err)
	}

	provider := &scriptedProvider{script: []scriptStep{textCompletion(validTriage)}}
	processor, queue := newTestProcessor(t, engine, provider)

	msg := inboundMessage()
	msg.Content = "Click here to unsubscribe from our list"
	result := processor.Process(context.Background(), msg)

	if result.Action != ActionIgnored {
		t.Fatalf("action = %s, want Ignored", result.Action)
	}
	if result.Rule != "drop-newsletters" {
		t.Errorf("rule = %q", result.Rule)
	}
	if provider.callCount() != 0 {
		t.Errorf("LLM called %d times for an ignored message", provider.callCount())
	}
	if len(queue.Pending(context.Background())) != 0 {
		t.Error("ignored message minted a card")
	}
}

// Invalid triage JSON is retried with a schema reminder up to twice.
func TestProcessRetriesInvalidJSON(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{
		textCompletion("I think this deserves a reply!"),
		textCompletion("```json\nnot quite json\n```"),
		textCompletion(validTriage),
	}}
	processor, _ := newTestProcessor(t, nil, provider)

	result := processor.Process(context.Background(), inboundMessage())
	if result.Action != ActionCarded {
		t.Fatalf("action = %s, want Carded after retries", result.Action)
	}
	if provider.callCount() != 3 {
		t.Errorf("LLM calls = %d, want 3", provider.callCount())
	}
}

func TestProcessParseFailureAfterRetriesExhausted(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{
		textCompletion("still not json"),
	}}
	processor, queue := newTestProcessor(t, nil, provider)

	result := processor.Process(context.Background(), inboundMessage())
	if result.Action != ActionParseFailure {
		t.Fatalf("action = %s, want ParseFailure", result.Action)
	}
	if result.Err == nil {
		t.Error("ParseFailure without error detail")
	}
	if provider.callCount() != 3 {
		t.Errorf("LLM calls = %d, want 3 (initial + 2 retries)", provider.callCount())
	}
	if len(queue.Pending(context.Background())) != 0 {
		t.Error("parse failure minted a card")
	}
}

func TestProcessEscalatesLowConfidence(t *testing.T) {
	lowConfidence := `{"category":"reply","urgency":0.5,"suggested_reply":"Maybe this?","confidence":0.3,"reason":"unsure"}`
	provider := &scriptedProvider{script: []scriptStep{textCompletion(lowConfidence)}}
	processor, queue := newTestProcessor(t, nil, provider)

	result := processor.Process(context.Background(), inboundMessage())
	if result.Action != ActionEscalate {
		t.Fatalf("action = %s, want Escalate", result.Action)
	}
	if len(queue.Pending(context.Background())) != 0 {
		t.Error("low-confidence triage minted a card")
	}
}

func TestProcessEscalatesEmptyReply(t *testing.T) {
	noReply := `{"category":"fyi","urgency":0.1,"suggested_reply":"","confidence":0.95,"reason":"no reply needed"}`
	provider := &scriptedProvider{script: []scriptStep{textCompletion(noReply)}}
	processor, queue := newTestProcessor(t, nil, provider)

	result := processor.Process(context.Background(), inboundMessage())
	if result.Action != ActionEscalate {
		t.Fatalf("action = %s, want Escalate", result.Action)
	}
	if len(queue.Pending(context.Background())) != 0 {
		t.Error("reply-free triage minted a card")
	}
}

// Triage results are cached per message id, so re-running a message that
// previously escalated does not spend another LLM call.
func TestProcessCachesTriagePerMessage(t *testing.T) {
	lowConfidence := `{"category":"reply","urgency":0.5,"suggested_reply":"Maybe?","confidence":0.2,"reason":"unsure"}`
	provider := &scriptedProvider{script: []scriptStep{textCompletion(lowConfidence)}}
	processor, _ := newTestProcessor(t, nil, provider)

	msg := inboundMessage()
	processor.Process(context.Background(), msg)
	processor.Process(context.Background(), msg)

	if provider.callCount() != 1 {
		t.Errorf("LLM calls = %d, want 1 (second run cached)", provider.callCount())
	}
}

func TestParseTriageJSONToleratesFences(t *testing.T) {
	wrapped := "Here is my analysis:\n```json\n" + validTriage + "\n```\nHope that helps."
	result, err := parseTriageJSON(wrapped)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Confidence != 0.85 || result.Category != "reply" {
		t.Errorf("parsed = %+v", result)
	}

	if _, err := parseTriageJSON("no braces here"); err == nil {
		t.Error("accepted text without JSON")
	}
	if _, err := parseTriageJSON(`{"confidence": 3.5}`); err == nil {
		t.Error("accepted out-of-range confidence")
	}
}
