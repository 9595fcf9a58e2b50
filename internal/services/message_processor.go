package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"aiassist/internal/llm"
	"aiassist/internal/logging"
	"aiassist/internal/models"
	"aiassist/internal/rules"
)

// ProcessAction labels what the pipeline did with a message
type ProcessAction string

const (
	ActionCarded       ProcessAction = "Carded"       // card minted and submitted
	ActionIgnored      ProcessAction = "Ignored"      // rule verdict or low-value triage
	ActionEscalate     ProcessAction = "Escalate"     // triage produced no usable reply
	ActionParseFailure ProcessAction = "ParseFailure" // triage JSON never parsed
)

// TriageResult is the structured JSON the model must return
type TriageResult struct {
	Category       string  `json:"category"`
	Urgency        float64 `json:"urgency"`
	SuggestedReply string  `json:"suggested_reply"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

// ProcessedMessage is the pipeline's output for one inbound message
type ProcessedMessage struct {
	Action ProcessAction
	Card   *models.ApprovalCard
	Triage *TriageResult
	Rule   string // matching rule name when a rule decided
	Err    error  // populated for ParseFailure
}

const (
	triageMaxParseRetries = 2
	triageCacheTTL        = 30 * time.Minute
)

const triageSystemPrompt = `You are a triage assistant for a personal inbox. Given one inbound message and its thread context, decide how to handle it.

Respond with ONLY a JSON object, no prose, no markdown fences:
{
  "category": "reply" | "fyi" | "spam" | "action_required",
  "urgency": 0.0-1.0,
  "suggested_reply": "draft reply text, or empty string if no reply is warranted",
  "confidence": 0.0-1.0,
  "reason": "one sentence"
}

Write the suggested reply in the first person, matching the tone of the inbound message. Leave suggested_reply empty for spam, newsletters and pure FYI messages.`

const triageSchemaReminder = `Your previous response was not valid JSON. Respond with ONLY the JSON object described earlier, starting with { and ending with }. No markdown fences, no commentary.`

// MessageProcessor turns inbound messages into approval cards.
// Rules short-circuit spam before any model cost; everything else goes
// through one LLM triage call whose JSON output decides the card.
type MessageProcessor struct {
	rules       *rules.Engine
	provider    llm.Provider
	queue       *CardQueue
	metrics     *Metrics
	threshold   float64
	cardTTL     time.Duration
	triageCache *cache.Cache
	now         func() time.Time
}

// NewMessageProcessor wires the triage pipeline
func NewMessageProcessor(engine *rules.Engine, provider llm.Provider, queue *CardQueue, metrics *Metrics, threshold float64, cardTTL time.Duration) *MessageProcessor {
	return &MessageProcessor{
		rules:       engine,
		provider:    provider,
		queue:       queue,
		metrics:     metrics,
		threshold:   threshold,
		cardTTL:     cardTTL,
		triageCache: cache.New(triageCacheTTL, 10*time.Minute),
		now:         time.Now,
	}
}

// Process runs one inbound message through rules and triage. The returned
// action is always set, even on error paths: a message is never silently
// dropped, only Ignored, Carded, Escalated or flagged as a ParseFailure.
func (p *MessageProcessor) Process(ctx context.Context, msg models.InboundMessage) ProcessedMessage {
	logger := logging.WithMessage(msg.Channel, msg.ID).With("sender", msg.Sender)

	verdict := p.rules.Evaluate(msg)
	switch verdict.Action {
	case rules.ActionIgnore:
		logger.Info("message ignored by rule", "rule", verdict.Rule)
		p.countOutcome(ActionIgnored)
		return ProcessedMessage{Action: ActionIgnored, Rule: verdict.Rule}
	case rules.ActionAutoReply:
		// Every outbound goes through a card, so auto_reply falls through to
		// triage like any other message.
		logger.Debug("auto_reply rule downgraded to triage", "rule", verdict.Rule)
	}

	triage, err := p.triage(ctx, msg)
	if err != nil {
		logger.Warn("triage failed, escalating", "error", err)
		if p.metrics != nil {
			p.metrics.TriageFailures.Inc()
		}
		p.countOutcome(ActionParseFailure)
		return ProcessedMessage{Action: ActionParseFailure, Err: err}
	}

	if strings.TrimSpace(triage.SuggestedReply) == "" || triage.Confidence < p.threshold {
		logger.Info("triage escalated to human",
			"category", triage.Category, "confidence", triage.Confidence, "reason", triage.Reason)
		p.countOutcome(ActionEscalate)
		return ProcessedMessage{Action: ActionEscalate, Triage: triage}
	}

	card := &models.ApprovalCard{
		ID:             uuid.New().String(),
		ConversationID: msg.Channel + ":" + msg.Sender,
		MessageID:      msg.ID,
		SourceMessage:  msg.Content,
		SourceSender:   msg.Sender,
		SuggestedReply: triage.SuggestedReply,
		Confidence:     triage.Confidence,
		Status:         models.CardStatusPending,
		Channel:        msg.Channel,
		CreatedAt:      p.now(),
		ExpiresAt:      msg.ReceivedAt.Add(p.cardTTL),
		UpdatedAt:      p.now(),
	}

	if err := p.queue.Submit(ctx, card); err != nil {
		logger.Error("failed to submit card", "card_id", card.ID, "error", err)
		p.countOutcome(ActionEscalate)
		return ProcessedMessage{Action: ActionEscalate, Triage: triage, Err: err}
	}

	logger.Info("card minted",
		"card_id", card.ID, "category", triage.Category, "confidence", triage.Confidence)
	p.countOutcome(ActionCarded)
	return ProcessedMessage{Action: ActionCarded, Card: card, Triage: triage}
}

// triage runs the LLM call with up to two parse retries. Results are cached
// by message id so a pipeline re-run after a downstream failure does not
// re-bill the same message.
func (p *MessageProcessor) triage(ctx context.Context, msg models.InboundMessage) (*TriageResult, error) {
	if cached, ok := p.triageCache.Get(msg.ID); ok {
		return cached.(*TriageResult), nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: triageSystemPrompt},
		{Role: llm.RoleUser, Content: buildTriagePrompt(msg)},
	}

	var lastErr error
	for attempt := 0; attempt <= triageMaxParseRetries; attempt++ {
		completion, err := p.provider.Complete(ctx, messages, nil)
		if err != nil {
			return nil, fmt.Errorf("triage completion: %w", err)
		}

		result, err := parseTriageJSON(completion.Text)
		if err == nil {
			p.triageCache.Set(msg.ID, result, cache.DefaultExpiration)
			return result, nil
		}
		lastErr = err

		// Feed the invalid output back with a schema reminder and retry
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: completion.Text},
			llm.Message{Role: llm.RoleUser, Content: triageSchemaReminder},
		)
	}

	return nil, fmt.Errorf("triage JSON invalid after %d retries: %w", triageMaxParseRetries, lastErr)
}

func buildTriagePrompt(msg models.InboundMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\nFrom: %s", msg.Channel, msg.Sender)
	if msg.SenderName != "" {
		fmt.Fprintf(&b, " (%s)", msg.SenderName)
	}
	b.WriteString("\n")
	if msg.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	}
	fmt.Fprintf(&b, "Received: %s\n", msg.ReceivedAt.Format(time.RFC3339))

	if len(msg.ThreadContext) > 0 {
		b.WriteString("\nThread context (oldest first):\n")
		for _, tm := range msg.ThreadContext {
			fmt.Fprintf(&b, "- %s at %s: %s\n", tm.Sender, tm.SentAt.Format(time.RFC3339), tm.Content)
		}
	}

	fmt.Fprintf(&b, "\nMessage:\n%s", msg.Content)
	return b.String()
}

// parseTriageJSON extracts the triage object from model output, tolerating
// markdown fences and surrounding prose.
func parseTriageJSON(text string) (*TriageResult, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var result TriageResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("invalid triage JSON: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", result.Confidence)
	}
	return &result, nil
}

func (p *MessageProcessor) countOutcome(action ProcessAction) {
	if p.metrics != nil {
		p.metrics.MessagesProcessed.WithLabelValues(string(action)).Inc()
	}
}
