package models

import (
	"encoding/json"
	"time"
)

// MessageStatus tracks where a stored message sits in the triage pipeline
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	// MessageStatusReplied means triage completed and a card was emitted (or the
	// message was deliberately ignored). The name is historical — no outbound
	// reply has been sent yet.
	MessageStatusReplied   MessageStatus = "replied"
	MessageStatusDismissed MessageStatus = "dismissed"
)

// ThreadMessage is one prior message in a conversation thread
type ThreadMessage struct {
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// PriorityHints are cheap signals derived from the message itself
type PriorityHints struct {
	HasQuestion     bool    `json:"has_question"`
	IsDirectMessage bool    `json:"is_direct_message"`
	Urgency         float64 `json:"urgency"`
}

// InboundMessage is the transient input to the triage pipeline.
// ReplyMetadata is an opaque blob the channel adapter uses to address the
// eventual reply — the core never introspects it.
type InboundMessage struct {
	ID            string          `json:"id"`
	Channel       string          `json:"channel"`
	Sender        string          `json:"sender"`
	SenderName    string          `json:"sender_name,omitempty"`
	Subject       string          `json:"subject,omitempty"`
	Content       string          `json:"content"`
	ThreadContext []ThreadMessage `json:"thread_context,omitempty"`
	ReplyMetadata json.RawMessage `json:"reply_metadata,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
	PriorityHints PriorityHints   `json:"priority_hints"`
}

// StoredMessage is the durable form of an inbound message.
// (Channel, ExternalID) is unique — an insert violating it means the message
// was already seen and the caller must treat it as processed.
type StoredMessage struct {
	ID            string          `json:"id"`
	Channel       string          `json:"channel"`
	ExternalID    string          `json:"external_id"`
	Sender        string          `json:"sender"`
	SenderName    string          `json:"sender_name,omitempty"`
	Subject       string          `json:"subject,omitempty"`
	Content       string          `json:"content"`
	ThreadContext []ThreadMessage `json:"thread_context,omitempty"`
	ReplyMetadata json.RawMessage `json:"reply_metadata,omitempty"`
	Status        MessageStatus   `json:"status"`
	RepliedAt     *time.Time      `json:"replied_at,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Inbound converts a stored message back into pipeline input
func (m *StoredMessage) Inbound() InboundMessage {
	return InboundMessage{
		ID:            m.ID,
		Channel:       m.Channel,
		Sender:        m.Sender,
		SenderName:    m.SenderName,
		Subject:       m.Subject,
		Content:       m.Content,
		ThreadContext: m.ThreadContext,
		ReplyMetadata: m.ReplyMetadata,
		ReceivedAt:    m.ReceivedAt,
		PriorityHints: DeriveHints(m.Content, m.SenderName != ""),
	}
}

// DeriveHints computes priority hints from message content.
// A direct message (personal name known) with a question mark ranks higher.
func DeriveHints(content string, isDirect bool) PriorityHints {
	hasQuestion := false
	for _, r := range content {
		if r == '?' {
			hasQuestion = true
			break
		}
	}
	urgency := 0.2
	if hasQuestion {
		urgency += 0.4
	}
	if isDirect {
		urgency += 0.4
	}
	return PriorityHints{
		HasQuestion:     hasQuestion,
		IsDirectMessage: isDirect,
		Urgency:         urgency,
	}
}
