package models

import "time"

// CardStatus is the lifecycle state of an approval card
type CardStatus string

const (
	CardStatusPending   CardStatus = "pending"
	CardStatusApproved  CardStatus = "approved"
	CardStatusDismissed CardStatus = "dismissed"
	CardStatusEdited    CardStatus = "edited"
	CardStatusExpired   CardStatus = "expired"
)

// IsTerminal reports whether the status ends the card's lifecycle.
// A card reaches exactly one terminal status.
func (s CardStatus) IsTerminal() bool {
	return s != CardStatusPending
}

// ApprovalCard is a human-approvable draft reply paired with its source message.
// Created pending; exactly one transition to approved, dismissed, edited or
// expired. Edited carries the replacement reply in SuggestedReply.
type ApprovalCard struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	MessageID      string     `json:"message_id,omitempty"`
	SourceMessage  string     `json:"source_message"`
	SourceSender   string     `json:"source_sender"`
	SuggestedReply string     `json:"suggested_reply"`
	Confidence     float64    `json:"confidence"`
	Status         CardStatus `json:"status"`
	Channel        string     `json:"channel"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Expired reports whether a still-pending card is past its TTL
func (c *ApprovalCard) Expired(now time.Time) bool {
	return c.Status == CardStatusPending && now.After(c.ExpiresAt)
}
