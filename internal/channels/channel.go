// Package channels defines the contract between the triage core and external
// channel adapters (email, chat). Adapters live outside this module — the core
// only drains their fetch stream and hands replies back for delivery.
package channels

import (
	"context"
	"encoding/json"
	"strings"

	"aiassist/internal/models"
)

// Adapter is implemented by every external channel.
type Adapter interface {
	// Name returns the channel identifier (e.g. "email", "telegram").
	Name() string

	// FetchNew returns messages that arrived since the adapter's own cursor.
	// Each external message is emitted at least once; the store's
	// (channel, external_id) uniqueness dedupes retries.
	FetchNew(ctx context.Context) ([]models.InboundMessage, error)

	// Send delivers an approved reply. ReplyMetadata is the opaque blob the
	// adapter attached to the original message.
	Send(ctx context.Context, replyTo, subject, body string, replyMetadata json.RawMessage) error

	// IsSenderAllowed applies the adapter's allowlist to a sender address.
	IsSenderAllowed(addr string) bool
}

// SenderAllowed applies the shared allowlist semantics:
// an empty list denies all; "*" allows all; "foo@bar" matches exactly
// (case-insensitive); "@dom" or "dom" matches the domain suffix.
func SenderAllowed(allowlist []string, addr string) bool {
	if len(allowlist) == 0 {
		return false
	}
	addr = strings.ToLower(strings.TrimSpace(addr))
	for _, entry := range allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "*":
			return true
		case entry == "":
			continue
		case strings.Contains(entry, "@") && !strings.HasPrefix(entry, "@"):
			if addr == entry {
				return true
			}
		default:
			dom := strings.TrimPrefix(entry, "@")
			if strings.HasSuffix(addr, "@"+dom) || strings.HasSuffix(addr, "."+dom) {
				return true
			}
		}
	}
	return false
}
