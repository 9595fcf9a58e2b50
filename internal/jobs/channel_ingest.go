package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"aiassist/internal/channels"
	"aiassist/internal/database"
	"aiassist/internal/models"
)

// ChannelIngestJob polls every registered channel adapter for new messages
// and persists them as pending. The (channel, external_id) uniqueness
// constraint makes re-fetching the same message a no-op, so adapters do not
// need their own dedupe state.
type ChannelIngestJob struct {
	manager  *channels.Manager
	messages *database.MessageStore
	interval time.Duration
	lastRun  time.Time
}

// NewChannelIngestJob creates the ingest poll job
func NewChannelIngestJob(manager *channels.Manager, messages *database.MessageStore, interval time.Duration) *ChannelIngestJob {
	return &ChannelIngestJob{manager: manager, messages: messages, interval: interval}
}

// Run fetches from every adapter and stores unseen messages
func (j *ChannelIngestJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	for _, adapter := range j.manager.All() {
		if err := j.ingest(ctx, adapter); err != nil {
			log.Printf("❌ [INGEST] Channel %s: %v", adapter.Name(), err)
		}
	}
	return nil
}

func (j *ChannelIngestJob) ingest(ctx context.Context, adapter channels.Adapter) error {
	inbound, err := adapter.FetchNew(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	stored, skipped := 0, 0
	for _, msg := range inbound {
		if !adapter.IsSenderAllowed(msg.Sender) {
			skipped++
			continue
		}

		now := time.Now().UTC()
		record := &models.StoredMessage{
			ID:            uuid.New().String(),
			Channel:       adapter.Name(),
			ExternalID:    msg.ID,
			Sender:        msg.Sender,
			SenderName:    msg.SenderName,
			Subject:       channels.NormalizeSubject(msg.Subject),
			Content:       msg.Content,
			ThreadContext: msg.ThreadContext,
			ReplyMetadata: msg.ReplyMetadata,
			Status:        models.MessageStatusPending,
			ReceivedAt:    msg.ReceivedAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := j.messages.Insert(ctx, record); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				continue // already seen
			}
			return fmt.Errorf("store message %s: %w", msg.ID, err)
		}
		stored++
	}

	if stored > 0 || skipped > 0 {
		log.Printf("📥 [INGEST] Channel %s: %d new, %d blocked by allowlist", adapter.Name(), stored, skipped)
	}
	return nil
}

// GetNextRunTime schedules the next poll one interval from now
func (j *ChannelIngestJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
