package jobs

import (
	"context"
	"log"
	"time"

	"aiassist/internal/services"
)

// CardExpiryJob sweeps the card queue hourly for cards past their TTL.
// Reads already expire cards lazily; the sweep keeps queues on idle servers
// from accumulating dead pending cards between client connections.
type CardExpiryJob struct {
	queue    *services.CardQueue
	interval time.Duration
	lastRun  time.Time
}

// NewCardExpiryJob creates the expiry sweep job
func NewCardExpiryJob(queue *services.CardQueue, interval time.Duration) *CardExpiryJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CardExpiryJob{queue: queue, interval: interval}
}

// Run reclassifies all overdue pending cards as expired
func (j *CardExpiryJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	if n := j.queue.ExpireDue(ctx); n > 0 {
		log.Printf("⌛ [CARD-EXPIRY] Expired %d cards", n)
	}
	return nil
}

// GetNextRunTime schedules the next sweep one interval from now
func (j *CardExpiryJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
