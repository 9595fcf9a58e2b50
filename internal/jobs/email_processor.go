package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"aiassist/internal/database"
	"aiassist/internal/models"
	"aiassist/internal/services"
)

// lastRunKey is where the processor checkpoints its last tick, so a restart
// does not immediately re-drain (and re-bill) ahead of schedule
const lastRunKey = "email_processor.last_run"

// EmailProcessorJob drains pending email messages through the triage
// pipeline. Messages are processed serially to bound LLM spend per tick;
// a message that escalates or fails to parse stays pending and is retried
// on the next tick.
type EmailProcessorJob struct {
	messages  *database.MessageStore
	settings  *database.SettingsStore
	processor *services.MessageProcessor
	interval  time.Duration
	channel   string
	lastRun   time.Time
}

// NewEmailProcessorJob creates the email drain job. The last-run checkpoint
// is restored from settings so the schedule survives restarts.
func NewEmailProcessorJob(messages *database.MessageStore, settings *database.SettingsStore, processor *services.MessageProcessor, interval time.Duration) *EmailProcessorJob {
	j := &EmailProcessorJob{
		messages:  messages,
		settings:  settings,
		processor: processor,
		interval:  interval,
		channel:   "email",
	}
	j.restoreLastRun()
	return j
}

// Run drains all pending email messages through triage
func (j *EmailProcessorJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()
	j.checkpointLastRun(ctx)

	pending, err := j.messages.GetPending(ctx, j.channel)
	if err != nil {
		return fmt.Errorf("list pending messages: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	log.Printf("📧 [EMAIL-PROCESSOR] Draining %d pending messages", len(pending))

	processed, deferred := 0, 0
	for _, stored := range pending {
		// Finish the in-flight message on shutdown, then stop
		if ctx.Err() != nil {
			log.Printf("🛑 [EMAIL-PROCESSOR] Shutdown requested, %d messages left pending", len(pending)-processed-deferred)
			return nil
		}

		result := j.processor.Process(ctx, stored.Inbound())
		switch result.Action {
		case services.ActionCarded, services.ActionIgnored:
			if err := j.messages.UpdateStatus(ctx, stored.ID, models.MessageStatusReplied); err != nil {
				log.Printf("❌ [EMAIL-PROCESSOR] Failed to mark message %s replied: %v", stored.ID, err)
				continue
			}
			processed++
		default:
			// Escalate and ParseFailure stay pending for the next tick
			deferred++
		}
	}

	log.Printf("📧 [EMAIL-PROCESSOR] Tick done: %d triaged, %d deferred", processed, deferred)
	return nil
}

// GetNextRunTime schedules the next tick one interval after the last run,
// which may be in a previous process
func (j *EmailProcessorJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		return time.Now()
	}
	next := j.lastRun.Add(j.interval)
	if next.Before(time.Now()) {
		return time.Now()
	}
	return next
}

func (j *EmailProcessorJob) restoreLastRun() {
	if j.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := j.settings.Get(ctx, lastRunKey)
	if err != nil {
		return
	}
	var last time.Time
	if err := json.Unmarshal(raw, &last); err == nil {
		j.lastRun = last
	}
}

func (j *EmailProcessorJob) checkpointLastRun(ctx context.Context) {
	if j.settings == nil {
		return
	}
	raw, err := json.Marshal(j.lastRun)
	if err != nil {
		return
	}
	if err := j.settings.Set(ctx, lastRunKey, raw); err != nil {
		log.Printf("⚠️  [EMAIL-PROCESSOR] Failed to checkpoint last run: %v", err)
	}
}
