package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithJob returns a logger with agent job context fields attached.
// Use this for all logging within a todo agent run.
func WithJob(jobID, todoID string) *slog.Logger {
	return slog.With(
		"job_id", jobID,
		"todo_id", todoID,
	)
}

// WithMessage returns a logger scoped to a single inbound message in the
// triage pipeline.
func WithMessage(channel, externalID string) *slog.Logger {
	return slog.With(
		"channel", channel,
		"external_id", externalID,
	)
}
