package models

// ActivityType tags an event in a todo's activity stream
type ActivityType string

const (
	ActivityStarted       ActivityType = "started"
	ActivityThinking      ActivityType = "thinking"
	ActivityToolStarted   ActivityType = "tool_started"
	ActivityToolCompleted ActivityType = "tool_completed"
	ActivityAgentResponse ActivityType = "agent_response"
	ActivityCompleted     ActivityType = "completed"
	ActivityFailed        ActivityType = "failed"
)

// ToolSummaryMaxLen caps tool result summaries in tool_completed events
const ToolSummaryMaxLen = 200

// IsTerminal reports whether the event ends a job's activity stream.
// Every job emits exactly one of completed or failed as its last event.
func (t ActivityType) IsTerminal() bool {
	return t == ActivityCompleted || t == ActivityFailed
}

// ActivityEvent is one entry in a todo's append-only activity stream.
// The JSON shape is the wire format on /ws/todos/:id/activity — fields not
// relevant to a given type are omitted.
type ActivityEvent struct {
	Type      ActivityType `json:"type"`
	JobID     string       `json:"job_id"`
	TodoID    string       `json:"todo_id,omitempty"`   // started
	Iteration int          `json:"iteration,omitempty"` // thinking
	ToolName  string       `json:"tool_name,omitempty"` // tool_started, tool_completed
	Success   *bool        `json:"success,omitempty"`   // tool_completed
	Summary   string       `json:"summary,omitempty"`   // tool_completed, completed
	Content   string       `json:"content,omitempty"`   // agent_response
	Error     string       `json:"error,omitempty"`     // failed
}

// ActivityRecord is a persisted activity event with its position in the
// todo's stream. Seq is strictly increasing per todo; subscribers use it to
// dedupe replayed history against live broadcasts.
type ActivityRecord struct {
	Seq   int64         `json:"seq"`
	Event ActivityEvent `json:"event"`
}

// TruncateSummary trims a tool result or summary to the wire limit.
// The limit counts characters, not bytes, so multi-byte text is never cut
// mid-rune.
func TruncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= ToolSummaryMaxLen {
		return s
	}
	return string(runes[:ToolSummaryMaxLen])
}
