package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"aiassist/internal/database"
	"aiassist/internal/llm"
	"aiassist/internal/logging"
	"aiassist/internal/models"
	"aiassist/internal/tools"
)

// completionMarker is the explicit finish signal agents are prompted to emit
const completionMarker = "TASK_COMPLETE"

const agentSystemPrompt = `You are an autonomous assistant working on one todo item for your operator. You have tools available; use them when they help.

Work the task step by step. When the task is done, end your final message with the single line:
TASK_COMPLETE

If the task cannot be completed with the tools you have, say what is blocking you and still end with TASK_COMPLETE so the result goes to your operator for review.`

// TodoAgentWorker runs one agent job against one todo. It owns the message
// history and the activity stream for its job; the orchestrator owns the
// tracker slot and the todo's status on failure.
type TodoAgentWorker struct {
	todo     *models.TodoItem
	jobID    string
	provider llm.Provider
	registry *tools.Registry
	activity *database.ActivityStore
	todos    *TodoService
	bus      *EventBus
	metrics  *Metrics
	maxIter  int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTodoAgentWorker creates a worker for one todo. Each run gets a fresh
// job id so replayed activity streams can be partitioned per attempt.
func NewTodoAgentWorker(todo *models.TodoItem, provider llm.Provider, registry *tools.Registry, activity *database.ActivityStore, todos *TodoService, bus *EventBus, metrics *Metrics, maxIter int, timeout time.Duration) *TodoAgentWorker {
	jobID := uuid.New().String()
	return &TodoAgentWorker{
		todo:     todo,
		jobID:    jobID,
		provider: provider,
		registry: registry,
		activity: activity,
		todos:    todos,
		bus:      bus,
		metrics:  metrics,
		maxIter:  maxIter,
		timeout:  timeout,
		logger:   logging.WithJob(jobID, todo.ID),
	}
}

// JobID returns the id assigned to this run
func (w *TodoAgentWorker) JobID() string {
	return w.jobID
}

// Run executes the agent loop until completion, failure, iteration cap or
// deadline. It always emits exactly one terminal event, and on success moves
// the todo to ready_for_review. On failure the todo is reset to created so a
// later pickup pass retries it.
func (w *TodoAgentWorker) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	w.logger.Info("agent run starting", "title", w.todo.Title)
	w.emit(models.ActivityEvent{Type: models.ActivityStarted, JobID: w.jobID, TodoID: w.todo.ID})

	history := []llm.Message{
		{Role: llm.RoleSystem, Content: agentSystemPrompt},
		{Role: llm.RoleUser, Content: w.taskPrompt()},
	}
	defs := w.registry.Definitions()

	iterations := 0
	for i := 1; i <= w.maxIter; i++ {
		iterations = i
		w.emit(models.ActivityEvent{Type: models.ActivityThinking, JobID: w.jobID, Iteration: i})

		completion, err := w.provider.Complete(ctx, history, defs)
		if err != nil {
			w.fail(fmt.Sprintf("completion failed on iteration %d: %v", i, err), iterations)
			return
		}

		if len(completion.ToolCalls) == 0 {
			w.emit(models.ActivityEvent{Type: models.ActivityAgentResponse, JobID: w.jobID, Content: completion.Text})
			if isFinished(completion) {
				w.succeed(completion.Text, iterations)
				return
			}
			// Tool-free response without a finish signal: nudge once and loop
			history = append(history,
				llm.Message{Role: llm.RoleAssistant, Content: completion.Text},
				llm.Message{Role: llm.RoleUser, Content: "Continue working the task. If it is done, end with TASK_COMPLETE."},
			)
			continue
		}

		history = append(history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			if ctx.Err() != nil {
				w.fail(fmt.Sprintf("deadline exceeded during %s: %v", call.Name, ctx.Err()), iterations)
				return
			}
			result := w.invokeTool(ctx, call)
			history = append(history, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	w.fail(fmt.Sprintf("iteration cap %d reached without completion", w.maxIter), iterations)
}

// invokeTool runs one tool call and emits the tool_started/tool_completed
// pair. Tool errors are fed back to the model, not treated as job failures.
func (w *TodoAgentWorker) invokeTool(ctx context.Context, call llm.ToolCall) string {
	w.emit(models.ActivityEvent{Type: models.ActivityToolStarted, JobID: w.jobID, ToolName: call.Name})

	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = nil
		}
	}

	result, err := w.registry.Execute(ctx, call.Name, args)
	success := err == nil
	summary := result
	if err != nil {
		summary = err.Error()
		result = fmt.Sprintf("Tool error: %v", err)
	}

	w.emit(models.ActivityEvent{
		Type:     models.ActivityToolCompleted,
		JobID:    w.jobID,
		ToolName: call.Name,
		Success:  &success,
		Summary:  models.TruncateSummary(summary),
	})
	return result
}

func (w *TodoAgentWorker) succeed(finalText string, iterations int) {
	summary := strings.TrimSpace(strings.Replace(finalText, completionMarker, "", 1))
	w.emit(models.ActivityEvent{
		Type:    models.ActivityCompleted,
		JobID:   w.jobID,
		Summary: models.TruncateSummary(summary),
	})

	// Terminal events must not be lost to the run deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := w.todos.Transition(ctx, w.todo.ID, models.TodoStatusAgentWorking, models.TodoStatusReadyForReview); err != nil {
		w.logger.Error("failed to move todo to ready_for_review", "error", err)
	}

	if w.metrics != nil {
		w.metrics.AgentRuns.WithLabelValues("completed").Inc()
		w.metrics.AgentIterations.Observe(float64(iterations))
	}
	w.logger.Info("agent run completed", "iterations", iterations)
}

func (w *TodoAgentWorker) fail(reason string, iterations int) {
	w.emit(models.ActivityEvent{Type: models.ActivityFailed, JobID: w.jobID, Error: reason})

	// Reset to created so the next pickup pass retries instead of leaving the
	// todo stranded in agent_working until a restart sweep.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := w.todos.Transition(ctx, w.todo.ID, models.TodoStatusAgentWorking, models.TodoStatusCreated); err != nil {
		w.logger.Error("failed to reset todo after failure", "error", err)
	}

	if w.metrics != nil {
		w.metrics.AgentRuns.WithLabelValues("failed").Inc()
		w.metrics.AgentIterations.Observe(float64(iterations))
	}
	w.logger.Warn("agent run failed", "reason", reason, "iterations", iterations)
}

// emit persists an activity event and then broadcasts it with its sequence
// number. Persistence comes first so a subscriber replaying history sees
// every event that was ever broadcast.
func (w *TodoAgentWorker) emit(event models.ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seq, err := w.activity.Append(ctx, w.todo.ID, event)
	if err != nil {
		w.logger.Error("failed to persist activity event", "type", event.Type, "error", err)
		return
	}
	w.bus.Publish(ActivityTopic(w.todo.ID), Event{
		Type: string(event.Type),
		Data: models.ActivityRecord{Seq: seq, Event: event},
	})
}

func (w *TodoAgentWorker) taskPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", w.todo.Title)
	if w.todo.Description != "" {
		fmt.Fprintf(&b, "\nDetails:\n%s\n", w.todo.Description)
	}
	fmt.Fprintf(&b, "\nType: %s", w.todo.TodoType)
	if w.todo.DueDate != nil {
		fmt.Fprintf(&b, "\nDue: %s", w.todo.DueDate.Format(time.RFC3339))
	}
	if len(w.todo.Context) > 0 {
		fmt.Fprintf(&b, "\nContext: %s", string(w.todo.Context))
	}
	return b.String()
}

// isFinished is the completion heuristic for tool-free responses
func isFinished(c *llm.Completion) bool {
	if strings.Contains(c.Text, completionMarker) {
		return true
	}
	return c.StopReason == "end_turn" && len(c.ToolCalls) == 0 && looksLikeFinish(c.Text)
}

// looksLikeFinish catches models that conclude without the explicit marker
func looksLikeFinish(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range []string{"task is complete", "task complete", "i have completed", "finished the task", "done with the task"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
