// Package llm defines the completion contract the triage pipeline and todo
// agents depend on, plus the Anthropic Messages API client that fulfils it.
package llm

import "context"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Assistant turns that requested tools carry the calls; tool turns carry
	// the id of the call they answer.
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a single tool invocation requested by the model
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// ToolDefinition describes a callable tool to the model
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Completion is the model's response: either plain text or tool calls
// (text may accompany tool calls as interim reasoning).
type Completion struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Provider is the LLM contract. Implementations must honor ctx cancellation —
// every call is a suspension point for the caller.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)
}
