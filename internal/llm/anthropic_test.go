package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	header http.Header
	body   anthropicRequest
}

func newFakeAPI(t *testing.T, status int, response string) (*AnthropicProvider, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.header = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	p := NewAnthropicProvider("sk-test", "claude-sonnet-4-20250514", 1024)
	p.SetBaseURL(srv.URL)
	return p, captured
}

func TestCompleteRequestShape(t *testing.T) {
	p, captured := newFakeAPI(t, http.StatusOK,
		`{"content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn"}`)

	messages := []Message{
		{Role: RoleSystem, Content: "You are terse."},
		{Role: RoleUser, Content: "Say hello."},
	}
	tools := []ToolDefinition{{
		Name:        "get_current_time",
		Description: "Get the time",
		Parameters:  map[string]any{"type": "object"},
	}}

	out, err := p.Complete(context.Background(), messages, tools)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Text != "hello" || out.StopReason != "end_turn" {
		t.Errorf("completion = %+v", out)
	}

	if got := captured.header.Get("x-api-key"); got != "sk-test" {
		t.Errorf("api key header = %q", got)
	}
	if got := captured.header.Get("anthropic-version"); got == "" {
		t.Error("anthropic-version header missing")
	}

	if captured.body.Model != "claude-sonnet-4-20250514" || captured.body.MaxTokens != 1024 {
		t.Errorf("model/max_tokens = %s/%d", captured.body.Model, captured.body.MaxTokens)
	}
	// The system turn becomes the top-level field, not a message
	if captured.body.System != "You are terse." {
		t.Errorf("system = %q", captured.body.System)
	}
	if len(captured.body.Messages) != 1 || captured.body.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", captured.body.Messages)
	}
	if len(captured.body.Tools) != 1 || captured.body.Tools[0].Name != "get_current_time" {
		t.Errorf("tools = %+v", captured.body.Tools)
	}
}

func TestCompleteToolCallRoundTrip(t *testing.T) {
	p, captured := newFakeAPI(t, http.StatusOK,
		`{"content":[
			{"type":"text","text":"Let me check."},
			{"type":"tool_use","id":"tu_1","name":"calculate_math","input":{"expression":"2+2"}}
		],"stop_reason":"tool_use"}`)

	out, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "What is 2+2?"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.StopReason != "tool_use" || out.Text != "Let me check." {
		t.Errorf("completion = %+v", out)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", out.ToolCalls)
	}
	tc := out.ToolCalls[0]
	if tc.ID != "tu_1" || tc.Name != "calculate_math" {
		t.Errorf("tool call = %+v", tc)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil || args["expression"] != "2+2" {
		t.Errorf("arguments = %q", tc.Arguments)
	}

	// Feed the call and its result back; check the wire encoding
	history := []Message{
		{Role: RoleUser, Content: "What is 2+2?"},
		{Role: RoleAssistant, Content: out.Text, ToolCalls: out.ToolCalls},
		{Role: RoleTool, ToolCallID: "tu_1", ToolName: "calculate_math", Content: "Result: 4"},
	}
	if _, err := p.Complete(context.Background(), history, nil); err != nil {
		t.Fatalf("second complete: %v", err)
	}

	msgs := captured.body.Messages
	if len(msgs) != 3 {
		t.Fatalf("wire messages = %d, want 3", len(msgs))
	}
	assistant := msgs[1]
	if assistant.Role != "assistant" || len(assistant.Content) != 2 {
		t.Fatalf("assistant turn = %+v", assistant)
	}
	if assistant.Content[1].Type != "tool_use" || assistant.Content[1].ID != "tu_1" {
		t.Errorf("tool_use block = %+v", assistant.Content[1])
	}
	result := msgs[2]
	if result.Role != "user" || result.Content[0].Type != "tool_result" {
		t.Fatalf("tool result turn = %+v", result)
	}
	if result.Content[0].ToolUseID != "tu_1" || result.Content[0].Content != "Result: 4" {
		t.Errorf("tool_result block = %+v", result.Content[0])
	}
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	p, _ := newFakeAPI(t, http.StatusOK,
		`{"content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}],"stop_reason":"end_turn"}`)

	out, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Text != "part one\npart two" {
		t.Errorf("text = %q", out.Text)
	}
}

func TestCompleteAPIErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		p, _ := newFakeAPI(t, http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
		if _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil); err == nil {
			t.Error("expected error for 429")
		}
	})
	t.Run("error body", func(t *testing.T) {
		p, _ := newFakeAPI(t, http.StatusOK, `{"error":{"type":"invalid_request_error","message":"bad"}}`)
		if _, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil); err == nil {
			t.Error("expected error for error payload")
		}
	})
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	p, _ := newFakeAPI(t, http.StatusOK, `{"content":[],"stop_reason":"end_turn"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Complete(ctx, []Message{{Role: RoleUser, Content: "x"}}, nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestCompleteEmptyToolInputDefaults(t *testing.T) {
	p, _ := newFakeAPI(t, http.StatusOK,
		`{"content":[{"type":"tool_use","id":"tu_2","name":"get_current_time"}],"stop_reason":"tool_use"}`)

	out, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "time?"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Arguments != "{}" {
		t.Errorf("tool calls = %+v", out.ToolCalls)
	}
}
