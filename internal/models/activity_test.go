package models

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestActivityEventJSONRoundTrip(t *testing.T) {
	ok := true
	events := []ActivityEvent{
		{Type: ActivityStarted, JobID: "j1", TodoID: "t1"},
		{Type: ActivityThinking, JobID: "j1", Iteration: 3},
		{Type: ActivityToolStarted, JobID: "j1", ToolName: "get_current_time"},
		{Type: ActivityToolCompleted, JobID: "j1", ToolName: "get_current_time", Success: &ok, Summary: "2026-01-01"},
		{Type: ActivityAgentResponse, JobID: "j1", Content: "working on it"},
		{Type: ActivityCompleted, JobID: "j1", Summary: "done"},
		{Type: ActivityFailed, JobID: "j1", Error: "iteration cap reached"},
	}

	for _, event := range events {
		t.Run(string(event.Type), func(t *testing.T) {
			data, err := json.Marshal(event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !strings.Contains(string(data), `"type":"`+string(event.Type)+`"`) {
				t.Errorf("type discriminator missing from %s", data)
			}

			var decoded ActivityEvent
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if decoded.Type != event.Type || decoded.JobID != event.JobID {
				t.Errorf("round trip changed event: got %+v, want %+v", decoded, event)
			}
			if event.Success != nil && (decoded.Success == nil || *decoded.Success != *event.Success) {
				t.Errorf("success flag lost in round trip")
			}
		})
	}
}

func TestActivityTypeIsTerminal(t *testing.T) {
	if !ActivityCompleted.IsTerminal() || !ActivityFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
	for _, typ := range []ActivityType{ActivityStarted, ActivityThinking, ActivityToolStarted, ActivityToolCompleted, ActivityAgentResponse} {
		if typ.IsTerminal() {
			t.Errorf("%s must not be terminal", typ)
		}
	}
}

func TestTruncateSummary(t *testing.T) {
	short := "short result"
	if got := TruncateSummary(short); got != short {
		t.Errorf("short summary changed: %q", got)
	}

	long := strings.Repeat("x", ToolSummaryMaxLen+50)
	got := TruncateSummary(long)
	if len(got) != ToolSummaryMaxLen {
		t.Errorf("truncated length = %d, want %d", len(got), ToolSummaryMaxLen)
	}
}

// The limit counts characters, so multi-byte text under the limit passes
// through whole and longer text is cut on a rune boundary.
func TestTruncateSummaryMultiByte(t *testing.T) {
	under := strings.Repeat("é", ToolSummaryMaxLen-50)
	if got := TruncateSummary(under); got != under {
		t.Errorf("%d-char summary changed: %d chars kept",
			utf8.RuneCountInString(under), utf8.RuneCountInString(got))
	}

	over := strings.Repeat("日", ToolSummaryMaxLen+1)
	got := TruncateSummary(over)
	if n := utf8.RuneCountInString(got); n != ToolSummaryMaxLen {
		t.Errorf("truncated to %d chars, want %d", n, ToolSummaryMaxLen)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
}

func TestCardStatusIsTerminal(t *testing.T) {
	if CardStatusPending.IsTerminal() {
		t.Error("pending must not be terminal")
	}
	for _, s := range []CardStatus{CardStatusApproved, CardStatusDismissed, CardStatusEdited, CardStatusExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestDeriveHints(t *testing.T) {
	hints := DeriveHints("Can you review this?", true)
	if !hints.HasQuestion || !hints.IsDirectMessage {
		t.Errorf("expected question + direct, got %+v", hints)
	}
	if hints.Urgency != 1.0 {
		t.Errorf("urgency = %v, want 1.0", hints.Urgency)
	}

	flat := DeriveHints("FYI the report shipped", false)
	if flat.HasQuestion || flat.IsDirectMessage || flat.Urgency != 0.2 {
		t.Errorf("expected baseline hints, got %+v", flat)
	}
}
