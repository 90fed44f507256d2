package payload

import (
	"errors"
	"testing"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
)

func TestIdentifyClaude(t *testing.T) {
	raw := []byte(`{"session_id":"s-1","transcript_path":"/tmp/t.jsonl","hook_event_name":"Stop"}`)
	inv, err := Identify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Tool != ToolClaude {
		t.Errorf("tool = %s, want claude", inv.Tool)
	}
	if inv.Tier != event.TierTraceMetrics {
		t.Errorf("tier = %s, want trace+metrics", inv.Tier)
	}
	if inv.SessionID != "s-1" || inv.SourceRef != "/tmp/t.jsonl" {
		t.Errorf("session=%s ref=%s", inv.SessionID, inv.SourceRef)
	}
}

func TestIdentifyCursor(t *testing.T) {
	raw := []byte(`{"conversation_id":"c-9","transcript_path":"/tmp/c.jsonl"}`)
	inv, err := Identify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Tool != ToolCursor || inv.Tier != event.TierTraceMetrics {
		t.Errorf("tool=%s tier=%s", inv.Tool, inv.Tier)
	}
	if inv.SessionID != "c-9" {
		t.Errorf("session = %s, want c-9", inv.SessionID)
	}
}

func TestIdentifyCopilot(t *testing.T) {
	raw := []byte(`{"hook_event_name":"UserPromptSubmit","session_id":"cp-1","prompt":"hi","seq":7}`)
	inv, err := Identify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Tool != ToolCopilot || inv.Tier != event.TierMetricsOnly {
		t.Errorf("tool=%s tier=%s", inv.Tool, inv.Tier)
	}
	if inv.Seq != 7 {
		t.Errorf("seq = %d, want 7", inv.Seq)
	}
	kind, ok := inv.EventKind()
	if !ok || kind != event.KindPromptSubmitted {
		t.Errorf("kind = %s ok=%v", kind, ok)
	}
}

func TestIdentifyKiro(t *testing.T) {
	raw := []byte(`{"hook_event_name":"stop","session_id":"k-1"}`)
	inv, err := Identify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Tool != ToolKiro {
		t.Errorf("tool = %s, want kiro", inv.Tool)
	}
	kind, ok := inv.EventKind()
	if !ok || kind != event.KindSessionEnded {
		t.Errorf("kind = %s ok=%v", kind, ok)
	}
}

// A claude payload also carries hook_event_name; the transcript locator
// must win so claude never falls into the metrics-only family.
func TestIdentifyTranscriptBeatsEventName(t *testing.T) {
	raw := []byte(`{"session_id":"s-2","transcript_path":"/tmp/t.jsonl","hook_event_name":"SessionEnd"}`)
	inv, err := Identify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Tool != ToolClaude {
		t.Errorf("tool = %s, want claude", inv.Tool)
	}
}

func TestIdentifyUnrecognized(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"whitespace":     "   \n",
		"not json":       "hello",
		"json array":     `[1,2]`,
		"unknown event":  `{"hook_event_name":"SomethingElse","session_id":"x"}`,
		"no tool shape":  `{"foo":"bar"}`,
		"session only":   `{"session_id":"s-3"}`,
		"transcriptOnly": `{"transcript_path":"/tmp/t.jsonl"}`,
	}
	for name, raw := range cases {
		if _, err := Identify([]byte(raw)); !errors.Is(err, hookerr.ErrUnrecognizedPayload) {
			t.Errorf("%s: err = %v, want ErrUnrecognizedPayload", name, err)
		}
	}
}

func TestIdentifyNestedSessionAndTranscript(t *testing.T) {
	raw := []byte(`{"session":{"id":"n-1"},"transcript":{"path":"/tmp/n.jsonl"}}`)
	inv, err := Identify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if inv.SessionID != "n-1" || inv.SourceRef != "/tmp/n.jsonl" {
		t.Errorf("session=%s ref=%s", inv.SessionID, inv.SourceRef)
	}
}
