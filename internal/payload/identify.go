// Package payload determines which tool produced a hook invocation from
// the stdin document alone. Detection is structural (declared event-kind
// field plus field presence), never environmental, so one binary can serve
// every supported tool from a single hook command.
package payload

import (
	"encoding/json"
	"strings"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/pathutil"
)

// ToolID names a supported tool. The set is closed: adding a tool means
// adding a case here and one source adapter variant, nothing else.
type ToolID string

const (
	ToolClaude  ToolID = "claude"
	ToolCursor  ToolID = "cursor"
	ToolCopilot ToolID = "copilot"
	ToolKiro    ToolID = "kiro"
)

// Invocation is the identified context of one hook firing.
type Invocation struct {
	Tool      ToolID
	Tier      event.Tier
	SessionID string
	SourceRef string // transcript path for trace-capable tools
	EventName string // native hook_event_name for stream tools
	Seq       uint64
	Fields    map[string]any
}

var copilotEvents = map[string]event.Kind{
	"UserPromptSubmit": event.KindPromptSubmitted,
	"PreToolUse":       event.KindToolInvoked,
	"PostToolUse":      event.KindToolCompleted,
	"SessionEnd":       event.KindSessionEnded,
}

var kiroEvents = map[string]event.Kind{
	"userPromptSubmit": event.KindPromptSubmitted,
	"preToolUse":       event.KindToolInvoked,
	"postToolUse":      event.KindToolCompleted,
	"stop":             event.KindSessionEnded,
}

// Identify parses the hook payload and resolves the emitting tool.
// Returns ErrUnrecognizedPayload when the shape matches no known tool;
// callers treat that as a clean no-telemetry exit, never a failure.
func Identify(raw []byte) (Invocation, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Invocation{}, hookerr.UnrecognizedPayload("empty payload")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return Invocation{}, hookerr.UnrecognizedPayload("payload is not a JSON object")
	}

	inv := Invocation{
		SessionID: sessionID(fields),
		SourceRef: transcriptPath(fields),
		Fields:    fields,
	}

	// Cursor declares itself with conversation_id.
	if _, ok := fields["conversation_id"]; ok {
		inv.Tool = ToolCursor
		inv.Tier = event.TierTraceMetrics
		if inv.SessionID == "" {
			return Invocation{}, hookerr.UnrecognizedPayload("cursor payload without conversation id")
		}
		return inv, nil
	}

	// Metrics-only tools carry a declared event name and no transcript.
	if name, ok := fields["hook_event_name"].(string); ok && inv.SourceRef == "" {
		if _, known := copilotEvents[name]; known {
			inv.Tool = ToolCopilot
			inv.Tier = event.TierMetricsOnly
			inv.EventName = name
			inv.Seq = sequence(fields)
			return inv, nil
		}
		if _, known := kiroEvents[name]; known {
			inv.Tool = ToolKiro
			inv.Tier = event.TierMetricsOnly
			inv.EventName = name
			inv.Seq = sequence(fields)
			return inv, nil
		}
		return Invocation{}, hookerr.UnrecognizedPayload("unknown hook event name " + name)
	}

	// A session id plus transcript locator is the claude shape.
	if inv.SessionID != "" && inv.SourceRef != "" {
		inv.Tool = ToolClaude
		inv.Tier = event.TierTraceMetrics
		return inv, nil
	}

	return Invocation{}, hookerr.UnrecognizedPayload("no known tool shape")
}

// EventKind maps the native event name to the normalized kind for
// metrics-only invocations.
func (inv Invocation) EventKind() (event.Kind, bool) {
	switch inv.Tool {
	case ToolCopilot:
		kind, ok := copilotEvents[inv.EventName]
		return kind, ok
	case ToolKiro:
		kind, ok := kiroEvents[inv.EventName]
		return kind, ok
	default:
		return "", false
	}
}

func sessionID(fields map[string]any) string {
	for _, key := range []string{"sessionId", "session_id", "conversation_id"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	if session, ok := fields["session"].(map[string]any); ok {
		if v, ok := session["id"].(string); ok {
			return v
		}
	}
	return ""
}

func transcriptPath(fields map[string]any) string {
	raw := ""
	for _, key := range []string{"transcriptPath", "transcript_path"} {
		if v, ok := fields[key].(string); ok && v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		if transcript, ok := fields["transcript"].(map[string]any); ok {
			if v, ok := transcript["path"].(string); ok {
				raw = v
			}
		}
	}
	if raw == "" {
		return ""
	}
	expanded, err := pathutil.Expand(raw)
	if err != nil {
		return ""
	}
	return expanded
}

// sequence extracts the tool-assigned event counter. Stream tools that
// omit one fall back to zero; the source adapter assigns a timestamp-based
// sequence in that case.
func sequence(fields map[string]any) uint64 {
	for _, key := range []string{"seq", "sequence", "event_seq"} {
		if v, ok := fields[key].(float64); ok && v >= 0 {
			return uint64(v)
		}
	}
	return 0
}
