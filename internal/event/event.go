// Package event defines the normalized data model flowing through the
// pipeline: raw tool notifications on the way in, reconstructed turns on
// the way out.
package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a raw tool notification.
type Kind string

const (
	KindPromptSubmitted Kind = "prompt-submitted"
	KindToolInvoked     Kind = "tool-invoked"
	KindToolCompleted   Kind = "tool-completed"
	KindSessionEnded    Kind = "session-ended"
	KindTranscriptLine  Kind = "transcript-line"
)

// Tier is the fixed information envelope a tool exposes. It is a property
// of the tool, decided at adapter registration time, never per event.
type Tier string

const (
	// TierTraceMetrics - the tool exposes a full transcript; prompt and
	// response content may be forwarded.
	TierTraceMetrics Tier = "trace+metrics"
	// TierMetricsOnly - the tool exposes only boundary events; content is
	// reduced to counts and identifiers before it ever leaves the builder.
	TierMetricsOnly Tier = "metrics-only"
)

// RawEvent is one tool-native notification, never mutated after creation.
type RawEvent struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Tier      Tier              `json:"tier"`
	Timestamp time.Time         `json:"ts"`
	Seq       uint64            `json:"seq,omitempty"`   // stream-family ordering
	Start     int64             `json:"start,omitempty"` // file-family: byte offset of this line
	End       int64             `json:"end,omitempty"`   // file-family: byte offset past this line
	ToolName  string            `json:"tool_name,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Message   *Message          `json:"message,omitempty"` // transcript-line only
}

// NewRawEvent stamps a fresh ULID for diagnostics.
func NewRawEvent(kind Kind, tier Tier, ts time.Time) RawEvent {
	return RawEvent{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Tier:      tier,
		Timestamp: ts,
	}
}

// Message is one parsed transcript line from a trace-capable tool.
type Message struct {
	Role        string       `json:"role"` // "user" or "assistant"
	ID          string       `json:"id,omitempty"`
	Model       string       `json:"model,omitempty"`
	Text        string       `json:"text,omitempty"`
	ToolUses    []ToolUse    `json:"tool_uses,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Timestamp   time.Time    `json:"ts,omitempty"`
}

// ToolUse is a tool invocation block inside an assistant message.
type ToolUse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input,omitempty"`
}

// ToolResult is a tool output block inside a user message.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// IsToolResultCarrier reports whether the message exists only to carry
// tool results back to the assistant.
func (m *Message) IsToolResultCarrier() bool {
	return m.Role == "user" && len(m.ToolResults) > 0 && m.Text == ""
}
