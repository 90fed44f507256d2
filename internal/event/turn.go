package event

import "time"

// Status is the terminal state of a reconstructed turn.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusIncomplete Status = "incomplete"
)

// Outcome of a single tool call within a turn.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
)

// Turn is the normalized unit of telemetry: one complete prompt/response
// exchange with its tool calls. Immutable once built; content fields are
// truncated at construction time, never at dispatch time. For metrics-only
// sessions Prompt and Response are always empty and only the length
// counters are populated.
type Turn struct {
	SessionID  string
	SourceTool string
	Index      int
	Tier       Tier
	Model      string

	Prompt       string
	PromptMeta   TruncMeta
	Response     string
	ResponseMeta TruncMeta
	PromptLen    int
	ResponseLen  int

	ToolCalls []ToolCall

	StartedAt time.Time
	EndedAt   time.Time
	Status    Status
}

// ToolCall summarizes one tool invocation inside a turn. Unmatched marks a
// completion whose invocation fell into an earlier, already-consumed read.
type ToolCall struct {
	ID          string
	Name        string
	Input       string
	Output      string
	InputMeta   TruncMeta
	OutputMeta  TruncMeta
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Outcome     string
	Unmatched   bool
}
