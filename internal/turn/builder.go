// Package turn reassembles raw events into normalized turns. A turn is
// emitted complete-or-not-at-all: the group belonging to a turn whose
// closing marker has not arrived yet is returned as the remainder and
// re-presented on a later invocation, never half-built.
package turn

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
)

// Result is the outcome of one build pass.
//
// ConsumedEnd is the byte offset (file family) past the last event folded
// into an emitted turn or discarded as an orphan; the committed read offset
// must hold there while a turn is open. ConsumedSeq is the stream-family
// counterpart: the highest sequence number among consumed events, zero when
// every presented event still belongs to the open turn. Remainder holds the
// open turn's events; stream-family callers persist it because their events
// cannot be re-read.
type Result struct {
	Turns       []event.Turn
	ConsumedEnd int64
	ConsumedSeq uint64
	Remainder   []event.RawEvent
}

// Build groups events into turns. startIndex is the session's persisted
// turn count, so indices stay strictly increasing across invocations.
// maxChars bounds every content field at construction time.
func Build(sessionID, sourceTool string, tier event.Tier, events []event.RawEvent, startIndex, maxChars int) Result {
	if len(events) == 0 {
		return Result{}
	}
	if tier == event.TierMetricsOnly {
		return buildBoundary(sessionID, sourceTool, events, startIndex)
	}
	return buildTranscript(sessionID, sourceTool, events, startIndex, maxChars)
}

// --- trace+metrics: transcript message grouping ---

type transcriptGroup struct {
	openIdx         int
	user            *event.Message
	userTime        time.Time
	assistantOrder  []string
	assistantLatest map[string]*event.Message
	toolResults     map[string]event.ToolResult
	lastTime        time.Time
}

func buildTranscript(sessionID, sourceTool string, events []event.RawEvent, startIndex, maxChars int) Result {
	var (
		turns []event.Turn
		group *transcriptGroup
	)

	flush := func() {
		if group == nil {
			return
		}
		turns = append(turns, finishTranscriptTurn(sessionID, sourceTool, group, startIndex+len(turns), maxChars))
		group = nil
	}

	for i := range events {
		msg := events[i].Message
		if msg == nil {
			continue
		}

		switch {
		case msg.IsToolResultCarrier():
			if group == nil {
				slog.Debug("Tool result with no open turn", "session", sessionID)
				continue
			}
			for _, tr := range msg.ToolResults {
				group.toolResults[tr.ToolUseID] = tr
			}
			group.lastTime = maxTime(group.lastTime, msg.Timestamp)

		case msg.Role == "user":
			// A new prompt closes the previous turn and opens the next.
			flush()
			group = &transcriptGroup{
				openIdx:         i,
				user:            msg,
				userTime:        msg.Timestamp,
				assistantLatest: make(map[string]*event.Message),
				toolResults:     make(map[string]event.ToolResult),
				lastTime:        msg.Timestamp,
			}

		case msg.Role == "assistant":
			if group == nil {
				// Orphan continuation of a turn emitted in a prior read.
				continue
			}
			id := msg.ID
			if id == "" {
				id = "noid:" + strconv.Itoa(len(group.assistantOrder))
			}
			if _, seen := group.assistantLatest[id]; !seen {
				group.assistantOrder = append(group.assistantOrder, id)
			}
			group.assistantLatest[id] = msg
			group.lastTime = maxTime(group.lastTime, msg.Timestamp)
		}
	}

	res := Result{Turns: turns}
	if group != nil {
		res.Remainder = events[group.openIdx:]
		res.ConsumedEnd = res.Remainder[0].Start
	} else {
		// Only orphan messages: consume them, they can never close a turn.
		res.ConsumedEnd = events[len(events)-1].End
	}
	return res
}

func finishTranscriptTurn(sessionID, sourceTool string, g *transcriptGroup, index, maxChars int) event.Turn {
	t := event.Turn{
		SessionID:  sessionID,
		SourceTool: sourceTool,
		Index:      index,
		Tier:       event.TierTraceMetrics,
		StartedAt:  g.userTime,
		EndedAt:    g.lastTime,
	}

	t.PromptLen = len([]rune(g.user.Text))
	t.Prompt, t.PromptMeta = event.Truncate(g.user.Text, maxChars)

	var lastAssistant *event.Message
	for _, id := range g.assistantOrder {
		am := g.assistantLatest[id]
		if t.Model == "" && am.Model != "" {
			t.Model = am.Model
		}
		for _, tu := range am.ToolUses {
			call := event.ToolCall{
				ID:      tu.ID,
				Name:    tu.Name,
				Outcome: event.OutcomeUnknown,
			}
			call.Input, call.InputMeta = event.Truncate(tu.Input, maxChars)
			if tr, ok := g.toolResults[tu.ID]; ok {
				call.Output, call.OutputMeta = event.Truncate(tr.Content, maxChars)
				if tr.IsError {
					call.Outcome = event.OutcomeError
				} else {
					call.Outcome = event.OutcomeSuccess
				}
				delete(g.toolResults, tu.ID)
			}
			t.ToolCalls = append(t.ToolCalls, call)
		}
		lastAssistant = am
	}

	// Results whose invocation fell into an earlier, already-consumed read.
	for id, tr := range g.toolResults {
		call := event.ToolCall{
			ID:        id,
			Unmatched: true,
			Outcome:   event.OutcomeSuccess,
		}
		if tr.IsError {
			call.Outcome = event.OutcomeError
		}
		call.Output, call.OutputMeta = event.Truncate(tr.Content, maxChars)
		t.ToolCalls = append(t.ToolCalls, call)
	}

	if lastAssistant != nil {
		t.ResponseLen = len([]rune(lastAssistant.Text))
		t.Response, t.ResponseMeta = event.Truncate(lastAssistant.Text, maxChars)
	}

	t.Status = transcriptStatus(t, lastAssistant)
	return t
}

func transcriptStatus(t event.Turn, lastAssistant *event.Message) event.Status {
	if lastAssistant == nil {
		return event.StatusIncomplete
	}
	for _, call := range t.ToolCalls {
		if call.Outcome == event.OutcomeError {
			return event.StatusError
		}
	}
	return event.StatusSuccess
}

// --- metrics-only: boundary event grouping ---

type boundaryGroup struct {
	openIdx   int
	startTime time.Time
	endTime   time.Time
	promptLen int
	calls     []event.ToolCall
	reason    string
}

func buildBoundary(sessionID, sourceTool string, events []event.RawEvent, startIndex int) Result {
	var (
		turns []event.Turn
		group *boundaryGroup
	)

	flush := func() {
		if group == nil {
			return
		}
		turns = append(turns, finishBoundaryTurn(sessionID, sourceTool, group, startIndex+len(turns)))
		group = nil
	}

	for i := range events {
		e := events[i]
		switch e.Kind {
		case event.KindPromptSubmitted:
			flush()
			group = &boundaryGroup{
				openIdx:   i,
				startTime: e.Timestamp,
				endTime:   e.Timestamp,
				promptLen: atoiAttr(e.Attrs, "prompt_len"),
			}

		case event.KindToolInvoked:
			if group == nil {
				slog.Debug("Tool invocation with no open turn", "session", sessionID, "tool", e.ToolName)
				continue
			}
			group.calls = append(group.calls, event.ToolCall{
				Name:      e.ToolName,
				StartedAt: e.Timestamp,
				Outcome:   event.OutcomeUnknown,
			})
			group.endTime = maxTime(group.endTime, e.Timestamp)

		case event.KindToolCompleted:
			if group == nil {
				slog.Debug("Tool completion with no open turn", "session", sessionID, "tool", e.ToolName)
				continue
			}
			if !completeCall(group.calls, e) {
				// Invocation event fell in a prior, already-consumed read.
				group.calls = append(group.calls, event.ToolCall{
					Name:        e.ToolName,
					CompletedAt: e.Timestamp,
					Outcome:     event.OutcomeSuccess,
					Unmatched:   true,
				})
			}
			group.endTime = maxTime(group.endTime, e.Timestamp)

		case event.KindSessionEnded:
			if group == nil {
				continue
			}
			group.endTime = maxTime(group.endTime, e.Timestamp)
			group.reason = e.Attrs["reason"]
			flush()
		}
	}

	// Events arrive sorted by sequence, so the last consumed one carries
	// the highest seq.
	res := Result{Turns: turns}
	if group != nil {
		res.Remainder = events[group.openIdx:]
		if group.openIdx > 0 {
			res.ConsumedSeq = events[group.openIdx-1].Seq
		}
	} else {
		res.ConsumedSeq = events[len(events)-1].Seq
	}
	return res
}

func completeCall(calls []event.ToolCall, e event.RawEvent) bool {
	for i := range calls {
		if calls[i].Name == e.ToolName && calls[i].CompletedAt.IsZero() && !calls[i].Unmatched {
			calls[i].CompletedAt = e.Timestamp
			calls[i].Duration = e.Timestamp.Sub(calls[i].StartedAt)
			calls[i].Outcome = event.OutcomeSuccess
			return true
		}
	}
	return false
}

func finishBoundaryTurn(sessionID, sourceTool string, g *boundaryGroup, index int) event.Turn {
	t := event.Turn{
		SessionID:  sessionID,
		SourceTool: sourceTool,
		Index:      index,
		Tier:       event.TierMetricsOnly,
		PromptLen:  g.promptLen,
		ToolCalls:  g.calls,
		StartedAt:  g.startTime,
		EndedAt:    g.endTime,
		Status:     event.StatusSuccess,
	}
	if g.reason == "error" {
		t.Status = event.StatusError
	}
	for _, call := range t.ToolCalls {
		if call.Outcome == event.OutcomeError {
			t.Status = event.StatusError
		}
	}
	return t
}

func atoiAttr(attrs map[string]string, key string) int {
	if attrs == nil {
		return 0
	}
	n, err := strconv.Atoi(attrs[key])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
