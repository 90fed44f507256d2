package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/cursor"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/payload"
)

// FileAdapter tails a JSONL transcript per session. It serves the
// trace+metrics tools (claude, cursor), whose hook payload carries a
// transcript locator instead of the event itself.
type FileAdapter struct {
	tool payload.ToolID
}

func (a *FileAdapter) Tool() payload.ToolID { return a.tool }

func (a *FileAdapter) Tier() event.Tier { return event.TierTraceMetrics }

// ReadNew reads strictly the byte range past rec.Offset. An unterminated
// trailing line is not consumed; it is re-read whole on the next
// invocation. A file shorter than the prior offset means the underlying
// tool restarted and truncated its history: progress resets to zero
// rather than erroring.
func (a *FileAdapter) ReadNew(ctx context.Context, inv payload.Invocation, rec cursor.Record) ([]event.RawEvent, cursor.Record, error) {
	if inv.SourceRef == "" {
		return nil, rec, nil
	}

	info, err := os.Stat(inv.SourceRef)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Transcript does not exist yet", "path", inv.SourceRef)
			return nil, rec, nil
		}
		return nil, rec, hookerr.SourceRead(err)
	}

	offset := rec.Offset
	if info.Size() < offset {
		slog.Warn("Transcript shrank, treating as rotation",
			"path", inv.SourceRef, "size", info.Size(), "offset", offset)
		offset = 0
	}

	f, err := os.Open(inv.SourceRef)
	if err != nil {
		return nil, rec, hookerr.SourceRead(err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, rec, hookerr.SourceRead(err)
	}

	var events []event.RawEvent
	pos := offset
	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, rec, err
		}
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Incomplete trailing line: not yet "new".
			break
		}
		if err != nil {
			return nil, rec, hookerr.SourceRead(err)
		}
		start := pos
		pos += int64(len(line))

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		msg, ts, ok := parseTranscriptLine(trimmed)
		if !ok {
			continue
		}
		evt := event.NewRawEvent(event.KindTranscriptLine, event.TierTraceMetrics, ts)
		evt.Start = start
		evt.End = pos
		evt.Message = msg
		events = append(events, evt)
	}

	advanced := rec
	advanced.Offset = pos
	return events, advanced, nil
}

// transcriptLine matches the claude-family JSONL shape: a thin envelope
// with the role either at the top level or nested under "message".
type transcriptLine struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	Content   json.RawMessage    `json:"content"`
	Message   *transcriptMessage `json:"message"`
}

type transcriptMessage struct {
	Role    string          `json:"role"`
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

func parseTranscriptLine(line []byte) (*event.Message, time.Time, bool) {
	var tl transcriptLine
	if err := json.Unmarshal(line, &tl); err != nil {
		return nil, time.Time{}, false
	}

	role := ""
	if tl.Type == "user" || tl.Type == "assistant" {
		role = tl.Type
	}
	content := tl.Content
	msg := &event.Message{}
	if tl.Message != nil {
		if role == "" && (tl.Message.Role == "user" || tl.Message.Role == "assistant") {
			role = tl.Message.Role
		}
		msg.ID = tl.Message.ID
		msg.Model = tl.Message.Model
		if len(tl.Message.Content) > 0 {
			content = tl.Message.Content
		}
	}
	if role == "" {
		return nil, time.Time{}, false
	}
	msg.Role = role

	ts := time.Time{}
	if tl.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, tl.Timestamp); err == nil {
			ts = parsed
		}
	}
	msg.Timestamp = ts

	decodeContent(msg, content)
	return msg, ts, true
}

// decodeContent accepts either a bare string or a block list, matching
// both shapes the claude family writes.
func decodeContent(msg *event.Message, content json.RawMessage) {
	if len(content) == 0 {
		return
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		msg.Text = text
		return
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return
	}

	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			msg.ToolUses = append(msg.ToolUses, event.ToolUse{
				ID:    b.ID,
				Name:  b.Name,
				Input: rawToString(b.Input),
			})
		case "tool_result":
			msg.ToolResults = append(msg.ToolResults, event.ToolResult{
				ToolUseID: b.ToolUseID,
				Content:   rawToString(b.Content),
				IsError:   b.IsError,
			})
		}
	}
	msg.Text = strings.Join(parts, "\n")
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
