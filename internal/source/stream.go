package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/cursor"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/payload"
)

// StreamAdapter serves the metrics-only tools (copilot, kiro). Each hook
// invocation delivers exactly one discrete boundary event in its payload;
// there is no transcript to tail and a stream adapter never surfaces
// transcript-line events. The host does not guarantee ordering across
// concurrent notification channels, so events are merged with the
// session's pending buffer and re-sorted by sequence number before the
// builder sees them.
type StreamAdapter struct {
	tool payload.ToolID
}

func (a *StreamAdapter) Tool() payload.ToolID { return a.tool }

func (a *StreamAdapter) Tier() event.Tier { return event.TierMetricsOnly }

func (a *StreamAdapter) ReadNew(ctx context.Context, inv payload.Invocation, rec cursor.Record) ([]event.RawEvent, cursor.Record, error) {
	kind, ok := inv.EventKind()
	if !ok {
		return nil, rec, nil
	}

	evt := event.NewRawEvent(kind, event.TierMetricsOnly, eventTimestamp(inv))
	evt.Seq = inv.Seq
	if evt.Seq == 0 {
		// Tool assigned no counter; a nanosecond clock preserves per-session
		// monotonicity well enough for single-event invocations.
		evt.Seq = uint64(time.Now().UnixNano())
	}
	evt.ToolName = toolName(inv)
	evt.Attrs = eventAttrs(inv, kind)

	if evt.Seq <= rec.LastSeq && !pendingHas(rec.Pending, evt.Seq) {
		// Re-delivered event already consumed into an emitted turn.
		slog.Debug("Dropping duplicate stream event", "seq", evt.Seq, "last_seq", rec.LastSeq)
		return append([]event.RawEvent(nil), rec.Pending...), rec, nil
	}

	merged := make([]event.RawEvent, 0, len(rec.Pending)+1)
	merged = append(merged, rec.Pending...)
	if !pendingHas(rec.Pending, evt.Seq) {
		merged = append(merged, evt)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Seq < merged[j].Seq })

	// LastSeq is left alone here: the watermark advances only once the
	// builder folds events into emitted turns, so a late event for the
	// still-open turn is never mistaken for a re-delivery.
	return merged, rec, nil
}

func pendingHas(pending []event.RawEvent, seq uint64) bool {
	for _, e := range pending {
		if e.Seq == seq {
			return true
		}
	}
	return false
}

func eventTimestamp(inv payload.Invocation) time.Time {
	if raw, ok := inv.Fields["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

func toolName(inv payload.Invocation) string {
	for _, key := range []string{"tool_name", "toolName"} {
		if v, ok := inv.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// eventAttrs reduces the payload to string attributes. Prompt content is
// never carried for a metrics-only tool: only its length survives.
func eventAttrs(inv payload.Invocation, kind event.Kind) map[string]string {
	attrs := make(map[string]string)
	if cwd, ok := inv.Fields["cwd"].(string); ok && cwd != "" {
		attrs["cwd"] = cwd
	}

	switch kind {
	case event.KindPromptSubmitted:
		if prompt, ok := inv.Fields["prompt"].(string); ok {
			attrs["prompt_len"] = fmt.Sprintf("%d", len(prompt))
		}
	case event.KindSessionEnded:
		for _, key := range []string{"session_end_reason", "sessionEndReason", "reason"} {
			if v, ok := inv.Fields[key].(string); ok && v != "" {
				attrs["reason"] = v
				break
			}
		}
	}
	return attrs
}
