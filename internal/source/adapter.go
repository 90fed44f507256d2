// Package source reads the raw events that became available since the
// previous invocation. Two families exist: file-incremental adapters
// tail a transcript file, stream-incremental adapters consume the
// discrete event carried by the hook payload itself.
package source

import (
	"context"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/cursor"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/payload"
)

// Adapter yields new raw events for one tool. ReadNew never mutates the
// given record; it returns the advanced copy alongside the events so the
// caller controls when (and whether) progress is committed.
type Adapter interface {
	Tool() payload.ToolID
	Tier() event.Tier
	ReadNew(ctx context.Context, inv payload.Invocation, rec cursor.Record) ([]event.RawEvent, cursor.Record, error)
}

// ForTool maps a tool identity to its adapter variant. The mapping is
// static and exhaustive; there is deliberately no runtime registry.
func ForTool(id payload.ToolID) (Adapter, bool) {
	switch id {
	case payload.ToolClaude:
		return &FileAdapter{tool: payload.ToolClaude}, true
	case payload.ToolCursor:
		return &FileAdapter{tool: payload.ToolCursor}, true
	case payload.ToolCopilot:
		return &StreamAdapter{tool: payload.ToolCopilot}, true
	case payload.ToolKiro:
		return &StreamAdapter{tool: payload.ToolKiro}, true
	default:
		return nil, false
	}
}
