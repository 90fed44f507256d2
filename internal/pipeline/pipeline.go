// Package pipeline wires one hook invocation end to end: identify the
// payload, read new events, rebuild turns, commit the cursor, deliver.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/backend"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/cursor"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/logger"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/payload"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/source"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/turn"
)

// maxPayloadBytes bounds the stdin read. Hook payloads are small; the
// cap only guards against a runaway writer on the other end.
const maxPayloadBytes = 4 << 20

// shutdownTimeout bounds exporter teardown so a dead collector cannot
// stall the host tool.
const shutdownTimeout = 5 * time.Second

// Run processes a single hook invocation. The returned error is
// diagnostic only: callers log it and still exit zero, because telemetry
// must never break the assistant session that triggered it.
func Run(ctx context.Context, cfg *config.Config, stdin io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(stdin, maxPayloadBytes))
	if err != nil {
		return hookerr.SourceRead(err)
	}

	inv, err := payload.Identify(raw)
	if err != nil {
		if errors.Is(err, hookerr.ErrUnrecognizedPayload) {
			slog.Debug("Ignoring unrecognized payload", "error", err)
			return nil
		}
		return err
	}
	ctx = logger.WithSessionID(ctx, inv.SessionID)

	if !cfg.Enabled {
		slog.Debug("Tracing disabled, dropping payload", "tool", inv.Tool)
		return nil
	}

	adapter, ok := source.ForTool(inv.Tool)
	if !ok {
		slog.Debug("No adapter for tool", "tool", inv.Tool)
		return nil
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	key := cursor.Key(inv.SessionID, inv.SourceRef)

	rec, _, err := store.Load(key)
	if err != nil {
		return err
	}

	turns, next, err := buildOnce(ctx, cfg, adapter, inv, rec)
	if err != nil {
		return err
	}
	if len(turns) == 0 && recordEqual(rec, next) {
		return nil
	}

	// Progress is committed before delivery: a turn is either recorded
	// as done or re-derived next time, never emitted twice.
	if err := store.Commit(key, rec, next); err != nil {
		if !errors.Is(err, hookerr.ErrCursorConflict) {
			return err
		}
		turns, err = retryAfterConflict(ctx, cfg, store, adapter, inv, key)
		if err != nil {
			return err
		}
	}

	if len(turns) == 0 {
		return nil
	}
	return deliver(ctx, cfg, inv, turns)
}

// buildOnce reads new events against rec and derives closed turns plus
// the record to commit.
func buildOnce(ctx context.Context, cfg *config.Config, adapter source.Adapter, inv payload.Invocation, rec cursor.Record) ([]event.Turn, cursor.Record, error) {
	events, advanced, err := adapter.ReadNew(ctx, inv, rec)
	if err != nil {
		return nil, rec, err
	}

	res := turn.Build(inv.SessionID, string(inv.Tool), adapter.Tier(), events, rec.TurnCount, cfg.Limits.MaxContentChars)

	next := advanced
	next.TurnCount = rec.TurnCount + len(res.Turns)
	switch adapter.Tier() {
	case event.TierTraceMetrics:
		// Hold the offset at the open turn's first line so it is
		// re-read whole once its closing marker lands.
		if len(res.Remainder) > 0 {
			next.Offset = res.ConsumedEnd
		}
	case event.TierMetricsOnly:
		next.Pending = res.Remainder
		// The watermark covers consumed events only; a late arrival
		// below a pending seq still merges into the open turn.
		if res.ConsumedSeq > next.LastSeq {
			next.LastSeq = res.ConsumedSeq
		}
	}
	return res.Turns, next, nil
}

// retryAfterConflict handles a losing CAS: reload the winning record,
// re-derive against it, and commit once more. Events the winner already
// consumed fall out naturally because the re-read starts at its cursor.
func retryAfterConflict(ctx context.Context, cfg *config.Config, store *cursor.Store, adapter source.Adapter, inv payload.Invocation, key string) ([]event.Turn, error) {
	current, _, err := store.Load(key)
	if err != nil {
		return nil, err
	}

	turns, next, err := buildOnce(ctx, cfg, adapter, inv, current)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 && recordEqual(current, next) {
		return nil, nil
	}

	if err := store.Commit(key, current, next); err != nil {
		if errors.Is(err, hookerr.ErrCursorConflict) {
			// Lost twice: a concurrent invocation is making progress,
			// leave the work to it rather than risk double emission.
			slog.Warn("Cursor conflict persisted, yielding", "session", inv.SessionID)
			return nil, nil
		}
		return nil, err
	}
	return turns, nil
}

func deliver(ctx context.Context, cfg *config.Config, inv payload.Invocation, turns []event.Turn) error {
	d, err := backend.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.Shutdown(sctx); err != nil {
			slog.Warn("Backend shutdown failed", "error", err)
		}
	}()

	var errs []error
	for i := range turns {
		if err := d.Emit(ctx, &turns[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	slog.Info("Delivered turns",
		"session", inv.SessionID,
		"tool", inv.Tool,
		"turns", len(turns),
		"backends", d.Names(),
		"failures", len(errs))
	return errors.Join(errs...)
}

func newStore(cfg *config.Config) (*cursor.Store, error) {
	lockCfg := cursor.DefaultLockConfig()
	timeout, err := config.DurationOrDefault(cfg.State.LockTimeout, config.DefaultStateLockTimeout)
	if err != nil {
		return nil, hookerr.InvalidConfig(err.Error())
	}
	retry, err := config.DurationOrDefault(cfg.State.LockRetry, config.DefaultStateLockRetry)
	if err != nil {
		return nil, hookerr.InvalidConfig(err.Error())
	}
	lockCfg.Timeout = timeout
	lockCfg.Retry = retry
	if cfg.State.LockMaxRetry > 0 {
		lockCfg.MaxRetry = cfg.State.LockMaxRetry
	}
	return cursor.NewStore(cfg.State.Dir, lockCfg)
}

// recordEqual compares the fields a commit would change.
func recordEqual(a, b cursor.Record) bool {
	if a.Offset != b.Offset || a.LastSeq != b.LastSeq || a.TurnCount != b.TurnCount {
		return false
	}
	if len(a.Pending) != len(b.Pending) {
		return false
	}
	for i := range a.Pending {
		if a.Pending[i].ID != b.Pending[i].ID {
			return false
		}
	}
	return true
}
