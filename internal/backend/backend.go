// Package backend delivers normalized turns to observability sinks.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
)

// Backend is a single delivery sink. Emit must honor the turn's tier:
// metrics-only turns carry no content and none may be attached downstream.
type Backend interface {
	Name() string
	Emit(ctx context.Context, t *event.Turn) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Dispatcher fans a turn out to every configured backend. A failing
// backend never blocks the others; failures are collected per backend.
type Dispatcher struct {
	backends []Backend
}

// New builds the dispatcher for cfg.Backends. Unknown backend names are
// a configuration error.
func New(cfg *config.Config) (*Dispatcher, error) {
	var backends []Backend
	for _, name := range cfg.Backends {
		switch name {
		case "otlp":
			b, err := NewOTLP(cfg)
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		case "langfuse":
			b, err := NewLangfuse(cfg)
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		default:
			return nil, hookerr.InvalidConfig(fmt.Sprintf("unknown backend %q", name))
		}
	}
	return &Dispatcher{backends: backends}, nil
}

// Names lists the configured backends in order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.backends))
	for _, b := range d.backends {
		names = append(names, b.Name())
	}
	return names
}

// Emit delivers t to every backend. The returned error joins per-backend
// failures; a partial failure still counts as delivered for the rest.
func (d *Dispatcher) Emit(ctx context.Context, t *event.Turn) error {
	var errs []error
	for _, b := range d.backends {
		if err := b.Emit(ctx, t); err != nil {
			slog.Warn("Backend emit failed", "backend", b.Name(), "session", t.SessionID, "turn", t.Index, "error", err)
			errs = append(errs, hookerr.Delivery(b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Flush forces exporters to push buffered telemetry.
func (d *Dispatcher) Flush(ctx context.Context) error {
	var errs []error
	for _, b := range d.backends {
		if err := b.Flush(ctx); err != nil {
			errs = append(errs, hookerr.Delivery(b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown releases exporter resources. Safe to call after Flush.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var errs []error
	for _, b := range d.backends {
		if err := b.Shutdown(ctx); err != nil {
			errs = append(errs, hookerr.Delivery(b.Name(), err))
		}
	}
	return errors.Join(errs...)
}
