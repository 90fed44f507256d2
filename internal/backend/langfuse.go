package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
)

// langfuseOTLPPath is Langfuse's OTLP trace ingestion route.
const langfuseOTLPPath = "/api/public/otel/v1/traces"

// Langfuse delivers turns as traces to a Langfuse instance. Langfuse
// speaks OTLP/HTTP natively, so this is a trace-only OTLP pipeline
// pointed at its public ingestion route with basic auth derived from
// the project key pair.
type Langfuse struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewLangfuse builds the backend from cfg.Langfuse.
func NewLangfuse(cfg *config.Config) (*Langfuse, error) {
	if cfg.Langfuse.PublicKey == "" || cfg.Langfuse.SecretKey == "" {
		return nil, hookerr.InvalidConfig("langfuse backend requires langfuse.public_key and langfuse.secret_key")
	}
	baseURL := cfg.Langfuse.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultLangfuseBaseURL
	}

	ctx := context.Background()
	res, err := newResource(ctx, cfg.Service.Name)
	if err != nil {
		return nil, err
	}

	auth := base64.StdEncoding.EncodeToString(
		[]byte(cfg.Langfuse.PublicKey + ":" + cfg.Langfuse.SecretKey))
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimSuffix(baseURL, "/")+langfuseOTLPPath),
		otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Basic " + auth,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create langfuse exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(time.Second),
		),
		sdktrace.WithResource(res),
	)
	return &Langfuse{
		tp:     tp,
		tracer: tp.Tracer("cc-tracing-hooks"),
	}, nil
}

func (b *Langfuse) Name() string { return "langfuse" }

// Emit sends one trace per turn. Metrics-only turns still produce a
// trace, but with counts only and no content attributes.
func (b *Langfuse) Emit(ctx context.Context, t *event.Turn) error {
	end := t.EndedAt
	if end.IsZero() {
		end = time.Now()
	}

	attrs := []attribute.KeyValue{
		// langfuse.session.id groups traces into a Langfuse session.
		attribute.String("langfuse.session.id", t.SessionID),
		attribute.String("session.id", t.SessionID),
		attribute.Int("turn.index", t.Index),
		attribute.String("turn.status", string(t.Status)),
		attribute.String("gen_ai.system", t.SourceTool),
	}
	if t.Tier == event.TierTraceMetrics {
		attrs = append(attrs,
			attribute.String("gen_ai.request.model", t.Model),
			attribute.String("langfuse.trace.input", t.Prompt),
			attribute.String("langfuse.trace.output", t.Response),
		)
	} else {
		attrs = append(attrs,
			attribute.Int("prompt.chars", t.PromptLen),
			attribute.Int("tool.count", len(t.ToolCalls)),
		)
	}

	ctx, root := b.tracer.Start(ctx, fmt.Sprintf("Turn %d", t.Index),
		trace.WithTimestamp(t.StartedAt),
		trace.WithAttributes(attrs...),
	)

	for _, call := range t.ToolCalls {
		start := call.StartedAt
		if start.IsZero() {
			start = t.StartedAt
		}
		callEnd := call.CompletedAt
		if callEnd.IsZero() {
			callEnd = end
		}
		callAttrs := []attribute.KeyValue{
			attribute.String("tool.name", call.Name),
			attribute.String("tool.outcome", string(call.Outcome)),
		}
		if t.Tier == event.TierTraceMetrics {
			callAttrs = append(callAttrs,
				attribute.String("langfuse.observation.input", call.Input),
				attribute.String("langfuse.observation.output", call.Output),
			)
		}
		_, span := b.tracer.Start(ctx, "Tool: "+toolSpanName(call),
			trace.WithTimestamp(start),
			trace.WithAttributes(callAttrs...),
		)
		span.End(trace.WithTimestamp(callEnd))
	}

	root.End(trace.WithTimestamp(end))
	return nil
}

func (b *Langfuse) Flush(ctx context.Context) error {
	return b.tp.ForceFlush(ctx)
}

func (b *Langfuse) Shutdown(ctx context.Context) error {
	return b.tp.Shutdown(ctx)
}
