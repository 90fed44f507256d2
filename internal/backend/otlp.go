package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/HikaruEgashira/cc-tracing-hooks/internal/config"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/event"
	"github.com/HikaruEgashira/cc-tracing-hooks/internal/hookerr"
)

// OTLP exports turns as spans and metrics over OTLP/HTTP. It owns its
// provider pair rather than installing globals so multiple backends can
// export to different endpoints from one process.
type OTLP struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer

	turns        metric.Int64Counter
	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
	promptChars  metric.Int64Histogram
}

// NewOTLP builds the generic OTLP backend from cfg.OTLP.
func NewOTLP(cfg *config.Config) (*OTLP, error) {
	if cfg.OTLP.Endpoint == "" {
		return nil, hookerr.InvalidConfig("otlp backend requires otlp.endpoint")
	}

	ctx := context.Background()
	res, err := newResource(ctx, cfg.Service.Name)
	if err != nil {
		return nil, err
	}

	traceOpts := []otlptracehttp.Option{endpointTraceOption(cfg.OTLP.Endpoint)}
	metricOpts := []otlpmetrichttp.Option{endpointMetricOption(cfg.OTLP.Endpoint)}
	if cfg.OTLP.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	if headers := config.ParseHeaders(cfg.OTLP.Headers); len(headers) > 0 {
		traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
		metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(headers))
	}

	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp,
			sdktrace.WithBatchTimeout(time.Second),
		),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			// The process exits right after Flush; the interval only
			// matters for abnormally long invocations.
			sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)

	b := &OTLP{
		tp:     tp,
		mp:     mp,
		tracer: tp.Tracer("cc-tracing-hooks"),
	}
	if err := b.initInstruments(mp.Meter("cc-tracing-hooks")); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *OTLP) initInstruments(m metric.Meter) error {
	var err error
	if b.turns, err = m.Int64Counter("hooks.turns",
		metric.WithDescription("Completed turns observed")); err != nil {
		return err
	}
	if b.toolCalls, err = m.Int64Counter("hooks.tool_calls",
		metric.WithDescription("Tool calls observed within turns")); err != nil {
		return err
	}
	if b.toolDuration, err = m.Float64Histogram("hooks.tool_duration_ms",
		metric.WithDescription("Tool call duration"),
		metric.WithUnit("ms")); err != nil {
		return err
	}
	if b.promptChars, err = m.Int64Histogram("hooks.prompt_chars",
		metric.WithDescription("Prompt length in characters")); err != nil {
		return err
	}
	return nil
}

func (b *OTLP) Name() string { return "otlp" }

// Emit records metrics for every turn and spans only for trace-capable
// turns. Metrics-only turns must never leak content, so their spans are
// skipped entirely rather than emitted with blanked fields.
func (b *OTLP) Emit(ctx context.Context, t *event.Turn) error {
	b.recordMetrics(ctx, t)
	if t.Tier != event.TierTraceMetrics {
		return nil
	}
	b.emitSpans(ctx, t)
	return nil
}

func (b *OTLP) recordMetrics(ctx context.Context, t *event.Turn) {
	turnAttrs := metric.WithAttributes(
		attribute.String("source.tool", t.SourceTool),
		attribute.String("tier", string(t.Tier)),
		attribute.String("status", string(t.Status)),
	)
	b.turns.Add(ctx, 1, turnAttrs)
	b.promptChars.Record(ctx, int64(t.PromptLen), metric.WithAttributes(
		attribute.String("source.tool", t.SourceTool),
	))
	for _, call := range t.ToolCalls {
		b.toolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source.tool", t.SourceTool),
			attribute.String("tool.name", call.Name),
			attribute.String("outcome", string(call.Outcome)),
		))
		if call.Duration > 0 {
			b.toolDuration.Record(ctx, float64(call.Duration)/float64(time.Millisecond),
				metric.WithAttributes(
					attribute.String("source.tool", t.SourceTool),
					attribute.String("tool.name", call.Name),
				))
		}
	}
}

func (b *OTLP) emitSpans(ctx context.Context, t *event.Turn) {
	end := t.EndedAt
	if end.IsZero() {
		end = time.Now()
	}

	ctx, root := b.tracer.Start(ctx, fmt.Sprintf("Turn %d", t.Index),
		trace.WithTimestamp(t.StartedAt),
		trace.WithAttributes(turnAttributes(t)...),
	)

	_, resp := b.tracer.Start(ctx, "Response",
		trace.WithTimestamp(t.StartedAt),
		trace.WithAttributes(
			attribute.String("gen_ai.request.model", t.Model),
			attribute.Int("gen_ai.usage.tool_count", len(t.ToolCalls)),
		),
	)
	resp.End(trace.WithTimestamp(end))

	for _, call := range t.ToolCalls {
		start := call.StartedAt
		if start.IsZero() {
			start = t.StartedAt
		}
		callEnd := call.CompletedAt
		if callEnd.IsZero() {
			callEnd = end
		}
		_, span := b.tracer.Start(ctx, "Tool: "+toolSpanName(call),
			trace.WithTimestamp(start),
			trace.WithAttributes(
				attribute.String("tool.name", call.Name),
				attribute.String("tool.id", call.ID),
				attribute.String("tool.input", call.Input),
				attribute.String("tool.output", call.Output),
				attribute.String("tool.outcome", string(call.Outcome)),
				attribute.Bool("tool.unmatched", call.Unmatched),
			),
		)
		span.End(trace.WithTimestamp(callEnd))
	}

	root.End(trace.WithTimestamp(end))
}

func (b *OTLP) Flush(ctx context.Context) error {
	if err := b.tp.ForceFlush(ctx); err != nil {
		return err
	}
	return b.mp.ForceFlush(ctx)
}

func (b *OTLP) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := b.tp.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := b.mp.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func turnAttributes(t *event.Turn) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("session.id", t.SessionID),
		attribute.Int("turn.index", t.Index),
		attribute.String("turn.status", string(t.Status)),
		attribute.String("gen_ai.system", t.SourceTool),
		attribute.String("gen_ai.request.model", t.Model),
		attribute.String("gen_ai.prompt", t.Prompt),
		attribute.String("gen_ai.completion", t.Response),
	}
}

func toolSpanName(call event.ToolCall) string {
	if call.Name == "" {
		return "unknown"
	}
	return call.Name
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

// endpointTraceOption accepts either a bare host:port or a full URL.
func endpointTraceOption(endpoint string) otlptracehttp.Option {
	if strings.Contains(endpoint, "://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

func endpointMetricOption(endpoint string) otlpmetrichttp.Option {
	if strings.Contains(endpoint, "://") {
		return otlpmetrichttp.WithEndpointURL(endpoint)
	}
	return otlpmetrichttp.WithEndpoint(endpoint)
}
