// Package telemetry wraps OpenTelemetry tracer setup so the rest of the
// core can start spans without depending on the SDK directly.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an otel tracer with a debug flag that gates expensive
// span attributes (large content bodies, full document payloads).
type Tracer struct {
	trace.Tracer
	debug bool
}

var (
	mu      sync.Mutex
	current *Tracer
)

// Config controls tracer provider construction.
type Config struct {
	Enabled     bool
	ServiceName string
	Debug       bool
}

// Init installs the process-wide tracer provider. Enabled=false installs
// a no-op tracer so every call site behaves identically whether or not
// telemetry is configured.
func Init(cfg Config) (func(context.Context) error, error) {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		current = &Tracer{Tracer: otel.Tracer("ctxmgr"), debug: cfg.Debug}
		return func(context.Context) error { return nil }, nil
	}

	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	name := cfg.ServiceName
	if name == "" {
		name = "ctxmgr"
	}
	current = &Tracer{Tracer: provider.Tracer(name), debug: cfg.Debug}
	return provider.Shutdown, nil
}

// GetTracer returns the process-wide tracer, initializing a no-op one if
// Init was never called. Mirrors the teacher's package-singleton access
// pattern so call sites don't thread a tracer through every signature.
func GetTracer() *Tracer {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = &Tracer{Tracer: otel.Tracer("ctxmgr")}
	}
	return current
}

// Debug reports whether high-cardinality span attributes should be
// recorded.
func (t *Tracer) Debug() bool { return t.debug }

// StartSpan starts a span named name under ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan ends span, recording err if non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes truncated)", s[:max], len(s)-max)
}

// TruncateForLog exposes truncateForLog for call sites that record
// content bodies on a span only in debug mode.
func TruncateForLog(s string, max int) string { return truncateForLog(s, max) }
