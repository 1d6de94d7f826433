package telemetry

import (
	"context"

	"github.com/accelforge/enginecache/internal/core/ports"
)

// NoopTracer discards all spans. Used in tests and when tracing is disabled.
type NoopTracer struct{}

// NewNoopTracer creates a tracer that discards everything.
func NewNoopTracer() *NoopTracer {
	return &NoopTracer{}
}

// Start returns the context unchanged and a no-op span.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)       {}
func (noopSpan) End()                    {}

var _ ports.Tracer = (*NoopTracer)(nil)
