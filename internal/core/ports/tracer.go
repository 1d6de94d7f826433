package ports

import "context"

// Span is a single traced operation.
type Span interface {
	// SetAttribute attaches a key/value attribute to the span.
	SetAttribute(key string, value any)
	// RecordError records an error against the span.
	RecordError(err error)
	// End completes the span.
	End()
}

// Tracer creates spans around cache operations. The OpenTelemetry adapter is
// the default implementation; a no-op tracer is used when tracing is disabled.
//
//go:generate mockgen -source=tracer.go -destination=mocks/mock_tracer.go -package=mocks
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}
