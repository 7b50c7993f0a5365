package ports

import (
	"context"
	"io"
)

// Tracer is the Statistics & Reporting component's (C9) tracing seam.
// Each leaf task execution is wrapped in a span; EmitPlan records the
// materialized build plan once per run.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	EmitPlan(ctx context.Context, taskNames []string, dependencies map[string][]string, targets []string)
	Shutdown(ctx context.Context) error
}

// Span is a single traced operation (a task execution). It doubles as
// an io.Writer so task
// output can be streamed directly into span events/metrics.
type Span interface {
	io.Writer
	End()
	RecordError(err error)
	SetAttribute(key string, value any)
}

// SpanConfig carries options applied by SpanOption functions.
type SpanConfig struct {
	Kind string
}

// SpanOption configures a span at Start time.
type SpanOption func(*SpanConfig)

// WithKind tags a span with a kind label (e.g. "task").
func WithKind(kind string) SpanOption {
	return func(c *SpanConfig) { c.Kind = kind }
}
