package trace

import "context"

type tracerKey struct{}

type parentKey struct{}

// FromContext returns the tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx. A nil tracer is stored as Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// ParentSpan returns the ID of the span enclosing ctx, or 0 at the root.
func ParentSpan(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(parentKey{}).(uint64)
	return id
}

// StartSpan opens a span under the span recorded in ctx and returns a
// context in which it is the parent. Inert spans leave ctx unchanged.
func StartSpan(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	span := Begin(FromContext(ctx), scope, name, ParentSpan(ctx))
	if span.ID() == 0 {
		return span, ctx
	}
	return span, context.WithValue(ctx, parentKey{}, span.ID())
}
