package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context in its stored form, e.g. on an
// outbox row, so that work resumed later joins the originating trace.
type TraceContext struct {
	Parent string
	State  string
}

func CurrentTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier["traceparent"], State: carrier["tracestate"]}
}

func (tc TraceContext) Empty() bool {
	return tc.Parent == "" && tc.State == ""
}

// Into returns ctx carrying tc as its remote parent.
func (tc TraceContext) Into(ctx context.Context) context.Context {
	if tc.Empty() {
		return ctx
	}
	carrier := propagation.MapCarrier{
		"traceparent": tc.Parent,
		"tracestate":  tc.State,
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
