package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Standard span names for the handshake and routing paths.
const (
	SpanHandshakeInitiator = "vcsms.handshake.initiator"
	SpanHandshakeResponder = "vcsms.handshake.responder"
	SpanRoute              = "vcsms.route"
	SpanDispatch           = "vcsms.dispatch"
)

var tracer = otel.Tracer("vcsms")

// StartSpan starts a span under the shared vcsms tracer. Callers end it and
// record the outcome with EndSpan.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
