package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/skinup/pkg/domain"
)

const instrumentationName = "github.com/osvaldoandrade/skinup"

// Span attribute keys shared by the client, the tracker and the status server.
const (
	AttrRunID      = attribute.Key("skinup.run_id")
	AttrJobID      = attribute.Key("skinup.job_id")
	AttrErrorKind  = attribute.Key("skinup.error_kind")
	AttrPollStatus = attribute.Key("skinup.poll_status")
)

// propagator carries only W3C trace context. MineSkin never receives baggage.
var propagator propagation.TextMapPropagator = propagation.TraceContext{}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartClient starts a client span for one call to the skin service.
func StartClient(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// Job tags a span with the job handle; an empty handle adds nothing.
func Job(span trace.Span, job domain.JobHandle) {
	if job != "" {
		span.SetAttributes(AttrJobID.String(job.String()))
	}
}

// Finish sets the span status from err. Failed spans also carry the error
// kind so runs can be grouped by failure class.
func Finish(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if kind := domain.KindOf(err); kind != "" {
		span.SetAttributes(AttrErrorKind.String(string(kind)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// InjectHeaders writes the traceparent of ctx into h.
func InjectHeaders(ctx context.Context, h http.Header) {
	if h == nil {
		return
	}
	propagator.Inject(ctx, propagation.HeaderCarrier(h))
}

// ExtractHeaders joins the trace context sent by a status-server caller.
func ExtractHeaders(ctx context.Context, h http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(h))
}
