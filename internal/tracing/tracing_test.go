package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/skinup/pkg/domain"
)

func TestSanitizeEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"localhost:4317", "localhost:4317"},
		{"collector:4317/", "collector:4317"},
		{"http://collector:4317", "collector:4317"},
		{"https://otel.example.com:443/v1/traces", "otel.example.com:443"},
	}
	for _, tt := range tests {
		if got := sanitizeEndpoint(tt.in); got != tt.want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSampleRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "0.25", want: 0.25},
		{in: " 1 ", want: 1},
		{in: "0", want: 0},
		{in: "bogus", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: "-0.1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSampleRatio(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSampleRatio(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSampleRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithFallbacks(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	got := Config{SampleRatio: 3}.withFallbacks()
	if got.ServiceName != "skinup" {
		t.Errorf("ServiceName = %q", got.ServiceName)
	}
	if got.OTLPEndpoint != "collector:4317" {
		t.Errorf("OTLPEndpoint = %q", got.OTLPEndpoint)
	}
	if !got.OTLPInsecure {
		t.Error("expected insecure from env")
	}
	if got.SampleRatio != 1 {
		t.Errorf("SampleRatio = %v, want 1", got.SampleRatio)
	}

	got = Config{ServiceName: "uploader", OTLPEndpoint: "otel:4317", SampleRatio: 0.5}.withFallbacks()
	if got.ServiceName != "uploader" || got.OTLPEndpoint != "otel:4317" || got.SampleRatio != 0.5 {
		t.Errorf("explicit values overridden: %+v", got)
	}
}

func TestSetupDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInjectHeadersSendsOnlyTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	t.Cleanup(func() { otel.SetTextMapPropagator(propagator) })

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	member, err := baggage.NewMember("user", "steve")
	if err != nil {
		t.Fatal(err)
	}
	bag, err := baggage.New(member)
	if err != nil {
		t.Fatal(err)
	}
	ctx := baggage.ContextWithBaggage(context.Background(), bag)
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	h := http.Header{}
	InjectHeaders(ctx, h)
	if h.Get("traceparent") == "" {
		t.Error("expected traceparent header")
	}
	if h.Get("baggage") != "" {
		t.Errorf("baggage leaked: %q", h.Get("baggage"))
	}

	InjectHeaders(ctx, nil)
}

func TestExtractHeadersJoinsRemoteTrace(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	sc := trace.SpanContextFromContext(ExtractHeaders(context.Background(), h))
	if !sc.IsRemote() || sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("span context = %+v", sc)
	}
}

func TestFinishRecordsKind(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, okSpan := tp.Tracer("test").Start(context.Background(), "ok")
	Job(okSpan, "job-42")
	Finish(okSpan, nil)
	okSpan.End()

	_, badSpan := tp.Tracer("test").Start(context.Background(), "bad")
	Job(badSpan, "")
	Finish(badSpan, domain.NewError("poll", domain.KindProtocol, errors.New("bad body")))
	badSpan.End()

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("ok span status = %v", ended[0].Status())
	}
	if !hasAttr(ended[0].Attributes(), AttrJobID, "job-42") {
		t.Errorf("ok span attrs = %v", ended[0].Attributes())
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("bad span status = %v", ended[1].Status())
	}
	if !hasAttr(ended[1].Attributes(), AttrErrorKind, string(domain.KindProtocol)) {
		t.Errorf("bad span attrs = %v", ended[1].Attributes())
	}
	for _, kv := range ended[1].Attributes() {
		if kv.Key == AttrJobID {
			t.Error("empty job handle should not be recorded")
		}
	}
	if len(ended[1].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func hasAttr(attrs []attribute.KeyValue, key attribute.Key, want string) bool {
	for _, kv := range attrs {
		if kv.Key == key && kv.Value.AsString() == want {
			return true
		}
	}
	return false
}
