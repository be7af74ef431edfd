package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

const (
	defaultServiceName = "skinup"
	defaultEndpoint    = "localhost:4317"
)

// Config is the tracing block of the skinup config file.
type Config struct {
	Enabled     bool
	ServiceName string

	OTLPEndpoint string
	OTLPInsecure bool

	// SampleRatio in (0, 1]; anything else samples every run.
	SampleRatio float64
}

// withFallbacks fills unset fields from the standard OTEL_* variables and
// the skinup defaults.
func (c Config) withFallbacks() Config {
	c.ServiceName = firstSet(c.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), defaultServiceName)
	c.OTLPEndpoint = sanitizeEndpoint(firstSet(c.OTLPEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), defaultEndpoint))
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		c.OTLPInsecure = parseBool(v)
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		c.SampleRatio = 1
	}
	return c
}

func (c Config) exporterOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.OTLPEndpoint)}
	if c.OTLPInsecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

func noopShutdown(context.Context) error { return nil }

// Setup installs the W3C propagator and, when enabled, an OTLP/gRPC tracer
// provider. Exporter failures are logged and leave tracing off; an upload is
// never refused because of them. The returned func is always non-nil.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetTextMapPropagator(propagator)
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	cfg = cfg.withFallbacks()

	exp, err := otlptracegrpc.New(ctx, cfg.exporterOptions()...)
	if err != nil {
		logger.Warn("otel exporter init failed; tracing disabled", "endpoint", cfg.OTLPEndpoint, "err", err)
		return noopShutdown, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		logger.Warn("otel resource merge failed", "err", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	logger.Debug("tracing enabled", "service", cfg.ServiceName, "endpoint", cfg.OTLPEndpoint, "sample_ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

// ParseSampleRatio reads a sampling ratio from config or env. Empty means
// unset (0).
func ParseSampleRatio(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("sample ratio %q is not a number", v)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("sample ratio %v is outside [0, 1]", f)
	}
	return f, nil
}

// sanitizeEndpoint turns an OTLP URL into the host:port the gRPC exporter wants.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSuffix(raw, "/")
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
