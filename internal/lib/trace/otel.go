// Package trace builds the OpenTelemetry tracer provider foxshot hands to the
// capture runner and the Marionette client.
package trace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/foxshot/lib/consts"
)

const (
	serviceName = "foxshot"

	// TracerName is the instrumentation scope of every foxshot span.
	TracerName = "github.com/liuxd6825/foxshot"
)

var (
	// ErrInvalidTracesOutput indicates that the defined traces output is not valid.
	ErrInvalidTracesOutput = errors.New("invalid traces output")
	// ErrInvalidProto indicates that the defined exporter protocol is not valid.
	ErrInvalidProto = errors.New("invalid protocol")
	// ErrInvalidURLScheme indicates that the defined exporter URL scheme is not valid.
	ErrInvalidURLScheme = errors.New("invalid URL scheme")
	// ErrInvalidGRPCWithURLPath indicates that an exporter using gRPC protocol does not support URL path.
	ErrInvalidGRPCWithURLPath = errors.New("grpc protocol does not support URL path")
)

// TracerProvider wraps a trace.TracerProvider together with the function
// that flushes and stops its pipeline.
type TracerProvider struct {
	trace.TracerProvider
	shutdown func(ctx context.Context) error
}

// Tracer returns the foxshot tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.TracerProvider.Tracer(TracerName, trace.WithInstrumentationVersion(consts.Version))
}

// Shutdown flushes pending spans and releases the exporter. Later spans are
// dropped.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.shutdown(ctx)
}

type tracerProviderParams struct {
	proto    string
	endpoint string
	urlPath  string
	insecure bool
	headers  map[string]string
}

func defaultTracerProviderParams() tracerProviderParams {
	return tracerProviderParams{
		proto:    "grpc",
		endpoint: "127.0.0.1:4317",
		insecure: true,
		headers:  make(map[string]string),
	}
}

// NewNoopTracerProvider returns a provider whose spans go nowhere.
func NewNoopTracerProvider() *TracerProvider {
	prov := noop.NewTracerProvider()
	otel.SetTracerProvider(prov)

	return &TracerProvider{
		TracerProvider: prov,
		shutdown:       func(context.Context) error { return nil },
	}
}

// FromConfigLine builds the provider selected by --traces-output.
//
// "none" or an empty line gives a noop provider. Otherwise the format is
// otel[=<url>][,proto=grpc|http][,header.<name>=<value>], defaulting to gRPC
// on 127.0.0.1:4317.
//
// Example: otel=http://127.0.0.1:4318/v1/traces,header.Authorization=token
func FromConfigLine(ctx context.Context, line string) (*TracerProvider, error) {
	if line == "" || line == "none" {
		return NewNoopTracerProvider(), nil
	}

	params, err := paramsFromConfigLine(line)
	if err != nil {
		return nil, err
	}

	return newTracerProvider(ctx, params)
}

func newTracerProvider(ctx context.Context, params tracerProviderParams) (*TracerProvider, error) {
	client, err := newClient(params)
	if err != nil {
		return nil, fmt.Errorf("creating the trace exporter client: %w", err)
	}

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("creating the trace exporter: %w", err)
	}

	prov := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(consts.Version),
		)),
	)

	return &TracerProvider{
		TracerProvider: prov,
		shutdown:       prov.Shutdown,
	}, nil
}

func newClient(params tracerProviderParams) (otlptrace.Client, error) {
	switch params.proto {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(params.endpoint),
			otlptracehttp.WithHeaders(params.headers),
		}
		if params.urlPath != "" {
			opts = append(opts, otlptracehttp.WithURLPath(params.urlPath))
		}
		if params.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...), nil
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(params.endpoint),
			otlptracegrpc.WithHeaders(params.headers),
		}
		if params.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.NewClient(opts...), nil
	default:
		return nil, ErrInvalidProto
	}
}

func paramsFromConfigLine(line string) (tracerProviderParams, error) {
	params := defaultTracerProviderParams()

	output, _, _ := strings.Cut(line, "=")
	if output != "otel" && !strings.HasPrefix(line, "otel,") {
		return params, fmt.Errorf("%w %q", ErrInvalidTracesOutput, output)
	}

	for _, part := range strings.Split(line, ",") {
		key, value, _ := strings.Cut(part, "=")
		switch {
		case key == "otel":
			if value == "" {
				continue
			}
			if err := params.parseURL(value); err != nil {
				return params, fmt.Errorf("couldn't parse the otel URL: %w", err)
			}
		case key == "proto":
			if value != "http" && value != "grpc" {
				return params, fmt.Errorf("couldn't parse the otel proto: %w: %q", ErrInvalidProto, value)
			}
			params.proto = value
		case strings.HasPrefix(key, "header."):
			params.headers[strings.TrimPrefix(key, "header.")] = value
		default:
			return params, fmt.Errorf("unknown otel config key %s", key)
		}
	}

	if params.proto == "grpc" && params.urlPath != "" {
		return params, ErrInvalidGRPCWithURLPath
	}

	return params, nil
}

// parseURL takes the endpoint from an http(s) URL. Giving a URL switches the
// default protocol to http, a later proto=grpc switches it back.
func (p *tracerProviderParams) parseURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidURLScheme, u.Scheme)
	}

	p.proto = "http"
	p.endpoint = u.Host
	p.urlPath = u.Path
	p.insecure = u.Scheme == "http"

	return nil
}
