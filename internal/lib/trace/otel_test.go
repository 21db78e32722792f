package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromConfigLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line   string
		err    error
		errMsg string
		want   tracerProviderParams
	}{
		{
			line: "otel",
			want: defaultTracerProviderParams(),
		},
		{
			line: "otel=http://collector:4318/v1/traces",
			want: tracerProviderParams{
				proto: "http", endpoint: "collector:4318", urlPath: "/v1/traces",
				insecure: true, headers: map[string]string{},
			},
		},
		{
			line: "otel=https://collector:4317,proto=grpc,header.Authorization=Bearer x",
			want: tracerProviderParams{
				proto: "grpc", endpoint: "collector:4317", insecure: false,
				headers: map[string]string{"Authorization": "Bearer x"},
			},
		},
		{
			line: "otel,header.X-Team=browsers",
			want: tracerProviderParams{
				proto: "grpc", endpoint: "127.0.0.1:4317", insecure: true,
				headers: map[string]string{"X-Team": "browsers"},
			},
		},
		{line: "jaeger=localhost", err: ErrInvalidTracesOutput},
		{line: "otel=ftp://collector", err: ErrInvalidURLScheme},
		{line: "otel,proto=udp", err: ErrInvalidProto},
		{line: "otel=http://collector:4317/v1/traces,proto=grpc", err: ErrInvalidGRPCWithURLPath},
		{line: "otel,sampling=0.5", errMsg: "unknown otel config key sampling"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.line, func(t *testing.T) {
			t.Parallel()

			got, err := paramsFromConfigLine(tc.line)
			switch {
			case tc.err != nil:
				require.ErrorIs(t, err, tc.err)
			case tc.errMsg != "":
				require.EqualError(t, err, tc.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestFromConfigLineNone(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"", "none"} {
		tp, err := FromConfigLine(context.Background(), line)
		require.NoError(t, err)

		_, span := tp.Tracer().Start(context.Background(), "capture")
		assert.False(t, span.SpanContext().IsValid())
		span.End()
		require.NoError(t, tp.Shutdown(context.Background()))
	}
}

func TestFromConfigLineOTLP(t *testing.T) {
	t.Parallel()

	// exporters connect lazily, so building one needs no collector
	tp, err := FromConfigLine(context.Background(), "otel=http://127.0.0.1:1/v1/traces")
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "capture")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tp.Shutdown(ctx)
}
