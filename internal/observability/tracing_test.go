package observability

import (
	"context"
	"errors"
	"testing"

	"blogapi/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer(ServiceName)
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartSpan_Status(t *testing.T) {
	rec := withRecorder(t)
	ctx := context.Background()

	_, finish := StartSpan(ctx, "post", "create")
	finish(nil)
	_, finish = StartSpan(ctx, "post", "update")
	finish(models.NewNotFoundError("Post", "missing"))
	_, finish = StartSpan(ctx, "post", "toggle_like")
	finish(errors.New("db down"))

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "post.create", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Unset, spans[1].Status().Code, "4xx errors are not span failures")
	assert.Len(t, spans[1].Events(), 1)

	assert.Equal(t, codes.Error, spans[2].Status().Code)
	assert.Equal(t, "db down", spans[2].Status().Description)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}
