package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracer_RejectsSampleRate(t *testing.T) {
	_, err := InitTracer(context.Background(), SpanConfig{ServiceName: "bandcluster", SampleRate: 1.5})
	assert.Error(t, err)
	_, err = InitTracer(context.Background(), SpanConfig{ServiceName: "bandcluster", SampleRate: -0.1})
	assert.Error(t, err)
}

func TestStartSpan_NoProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "kmeans.pass", attribute.Int("pass", 1))
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.SetAttributes(attribute.Int("samples", 10))
	span.SetError(errors.New("boom"))
	span.SetError(nil)
	assert.Equal(t, "", span.GetTraceID())
	span.End()
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *TraceSpan
	span.SetAttributes(attribute.String("k", "v"))
	span.SetError(errors.New("boom"))
	span.End()
	assert.Equal(t, "", span.GetTraceID())
}

func TestInitTracer_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shutdown, err := InitTracer(ctx, SpanConfig{
		ServiceName:    "bandcluster-test",
		ServiceVersion: "0.0.1",
		SampleRate:     1.0,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := StartSpan(ctx, "bandcluster.run")
	assert.Len(t, span.GetTraceID(), 32)
	span.End()

	assert.NoError(t, shutdown(ctx))
}
