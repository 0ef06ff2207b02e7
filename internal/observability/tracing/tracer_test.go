package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestPurpose: Validates that spans reach the configured exporter.
// Scope: Unit Test
// Expected: One exported span with the started name after a flush.
// Test Case ID: TRC-01
func TestTracer_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	ctx := context.Background()

	tr, err := New(ctx, Config{
		Enabled:        true,
		ServiceName:    "eventboard-test",
		ServiceVersion: "test",
		Exporter:       exporter,
	})
	require.NoError(t, err)

	_, span := tr.Start(ctx, "build_ability")
	span.End()

	require.NoError(t, tr.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "build_ability", spans[0].Name)

	require.NoError(t, tr.Shutdown(ctx))
}

// TestPurpose: Validates that a disabled tracer is a usable no-op.
// Scope: Unit Test
// Expected: Spans are not recording and shutdown succeeds.
// Test Case ID: TRC-02
func TestTracer_Disabled(t *testing.T) {
	tr, err := New(context.Background(), Config{Enabled: false, ServiceName: "eventboard-test"})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, tr.Shutdown(context.Background()))
}
