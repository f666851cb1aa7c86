package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitWritesSpansToFile(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := filepath.Join(t.TempDir(), "spans.json")
	tp, shutdown, err := Init("formvis", "test", path)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "activiti.GetTask")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "activiti.GetTask")
	assert.Contains(t, string(data), "formvis")
}

func TestInitBadPath(t *testing.T) {
	_, _, err := Init("formvis", "test", filepath.Join(t.TempDir(), "missing", "spans.json"))
	assert.Error(t, err)
}

func TestNewProviderCarriesResource(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewProvider("formvis", "1.2.3", exporter)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "eval")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := spans[0].Resource.Attributes()
	assert.Contains(t, attrs, attribute.String("service.version", "1.2.3"))
	require.NoError(t, tp.Shutdown(context.Background()))
}
