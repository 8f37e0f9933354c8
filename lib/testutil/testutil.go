package testutil

import (
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spansOnce sync.Once
	spans     *tracetest.InMemoryExporter
)

// RecordSpans routes every span ended in this process into an in-memory
// exporter. The global provider can only be swapped in once, so tests using
// this must not run in parallel with each other.
func RecordSpans(t testing.TB) *tracetest.InMemoryExporter {
	spansOnce.Do(func() {
		spans = tracetest.NewInMemoryExporter()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans)))
	})
	spans.Reset()
	t.Cleanup(spans.Reset)
	return spans
}

// SpansNamed returns the recorded spans with the given name, oldest first.
func SpansNamed(exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStubs {
	var out tracetest.SpanStubs
	for _, span := range exporter.GetSpans() {
		if span.Name == name {
			out = append(out, span)
		}
	}
	return out
}

// Attribute returns the value of key on span, ok is false if it was never set.
func Attribute(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}
