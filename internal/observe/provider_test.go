package observe_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/fearkeeper/internal/observe"
)

// retainingExporter keeps spans across Shutdown so they can be inspected
// after the provider flushed them.
type retainingExporter struct{ *tracetest.InMemoryExporter }

func (retainingExporter) Shutdown(context.Context) error { return nil }

// InitProvider replaces process-wide providers; this test restores them and
// must not run in parallel with the other global-state tests.
func TestInitProvider(t *testing.T) {
	origTP, origMP, origProp := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
		otel.SetTextMapPropagator(origProp)
	})

	exp := tracetest.NewInMemoryExporter()
	shutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: "v-test",
		TraceExporter:  retainingExporter{exp},
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.ToolCalls.Add(context.Background(), 1, observe.Attr("tool", "get_fear"))

	_, span := observe.StartSpan(context.Background(), "provider-test")
	span.End()

	rec := httptest.NewRecorder()
	observe.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"go_goroutines", "fearkeeper_tool_calls"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics lacks %s", want)
		}
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "provider-test" {
		t.Fatalf("exported spans = %v", spans)
	}
	var version string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.version" {
			version = kv.Value.AsString()
		}
	}
	if version != "v-test" {
		t.Errorf("service.version = %q", version)
	}
}
