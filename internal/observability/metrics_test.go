package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestInitMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := InitMetrics(mp)
	if err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}
	if metrics.HTTPRequestCount == nil || metrics.HTTPRequestDuration == nil || metrics.HTTPResponseSize == nil {
		t.Error("expected HTTP instruments to be initialized")
	}
	if metrics.LogEventsCaptured == nil || metrics.LogEventsEvicted == nil || metrics.StreamDropped == nil {
		t.Error("expected capture instruments to be initialized")
	}

	ctx := context.Background()
	metrics.LogEventsCaptured.Add(ctx, 3)
	metrics.LogEventsEvicted.Add(ctx, 1)
	metrics.StreamDropped.Add(ctx, 2)

	sums := collectSums(t, reader)
	want := map[string]int64{
		"logwatch.events.captured": 3,
		"logwatch.events.evicted":  1,
		"logwatch.stream.dropped":  2,
	}
	for name, v := range want {
		if sums[name] != v {
			t.Errorf("%s = %d, want %d", name, sums[name], v)
		}
	}
}

func TestMiddlewareRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := InitMetrics(mp)
	if err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}

	tel := &Telemetry{
		config:        NewConfig(),
		meterProvider: mp,
		metrics:       metrics,
	}

	handler := HTTPMiddleware(tel, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/admin/v1/logging/levels", nil))
	}

	if got := collectSums(t, reader)["http.server.request_count"]; got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := InitMetrics(mp)
	if err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}
	tel := &Telemetry{config: NewConfig(), meterProvider: mp, metrics: metrics}

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(tel, "test"))
	r.Put("/loggers/{name}", func(w http.ResponseWriter, r *http.Request) {})
	for _, name := range []string{"a", "b", "c.d"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/loggers/"+name, nil))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request_count" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			if len(sum.DataPoints) != 1 {
				t.Fatalf("expected one series, got %d", len(sum.DataPoints))
			}
			route, _ := sum.DataPoints[0].Attributes.Value(AttrHTTPRoute)
			if route.AsString() != "/loggers/{name}" {
				t.Errorf("route = %q, want /loggers/{name}", route.AsString())
			}
			return
		}
	}
	t.Fatal("request count metric not found")
}
