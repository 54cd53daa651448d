package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestHTTPMetrics_RecordRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newHTTPMetricsWithRegisterer(registry)

	m.RecordRequest("POST", "/checkout", "201", 42*time.Millisecond)
	m.RecordRequest("POST", "/checkout", "201", 10*time.Millisecond)
	m.RecordRequest("POST", "/checkout", "409", time.Millisecond)

	counter, err := m.requestsTotal.GetMetricWithLabelValues("POST", "/checkout", "201")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Fatalf("unexpected counter value: got=%v want=2", got)
	}
}

func TestHTTPMetrics_DoubleRegistrationReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newHTTPMetricsWithRegisterer(registry)
	second := newHTTPMetricsWithRegisterer(registry)

	if first.requestsTotal != second.requestsTotal {
		t.Fatal("repeated registration must reuse the existing collector")
	}
}
