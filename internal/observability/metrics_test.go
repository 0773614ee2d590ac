package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveWriteRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}

	collector.ObserveWrite("write", 12, time.Now().Add(-10*time.Millisecond), nil)
	collector.ObserveWrite("write", 99, time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(collector.DatasetsWritten.WithLabelValues("write", "ok")); got != 1 {
		t.Fatalf("datasets_written_total{result=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.DatasetsWritten.WithLabelValues("write", "error")); got != 1 {
		t.Fatalf("datasets_written_total{result=error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.LastPixelCount); got != 12 {
		t.Fatalf("last_pixel_count = %v, want 12 (failed writes must not update it)", got)
	}
	if count := histogramSampleCount(t, reg, "losrays_write_duration_seconds", map[string]string{
		"operation": "write",
	}); count != 2 {
		t.Fatalf("write_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestObserveSampling(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	collector.ObserveSampling(12, 30)

	if got := testutil.ToFloat64(collector.RaysSampled); got != 12 {
		t.Fatalf("rays_sampled_total = %v, want 12", got)
	}
	if got := testutil.ToFloat64(collector.SamplesTotal); got != 360 {
		t.Fatalf("ray_samples_total = %v, want 360", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var collector *PipelineCollector
	collector.ObserveWrite("write", 1, time.Now(), nil)
	collector.ObserveSampling(1, 1)
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	second, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("second NewPipelineCollector: %v", err)
	}
	first.ObserveSampling(2, 1)
	if got := testutil.ToFloat64(second.RaysSampled); got != 2 {
		t.Fatalf("second collector rays_sampled_total = %v, want 2", got)
	}
}

func TestSummaryFlattensCountersAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	collector.ObserveWrite("rays", 6, time.Now(), nil)
	collector.ObserveSampling(6, 4)

	summary, err := collector.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := map[string]float64{
		"losrays_datasets_written_total{operation=rays,result=ok}": 1,
		"losrays_rays_sampled_total":                               6,
		"losrays_ray_samples_total":                                24,
		"losrays_last_pixel_count":                                 6,
	}
	for k, v := range want {
		if got, ok := summary[k]; !ok || got != v {
			t.Errorf("summary[%q] = %v (present=%v), want %v", k, got, ok, v)
		}
	}
	for k := range summary {
		if strings.HasPrefix(k, "losrays_write_duration_seconds") {
			t.Errorf("histograms must not appear in summary, found %q", k)
		}
	}
}

func TestMetricsHandlerExposesPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	collector.ObserveWrite("write", 3, time.Now(), nil)
	collector.ObserveSampling(3, 5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"losrays_datasets_written_total",
		"losrays_write_duration_seconds",
		"losrays_rays_sampled_total",
		"losrays_ray_samples_total",
		"losrays_last_pixel_count",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
