package observability

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// PipelineCollector bundles Prometheus metrics for ray preparation and
// query-point dataset writes.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	DatasetsWritten *prometheus.CounterVec
	WriteDuration   *prometheus.HistogramVec
	RaysSampled     prometheus.Counter
	SamplesTotal    prometheus.Counter
	LastPixelCount  prometheus.Gauge
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	written, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "losrays_datasets_written_total",
		Help: "Query-point dataset writes, labeled by operation and result.",
	}, []string{"operation", "result"}), "losrays_datasets_written_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "losrays_write_duration_seconds",
		Help:    "Time spent writing query-point datasets.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"operation"}), "losrays_write_duration_seconds")
	if err != nil {
		return nil, err
	}

	rays, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "losrays_rays_sampled_total",
		Help: "Rays discretised into sample points.",
	}), "losrays_rays_sampled_total")
	if err != nil {
		return nil, err
	}
	samples, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "losrays_ray_samples_total",
		Help: "Sample points generated along rays.",
	}), "losrays_ray_samples_total")
	if err != nil {
		return nil, err
	}
	pixels, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "losrays_last_pixel_count",
		Help: "Ground pixels in the most recently written dataset.",
	}), "losrays_last_pixel_count")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:        gatherer,
		DatasetsWritten: written,
		WriteDuration:   durations,
		RaysSampled:     rays,
		SamplesTotal:    samples,
		LastPixelCount:  pixels,
	}, nil
}

// ObserveWrite records one dataset write. A nil collector is a no-op so
// library callers can pass metrics optionally.
func (c *PipelineCollector) ObserveWrite(operation string, pixels int, start time.Time, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.DatasetsWritten.WithLabelValues(operation, result).Inc()
	c.WriteDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		c.LastPixelCount.Set(float64(pixels))
	}
}

// ObserveSampling records rays discretised into samplesPerRay points each.
func (c *PipelineCollector) ObserveSampling(rays, samplesPerRay int) {
	if c == nil {
		return
	}
	c.RaysSampled.Add(float64(rays))
	c.SamplesTotal.Add(float64(rays * samplesPerRay))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Summary flattens counter and gauge values of the losrays_* families into
// "name{label=value,...}" keys, for an end-of-run log line.
func (c *PipelineCollector) Summary() (map[string]float64, error) {
	families, err := c.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				v = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			out[mf.GetName()+labelSuffix(m.GetLabel())] = v
		}
	}
	return out, nil
}

func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for _, lp := range labels {
		pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
	}
	sort.Strings(pairs)
	s := "{"
	for i, p := range pairs {
		if i > 0 {
			s += ","
		}
		s += p
	}
	return s + "}"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
