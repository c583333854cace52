package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	LikesFlushed     prometheus.Counter
	LikeBatches      prometheus.Counter
	SuperLikes       *prometheus.CounterVec
	Toggles          *prometheus.CounterVec
	ActiveWidgets    prometheus.Gauge
	UpstreamDuration *prometheus.HistogramVec
}

// NewMetrics registers the widget collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LikesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "likebutton",
			Name:      "likes_flushed_total",
			Help:      "Likes sent upstream after debounce coalescing.",
		}),
		LikeBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "likebutton",
			Name:      "like_batches_total",
			Help:      "Debounced like submissions issued.",
		}),
		SuperLikes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "likebutton",
			Name:      "super_likes_total",
			Help:      "Super-like submissions by result.",
		}, []string{"result"}),
		Toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "likebutton",
			Name:      "toggles_total",
			Help:      "Bookmark and follow toggles by kind and result.",
		}, []string{"kind", "result"}),
		ActiveWidgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "likebutton",
			Name:      "active_widgets",
			Help:      "Widgets currently held by the registry.",
		}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "likebutton",
			Name:      "upstream_request_duration_seconds",
			Help:      "LikeCoin API call latency by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(
		m.LikesFlushed,
		m.LikeBatches,
		m.SuperLikes,
		m.Toggles,
		m.ActiveWidgets,
		m.UpstreamDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpstream records one LikeCoin API call.
func (m *Metrics) ObserveUpstream(op, outcome string, elapsed time.Duration) {
	m.UpstreamDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

// RecordLikeFlush counts one debounced like submission carrying count likes.
func (m *Metrics) RecordLikeFlush(count int) {
	m.LikeBatches.Inc()
	m.LikesFlushed.Add(float64(count))
}

// RecordSuperLike counts one super-like submission.
func (m *Metrics) RecordSuperLike(result string) {
	m.SuperLikes.WithLabelValues(result).Inc()
}

// RecordToggle counts one bookmark or follow toggle.
func (m *Metrics) RecordToggle(kind, result string) {
	m.Toggles.WithLabelValues(kind, result).Inc()
}
