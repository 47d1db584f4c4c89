// Package exportmetrics records fetch and export lifecycle events as
// Prometheus metrics.
package exportmetrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-tableview/export"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "tableview"

// Hook implements export.MetricsHook.
type Hook struct {
	events   *prometheus.CounterVec
	rows     *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ export.MetricsHook = (*Hook)(nil)

// NewHook creates the collectors and registers them on reg.
func NewHook(reg prometheus.Registerer, namespace string) (*Hook, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	h := &Hook{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Fetch and export lifecycle events by outcome.",
		}, []string{"event", "format", "error_kind"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Records fetched or exported.",
		}, []string{"event", "format"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_bytes_total",
			Help:      "Bytes written by completed exports.",
		}, []string{"format"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Fetch and export durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event", "format"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{h.events, h.rows, h.bytes, h.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

// Emit records evt. Skipped exports count as events only.
func (h *Hook) Emit(ctx context.Context, evt export.MetricsEvent) error {
	_ = ctx
	if h == nil {
		return nil
	}
	format := string(evt.Format)
	h.events.WithLabelValues(evt.Name, format, string(evt.ErrorKind)).Inc()

	switch evt.Name {
	case "export.noop":
		return nil
	case "export.completed":
		h.bytes.WithLabelValues(format).Add(float64(evt.Bytes))
	}
	if evt.Rows > 0 {
		h.rows.WithLabelValues(evt.Name, format).Add(float64(evt.Rows))
	}
	if evt.Duration > 0 {
		h.duration.WithLabelValues(evt.Name, format).Observe(evt.Duration.Seconds())
	}
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
