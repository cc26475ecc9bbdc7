// Package observability exports decoding statistics as Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/bblgate/internal/blackbox"
)

// DecodeMetrics holds the metrics of one bblctl invocation on a private
// registry, so several runs in one process do not collide.
type DecodeMetrics struct {
	Registry *prometheus.Registry

	Frames       *prometheus.CounterVec
	Events       *prometheus.CounterVec
	EventsFailed prometheus.Counter
	BytesSkipped prometheus.Counter
	DataBytes    prometheus.Counter
	Resyncs      prometheus.Counter
	Truncated    prometheus.Gauge
	EndOfLog     prometheus.Gauge
	DecodeTime   prometheus.Histogram
}

func NewDecodeMetrics() *DecodeMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &DecodeMetrics{
		Registry: reg,
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bbl_frames_total",
			Help: "Frames attempted, by frame type and outcome",
		}, []string{"type", "outcome"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bbl_events_total",
			Help: "Decoded events by name",
		}, []string{"event"}),
		EventsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "bbl_events_failed_total",
			Help: "Event frames that could not be decoded",
		}),
		BytesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "bbl_bytes_skipped_total",
			Help: "Bytes discarded while resynchronising",
		}),
		DataBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "bbl_data_bytes_total",
			Help: "Bytes of frame data in the decoded logs",
		}),
		Resyncs: f.NewCounter(prometheus.CounterOpts{
			Name: "bbl_resyncs_total",
			Help: "Times the decoder lost frame alignment",
		}),
		Truncated: f.NewGauge(prometheus.GaugeOpts{
			Name: "bbl_truncated",
			Help: "1 when the last decode stopped at the resync window",
		}),
		EndOfLog: f.NewGauge(prometheus.GaugeOpts{
			Name: "bbl_end_of_log",
			Help: "1 when the last decode reached a log end event",
		}),
		DecodeTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bbl_decode_duration_seconds",
			Help:    "Wall time of a decoding pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Record adds the counters of a finished pass.
func (m *DecodeMetrics) Record(st blackbox.Stats, events []blackbox.Event) {
	for ft, ts := range st.ByType {
		m.Frames.WithLabelValues(string(rune(ft)), "decoded").Add(float64(ts.Decoded))
		m.Frames.WithLabelValues(string(rune(ft)), "failed").Add(float64(ts.Failed))
		m.Frames.WithLabelValues(string(rune(ft)), "rejected").Add(float64(ts.Rejected))
	}
	for _, ev := range events {
		m.Events.WithLabelValues(ev.Name).Inc()
	}
	m.EventsFailed.Add(float64(st.EventsFailed))
	m.BytesSkipped.Add(float64(st.BytesSkipped))
	m.DataBytes.Add(float64(st.DataBytes))
	m.Resyncs.Add(float64(st.Resyncs))
	m.Truncated.Set(boolGauge(st.Truncated))
	m.EndOfLog.Set(boolGauge(st.EndOfLog))
}

func (m *DecodeMetrics) ObserveDecode(start time.Time) {
	m.DecodeTime.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *DecodeMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
