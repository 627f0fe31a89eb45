// Package metrics exposes Prometheus collectors for a link run. Each run gets
// its own registry, written out as a node_exporter textfile when the run ends.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

// Flush reasons.
const (
	FlushPeriodic = "periodic"
	FlushFinal    = "final"
)

// Write targets for WriteError.
const (
	TargetStore      = "store"
	TargetOverflow   = "overflow"
	TargetCheckpoint = "checkpoint"
	TargetMirror     = "mirror"
)

// Recorder holds the collectors of one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal        *prometheus.CounterVec
	probeDuration      *prometheus.HistogramVec
	headerLatency      prometheus.Histogram
	recordedTotal      prometheus.Counter
	overflowTotal      prometheus.Counter
	flushesTotal       *prometheus.CounterVec
	documentsTotal     *prometheus.CounterVec
	writeErrorsTotal   *prometheus.CounterVec
	lastRunCompletedTS prometheus.Gauge
}

// New builds a Recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xllinks_probes_total",
				Help: "Links probed, labeled by outcome class and HTTP status class.",
			},
			[]string{"class", "status_class"},
		),
		probeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xllinks_probe_duration_seconds",
				Help:    "Total probe latency, labeled by outcome class.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"class"},
		),
		headerLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "xllinks_probe_headers_seconds",
				Help:    "Time until response headers arrived, for probes that got a response.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		recordedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xllinks_records_total",
			Help: "Links appended to the result workbook.",
		}),
		overflowTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "xllinks_overflow_total",
			Help: "Links diverted to the retry list.",
		}),
		flushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xllinks_store_flushes_total",
				Help: "Workbook saves, labeled by reason.",
			},
			[]string{"reason"},
		),
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xllinks_documents_total",
				Help: "Manifest entries seen, labeled by result.",
			},
			[]string{"result"},
		),
		writeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xllinks_write_errors_total",
				Help: "Failed writes, labeled by target.",
			},
			[]string{"target"},
		),
		lastRunCompletedTS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xllinks_last_run_completed_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry (for tests and exporters).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveProbe records one probe outcome.
func (r *Recorder) ObserveProbe(outcome linkcheck.ProbeOutcome) {
	if r == nil {
		return
	}
	class := string(outcome.Class)
	r.probesTotal.WithLabelValues(class, StatusClass(outcome.StatusCode)).Inc()
	r.probeDuration.WithLabelValues(class).Observe(outcome.Total.Seconds())
	if outcome.HeadersAfter > 0 {
		r.headerLatency.Observe(outcome.HeadersAfter.Seconds())
	}
}

// ObserveRecorded counts a link appended to the store.
func (r *Recorder) ObserveRecorded() {
	if r == nil {
		return
	}
	r.recordedTotal.Inc()
}

// ObserveOverflow counts a link sent to the retry list.
func (r *Recorder) ObserveOverflow() {
	if r == nil {
		return
	}
	r.overflowTotal.Inc()
}

// ObserveFlush counts a workbook save.
func (r *Recorder) ObserveFlush(reason string) {
	if r == nil {
		return
	}
	r.flushesTotal.WithLabelValues(reason).Inc()
}

// ObserveDocument counts a manifest entry by result ("processed", "skipped", "failed").
func (r *Recorder) ObserveDocument(result string) {
	if r == nil {
		return
	}
	r.documentsTotal.WithLabelValues(result).Inc()
}

// ObserveWriteError counts a failed write to target.
func (r *Recorder) ObserveWriteError(target string) {
	if r == nil {
		return
	}
	r.writeErrorsTotal.WithLabelValues(target).Inc()
}

// MarkCompleted stamps the completion gauge.
func (r *Recorder) MarkCompleted(at time.Time) {
	if r == nil {
		return
	}
	r.lastRunCompletedTS.Set(float64(at.Unix()))
}

// WriteTextfile writes all collectors to path atomically in the text
// exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// StatusClass groups HTTP status codes; 0 (no response) maps to "none".
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "none"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// SanitizeSite extracts a lowercase hostname for log fields.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
