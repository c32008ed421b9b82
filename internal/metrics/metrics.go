// Package metrics records batch annotation statistics in a Prometheus
// registry that can be exported as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "isodist"

// Status is the outcome of one library entry.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
)

// Recorder collects per-entry outcomes for one annotate run. It is safe for
// concurrent use.
type Recorder struct {
	registry  *prometheus.Registry
	entries   *prometheus.CounterVec
	duration  prometheus.Histogram
	peaks     prometheus.Histogram
	lastRun   prometheus.Gauge
	chunkTime prometheus.Histogram
}

// New creates a recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		entries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Library entries processed, by outcome.",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "envelope_duration_seconds",
			Help:      "Time to compute one isotopic envelope.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		peaks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "envelope_peaks",
			Help:      "Peaks kept per written envelope after filtering.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		chunkTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Time to compute and write one chunk of entries.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last annotate run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Entry records the outcome of one entry.
func (r *Recorder) Entry(status Status) {
	r.entries.WithLabelValues(string(status)).Inc()
}

// Envelope records a computed envelope's compute time and peak count.
func (r *Recorder) Envelope(elapsed time.Duration, peaks int) {
	r.duration.Observe(elapsed.Seconds())
	r.peaks.Observe(float64(peaks))
}

// Chunk records the time spent on one chunk.
func (r *Recorder) Chunk(elapsed time.Duration) {
	r.chunkTime.Observe(elapsed.Seconds())
}

// Count returns the number of entries recorded with status.
func (r *Recorder) Count(status Status) (float64, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return 0, fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if mf.GetName() != namespace+"_entries_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == string(status) {
					return m.GetCounter().GetValue(), nil
				}
			}
		}
	}
	return 0, nil
}

// WriteTextfile stamps the run's finish time and writes every metric to
// path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	r.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
