// Package metrics exposes Prometheus collectors for the capture pipeline.
//
// Collectors are registered on a caller-supplied registry so tests and
// embedded hosts never touch the global default registry. A nil *Metrics is
// valid everywhere and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pagecapture"

// Metrics groups the pipeline collectors.
type Metrics struct {
	FilesIngested   prometheus.Counter
	Duplicates      prometheus.Counter
	SkippedFiles    *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	PageVersions    prometheus.Counter
	StagedBytes     prometheus.Gauge
	StagedFiles     prometheus.Counter
	PurgedFiles     prometheus.Counter
	StagingRejected prometheus.Counter
}

// New builds the collectors and registers them on reg. A nil registerer
// yields collectors that are usable but never exported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hotfolder",
			Name:      "files_ingested_total",
			Help:      "Files ingested from the watch directory.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hotfolder",
			Name:      "duplicates_total",
			Help:      "Ingested files whose digest had already been seen.",
		}),
		SkippedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hotfolder",
			Name:      "files_skipped_total",
			Help:      "Files skipped during a scan, by reason.",
		}, []string{"reason"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hotfolder",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a single watch directory pass.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		PageVersions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "page_versions_total",
			Help:      "Page versions recorded.",
		}),
		StagedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "staging",
			Name:      "used_bytes",
			Help:      "Bytes held by non-purged staged files.",
		}),
		StagedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staging",
			Name:      "files_staged_total",
			Help:      "Files copied into the staging area.",
		}),
		PurgedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staging",
			Name:      "files_purged_total",
			Help:      "Staged files purged by retention or removal.",
		}),
		StagingRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staging",
			Name:      "capacity_rejections_total",
			Help:      "Stage requests refused because the area was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FilesIngested,
			m.Duplicates,
			m.SkippedFiles,
			m.ScanDuration,
			m.PageVersions,
			m.StagedBytes,
			m.StagedFiles,
			m.PurgedFiles,
			m.StagingRejected,
		)
	}
	return m
}

// Ingested records a successfully captured file.
func (m *Metrics) Ingested(duplicate bool) {
	if m == nil {
		return
	}
	m.FilesIngested.Inc()
	if duplicate {
		m.Duplicates.Inc()
	}
}

// Skipped records a file left for the next pass.
func (m *Metrics) Skipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedFiles.WithLabelValues(reason).Inc()
}

// ObserveScan records the duration of a pass that started at start.
func (m *Metrics) ObserveScan(start time.Time) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(time.Since(start).Seconds())
}

// VersionRecorded counts a new page version.
func (m *Metrics) VersionRecorded() {
	if m == nil {
		return
	}
	m.PageVersions.Inc()
}

// Staged records a staged copy and the new usage total.
func (m *Metrics) Staged(usedBytes int64) {
	if m == nil {
		return
	}
	m.StagedFiles.Inc()
	m.StagedBytes.Set(float64(usedBytes))
}

// Purged records purged files and the new usage total.
func (m *Metrics) Purged(count int, usedBytes int64) {
	if m == nil {
		return
	}
	m.PurgedFiles.Add(float64(count))
	m.StagedBytes.Set(float64(usedBytes))
}

// Rejected counts a capacity refusal.
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.StagingRejected.Inc()
}
