// Package metrics records batch-run counters in a private Prometheus registry and
// writes them out in the node-exporter textfile format at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

// Recorder holds the run metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	reg *prometheus.Registry

	// Downloads by artifact kind ("registry", "statements") and result ("ok", "failed", "skipped").
	Downloads *prometheus.CounterVec

	// Archive extractions by result.
	Extractions *prometheus.CounterVec

	// Statement files by load outcome ("loaded", "skipped", "failed").
	Files *prometheus.CounterVec

	// Rows written per table.
	Rows *prometheus.CounterVec

	// Phase outcome (1 success, 0 failure), duration and completion time.
	PhaseSuccess  *prometheus.GaugeVec
	PhaseDuration *prometheus.GaugeVec
	PhaseLastRun  *prometheus.GaugeVec
}

// New creates a Recorder. runID is attached to every series as a constant label.
func New(runID string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}

	return &Recorder{
		reg: reg,
		Downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "ans_sync_downloads_total",
			Help:        "Artifact downloads by kind and result",
			ConstLabels: labels,
		}, []string{"kind", "result"}),
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "ans_sync_extractions_total",
			Help:        "Archive extractions by result",
			ConstLabels: labels,
		}, []string{"result"}),
		Files: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "ans_sync_statement_files_total",
			Help:        "Statement files by load outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		Rows: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "ans_sync_rows_loaded_total",
			Help:        "Rows written per table",
			ConstLabels: labels,
		}, []string{"table"}),
		PhaseSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ans_sync_phase_success",
			Help:        "1 if the phase succeeded, 0 otherwise",
			ConstLabels: labels,
		}, []string{"phase"}),
		PhaseDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ans_sync_phase_duration_seconds",
			Help:        "Wall time of the phase",
			ConstLabels: labels,
		}, []string{"phase"}),
		PhaseLastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ans_sync_phase_last_run_timestamp_seconds",
			Help:        "Unix time the phase finished",
			ConstLabels: labels,
		}, []string{"phase"}),
	}
}

// Download counts one artifact download.
func (r *Recorder) Download(kind, result string) {
	if r != nil {
		r.Downloads.WithLabelValues(kind, result).Inc()
	}
}

// Extraction counts one archive extraction.
func (r *Recorder) Extraction(result string) {
	if r != nil {
		r.Extractions.WithLabelValues(result).Inc()
	}
}

// File counts one statement file outcome.
func (r *Recorder) File(outcome string) {
	if r != nil {
		r.Files.WithLabelValues(outcome).Inc()
	}
}

// AddRows adds n rows written to table.
func (r *Recorder) AddRows(table string, n int64) {
	if r != nil && n > 0 {
		r.Rows.WithLabelValues(table).Add(float64(n))
	}
}

// Phase records the outcome of a pipeline phase.
func (r *Recorder) Phase(phase string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	r.PhaseSuccess.WithLabelValues(phase).Set(v)
	r.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
	r.PhaseLastRun.WithLabelValues(phase).SetToCurrentTime()
}

// Gatherer exposes the registry, e.g. for a /metrics handler.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// WriteTextfile writes all metrics to path atomically. It is a no-op when path is
// empty or r is nil.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
