package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for pipeline runs.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Line flow metrics
	LinesRead     prometheus.Counter
	BytesRead     prometheus.Counter
	LinesMatched  prometheus.Counter
	LinesWritten  prometheus.Counter
	LinesReleased prometheus.Counter

	// Pattern metrics
	PatternMatches      *prometheus.CounterVec
	PatternMatchedLines *prometheus.CounterVec

	// Stage metrics
	QueueDepth    *prometheus.GaugeVec
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	// Run metrics
	RunDuration prometheus.Histogram
	Runs        *prometheus.CounterVec

	// HTTP metrics for the metrics listener itself
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates a metrics collector registered on its own registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates a metrics collector registered on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		LinesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fanmatch_lines_read_total",
				Help: "Total number of lines read from the source",
			},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fanmatch_bytes_read_total",
				Help: "Total number of bytes read from the source",
			},
		),
		LinesMatched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fanmatch_lines_matched_total",
				Help: "Total number of distinct lines matched by at least one pattern",
			},
		),
		LinesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fanmatch_lines_written_total",
				Help: "Total number of lines written to the sink",
			},
		),
		LinesReleased: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fanmatch_lines_released_total",
				Help: "Total number of line buffers returned to the pool",
			},
		),

		PatternMatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanmatch_pattern_matches_total",
				Help: "Total non-overlapping occurrences per pattern",
			},
			[]string{"pattern"},
		),
		PatternMatchedLines: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanmatch_pattern_matched_lines_total",
				Help: "Total lines containing at least one occurrence per pattern",
			},
			[]string{"pattern"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanmatch_queue_depth",
				Help: "Number of lines waiting in a stage queue",
			},
			[]string{"queue"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fanmatch_stage_duration_seconds",
				Help:    "Stage run time in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "status"},
		),
		StageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanmatch_stage_errors_total",
				Help: "Total number of stage failures",
			},
			[]string{"stage"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fanmatch_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanmatch_runs_total",
				Help: "Total number of pipeline runs",
			},
			[]string{"status"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanmatch_http_requests_total",
				Help: "Total number of HTTP requests served by the metrics listener",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordLineRead records one line taken from the source
func (m *Metrics) RecordLineRead(bytes int) {
	if m == nil {
		return
	}
	m.LinesRead.Inc()
	m.BytesRead.Add(float64(bytes))
}

// IncLinesMatched increments the distinct matched lines counter
func (m *Metrics) IncLinesMatched() {
	if m == nil {
		return
	}
	m.LinesMatched.Inc()
}

// IncLinesWritten increments the written lines counter
func (m *Metrics) IncLinesWritten() {
	if m == nil {
		return
	}
	m.LinesWritten.Inc()
}

// IncLinesReleased increments the released buffers counter
func (m *Metrics) IncLinesReleased() {
	if m == nil {
		return
	}
	m.LinesReleased.Inc()
}

// RecordPattern adds the final statistics of one pattern
func (m *Metrics) RecordPattern(pattern string, matchedLines, matches int64) {
	if m == nil {
		return
	}
	m.PatternMatchedLines.WithLabelValues(pattern).Add(float64(matchedLines))
	m.PatternMatches.WithLabelValues(pattern).Add(float64(matches))
}

// SetQueueDepth sets the current depth of a named queue
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordStage records a finished stage
func (m *Metrics) RecordStage(stage, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
	if status != StatusSuccess {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordRun records a finished pipeline run
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records a request served by the metrics listener
func (m *Metrics) RecordHTTPRequest(method, path, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
}
