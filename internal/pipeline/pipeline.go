package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/fanmatch/internal/pool"
	"github.com/GriffinCanCode/fanmatch/internal/shared/id"
)

// DefaultQueueCapacity is the per-consumer queue size used when Config
// leaves it unset.
const DefaultQueueCapacity = 64

const serviceName = "fanmatch"

// Source yields input lines. Next returns io.EOF once the input is
// exhausted; the returned slice is only valid until the next call.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// SizedSource is a Source that knows how many input bytes its last line
// occupied, terminator included. Run counts BytesRead from it; other
// sources are assumed to end every line with a single newline.
type SizedSource interface {
	Source
	Consumed() int
}

// Sink receives matched lines, one call per line. The slice passed to
// WriteLine is recycled after the call returns and must not be retained.
type Sink interface {
	WriteLine(line []byte) error
	Flush() error
}

// Config sizes the queues of a pipeline.
type Config struct {
	// QueueCapacity bounds every per-consumer queue.
	QueueCapacity int
	// OutputCapacity bounds the shared matched-lines queue. Zero means
	// QueueCapacity times the number of patterns.
	OutputCapacity int
	// StallTimeout fails a run that makes no progress for this long.
	// Zero disables the watchdog.
	StallTimeout time.Duration
}

// DefaultConfig returns the configuration used by the CLI defaults.
func DefaultConfig() Config {
	return Config{QueueCapacity: DefaultQueueCapacity}
}

// Progress is a live view of a run's counters.
type Progress struct {
	RunID         string `json:"run_id"`
	Running       bool   `json:"running"`
	LinesRead     int64  `json:"lines_read"`
	BytesRead     int64  `json:"bytes_read"`
	LinesMatched  int64  `json:"lines_matched"`
	LinesWritten  int64  `json:"lines_written"`
	LinesReleased int64  `json:"lines_released"`
	Visits        int64  `json:"visits"`
}

type counters struct {
	linesRead     atomic.Int64
	bytesRead     atomic.Int64
	linesMatched  atomic.Int64
	linesWritten  atomic.Int64
	linesReleased atomic.Int64
	visits        atomic.Int64
}

func (c *counters) reset() {
	c.linesRead.Store(0)
	c.bytesRead.Store(0)
	c.linesMatched.Store(0)
	c.linesWritten.Store(0)
	c.linesReleased.Store(0)
	c.visits.Store(0)
}

// progress sums the counters that move whenever any stage does work.
func (c *counters) progress() int64 {
	return c.linesRead.Load() + c.visits.Load() + c.linesWritten.Load()
}

// Pipeline fans lines out to one consumer per pattern and collects the
// lines that matched any of them.
type Pipeline struct {
	patterns []string
	cfg      Config

	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	buffers *pool.BufferPool

	mu      sync.Mutex
	running bool
	runID   id.RunID

	counters counters
}

// New validates the patterns and configuration and returns an idle
// pipeline. Pattern order decides which consumer owns which pattern and the
// order of the report.
func New(patterns []string, cfg Config) (*Pipeline, error) {
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, fmt.Errorf("pattern %d: %w", i+1, ErrEmptyPattern)
		}
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.QueueCapacity < 0 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", cfg.QueueCapacity)
	}
	if cfg.OutputCapacity < 0 {
		return nil, fmt.Errorf("output capacity must not be negative, got %d", cfg.OutputCapacity)
	}
	if cfg.StallTimeout < 0 {
		return nil, fmt.Errorf("stall timeout must not be negative, got %s", cfg.StallTimeout)
	}

	return &Pipeline{
		patterns: append([]string(nil), patterns...),
		cfg:      cfg,
		logger:   logging.NewNop(),
		buffers:  pool.NewBufferPool(pool.DefaultBufferSize),
	}, nil
}

// WithLogger sets the logger used for run and stage events.
func (p *Pipeline) WithLogger(logger *logging.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithMetrics attaches a metrics collector.
func (p *Pipeline) WithMetrics(metrics *monitoring.Metrics) *Pipeline {
	p.metrics = metrics
	return p
}

// WithTracer replaces the default tracer, which logs through the
// pipeline's logger.
func (p *Pipeline) WithTracer(tracer *tracing.Tracer) *Pipeline {
	p.tracer = tracer
	return p
}

// Patterns returns the configured patterns in order.
func (p *Pipeline) Patterns() []string {
	return append([]string(nil), p.patterns...)
}

// Progress returns the counters of the current or last run.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	runID, running := p.runID, p.running
	p.mu.Unlock()

	return Progress{
		RunID:         runID.String(),
		Running:       running,
		LinesRead:     p.counters.linesRead.Load(),
		BytesRead:     p.counters.bytesRead.Load(),
		LinesMatched:  p.counters.linesMatched.Load(),
		LinesWritten:  p.counters.linesWritten.Load(),
		LinesReleased: p.counters.linesReleased.Load(),
		Visits:        p.counters.visits.Load(),
	}
}

// Run reads src to the end, writes every line that matches at least one
// pattern to sink exactly once and returns the per-pattern statistics.
//
// Lines reach the sink in the order they first matched, which is not
// necessarily input order. On failure the returned report carries the
// statistics gathered so far and is marked incomplete. Only one Run may be
// active per Pipeline.
//
// Run returns only after src.Next has returned; sources that block should
// honor ctx.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) (*Report, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if sink == nil {
		return nil, ErrNilSink
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	p.running = true
	p.runID = id.NewRunID()
	p.counters.reset()
	runID := p.runID
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	r := newRun(p, runID)
	r.logger.Info("Pipeline run starting",
		zap.Int("patterns", len(r.patterns)),
		zap.Int("queue_capacity", p.cfg.QueueCapacity),
		zap.Int("output_capacity", r.output.Cap()),
	)

	start := time.Now()
	err := r.execute(ctx, src, sink)
	duration := time.Since(start)

	report := r.report(duration, err)
	p.metrics.RecordRun(monitoring.StatusOf(err), duration)

	if err != nil {
		r.logger.Error("Pipeline run failed",
			zap.Error(err),
			zap.Int64("lines_read", report.LinesRead),
			zap.Int64("lines_written", report.LinesWritten),
			zap.Duration("duration", duration),
		)
		return report, err
	}

	r.logger.Info("Pipeline run finished",
		zap.Int64("lines_read", report.LinesRead),
		zap.Int64("lines_written", report.LinesWritten),
		zap.Duration("duration", duration),
	)
	return report, nil
}

func (p *Pipeline) release(buf *[]byte) {
	p.buffers.Put(buf)
	p.counters.linesReleased.Add(1)
	p.metrics.IncLinesReleased()
}
