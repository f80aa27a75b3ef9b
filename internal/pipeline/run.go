package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/fanmatch/internal/queue"
	"github.com/GriffinCanCode/fanmatch/internal/shared/id"
	"golang.org/x/sync/errgroup"
)

// run holds the state of one Pipeline.Run call.
type run struct {
	p      *Pipeline
	id     id.RunID
	logger *logging.Logger
	tracer *tracing.Tracer

	patterns []*Pattern
	inputs   []*queue.Queue[*Line]
	output   *queue.Queue[*Line]

	remaining   atomic.Int32
	errOnce     sync.Once
	consumerErr error
}

func newRun(p *Pipeline, runID id.RunID) *run {
	logger := p.logger.With(zap.String("run_id", runID.String()))
	tracer := p.tracer
	if tracer == nil {
		tracer = tracing.New(serviceName, logger.Logger)
	}

	r := &run{
		p:        p,
		id:       runID,
		logger:   logger,
		tracer:   tracer,
		patterns: make([]*Pattern, len(p.patterns)),
		inputs:   make([]*queue.Queue[*Line], len(p.patterns)),
	}
	for i, text := range p.patterns {
		// Patterns were validated by New.
		r.patterns[i], _ = NewPattern(text)
		r.inputs[i] = queue.New[*Line](p.cfg.QueueCapacity)
	}

	outputCapacity := p.cfg.OutputCapacity
	if outputCapacity == 0 {
		outputCapacity = p.cfg.QueueCapacity * max(1, len(p.patterns))
	}
	r.output = queue.New[*Line](outputCapacity)
	r.remaining.Store(int32(len(p.patterns)))

	return r
}

// execute runs producer, consumers and collector until all of them return.
func (r *run) execute(ctx context.Context, src Source, sink Sink) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	runCtx = tracing.WithTraceID(runCtx, tracing.TraceID(r.id))

	if len(r.patterns) == 0 {
		r.output.Close()
	}

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return r.stage(gctx, stageProducer, nil, func(ctx context.Context) error {
			return r.produce(ctx, src)
		})
	})
	for i := range r.patterns {
		g.Go(func() error {
			tags := map[string]string{"pattern": r.patterns[i].String()}
			return r.stage(gctx, consumerStage(i), tags, func(ctx context.Context) error {
				return r.consume(ctx, i)
			})
		})
	}
	g.Go(func() error {
		return r.stage(gctx, stageCollector, nil, func(ctx context.Context) error {
			return r.collect(ctx, sink)
		})
	})

	stopWatchdog := r.watch(runCtx, cancel)
	err := g.Wait()
	stopWatchdog()

	if cause := context.Cause(runCtx); errors.Is(cause, ErrStalled) {
		return cause
	}
	return err
}

// stage wraps one stage goroutine in a span and a timer.
func (r *run) stage(ctx context.Context, name string, tags map[string]string, fn func(context.Context) error) error {
	span, ctx := r.tracer.StartSpan(ctx, name)
	for k, v := range tags {
		span.SetTag(k, v)
	}
	timer := monitoring.NewTimer(r.p.metrics, stageLabel(name))
	r.logger.Debug("Stage started",
		zap.String("stage", name),
		zap.String("trace", tracing.FormatTrace(tracing.GetTraceID(ctx), tracing.GetSpanID(ctx))),
	)

	err := fn(ctx)

	timer.Stop(err)
	r.tracer.Finish(span, err)
	return err
}

// consumerDone closes the shared queue once the last consumer returns.
func (r *run) consumerDone(err error) {
	if err != nil {
		r.errOnce.Do(func() { r.consumerErr = err })
	}
	if r.remaining.Add(-1) == 0 {
		r.output.CloseWithError(r.consumerErr)
	}
}

func (r *run) report(duration time.Duration, err error) *Report {
	rep := &Report{
		RunID:        r.id.String(),
		BytesRead:    r.p.counters.bytesRead.Load(),
		LinesRead:    r.p.counters.linesRead.Load(),
		LinesMatched: r.p.counters.linesMatched.Load(),
		LinesWritten: r.p.counters.linesWritten.Load(),
		Patterns:     make([]PatternStats, len(r.patterns)),
		Duration:     duration,
	}
	for i, pattern := range r.patterns {
		rep.Patterns[i] = pattern.Stats()
		r.p.metrics.RecordPattern(pattern.String(), rep.Patterns[i].MatchedLines, rep.Patterns[i].Matches)
	}
	if err != nil {
		rep.Incomplete = true
		rep.Error = err.Error()
	}
	return rep
}

const (
	stageProducer  = "producer"
	stageCollector = "collector"
	stageConsumer  = "consumer"
)

func consumerStage(i int) string {
	return fmt.Sprintf("%s[%d]", stageConsumer, i)
}

// stageLabel keeps metric label cardinality independent of pattern count.
func stageLabel(name string) string {
	if name == stageProducer || name == stageCollector {
		return name
	}
	return stageConsumer
}

func queueName(i int) string {
	return fmt.Sprintf("input[%d]", i)
}
