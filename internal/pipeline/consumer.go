package pipeline

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/fanmatch/internal/queue"
)

// consume drains the i-th input queue, scanning every line for the i-th
// pattern. The first consumer to match a line forwards it to the collector.
func (r *run) consume(ctx context.Context, i int) (err error) {
	defer func() { r.consumerDone(err) }()

	pattern := r.patterns[i]
	in := r.inputs[i]
	name := queueName(i)

	for {
		line, deqErr := in.Dequeue(ctx)
		if deqErr != nil {
			switch {
			case errors.Is(deqErr, queue.ErrClosed):
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				// The producer failed and reports it.
				return nil
			}
		}
		r.p.metrics.SetQueueDepth(name, in.Len())

		if pattern.Scan(line.Text()) > 0 && line.MarkMatched() {
			r.p.counters.linesMatched.Add(1)
			r.p.metrics.IncLinesMatched()
			if err := r.output.Enqueue(ctx, line); err != nil {
				return stageError(consumerStage(i), err)
			}
		}

		line.Visit()
		r.p.counters.visits.Add(1)
	}
}
