package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/fanmatch/internal/queue"
)

const outputQueueName = "output"

// collect drains the shared queue into sink until every consumer is done.
func (r *run) collect(ctx context.Context, sink Sink) error {
	for {
		line, err := r.output.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A consumer failed and reports it.
			return nil
		}
		r.p.metrics.SetQueueDepth(outputQueueName, r.output.Len())

		if err := sink.WriteLine(line.Text()); err != nil {
			return stageError(stageCollector, fmt.Errorf("line %d: %w", line.Seq(), err))
		}
		line.Deliver()
		r.p.counters.linesWritten.Add(1)
		r.p.metrics.IncLinesWritten()
	}

	return stageError(stageCollector, sink.Flush())
}
