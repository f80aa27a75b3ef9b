package pipeline

import (
	"context"
	"errors"
	"io"
)

// produce reads src and enqueues every line onto every consumer queue, in
// input order. The consumer queues are closed on return; a source failure
// closes them with that error.
func (r *run) produce(ctx context.Context, src Source) (err error) {
	defer func() {
		for _, in := range r.inputs {
			in.CloseWithError(err)
		}
	}()

	sized, _ := src.(SizedSource)

	var seq uint64
	for {
		text, readErr := src.Next(ctx)
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return stageError(stageProducer, readErr)
		}

		seq++
		size := len(text) + 1
		if sized != nil {
			size = sized.Consumed()
		}
		r.p.counters.linesRead.Add(1)
		r.p.counters.bytesRead.Add(int64(size))
		r.p.metrics.RecordLineRead(size)

		buf := r.p.buffers.Copy(text)
		if len(r.inputs) == 0 {
			r.p.release(buf)
			continue
		}

		line := newLine(seq, buf, len(r.inputs), r.p.release)
		for i, in := range r.inputs {
			// A line cut off mid fan-out is never released; the GC reclaims its buffer.
			if err := in.Enqueue(ctx, line); err != nil {
				return stageError(stageProducer, err)
			}
			r.p.metrics.SetQueueDepth(queueName(i), in.Len())
		}
	}
}
