package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// watch starts the stall watchdog when a StallTimeout is configured. If the
// run makes no progress for that long it logs every queue depth and cancels
// the run with ErrStalled. The returned func stops the watchdog and waits
// for it.
func (r *run) watch(ctx context.Context, cancel context.CancelCauseFunc) func() {
	timeout := r.p.cfg.StallTimeout
	if timeout <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		interval := max(timeout/4, time.Millisecond)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := r.p.counters.progress()
		lastChange := time.Now()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if current := r.p.counters.progress(); current != last {
					last = current
					lastChange = now
					continue
				}
				if now.Sub(lastChange) < timeout {
					continue
				}

				err := fmt.Errorf("%w: no progress for %s (%s)", ErrStalled, timeout, r.depths())
				r.logger.Error("Pipeline stalled",
					zap.Duration("stall_timeout", timeout),
					zap.Int64("lines_read", r.p.counters.linesRead.Load()),
					zap.Int64("lines_written", r.p.counters.linesWritten.Load()),
					zap.String("queues", r.depths()),
				)
				cancel(err)
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// depths describes how full every queue is, e.g.
// "cat=3/64 ran=0/64 closed output=1/128".
func (r *run) depths() string {
	var sb strings.Builder
	for i, in := range r.inputs {
		fmt.Fprintf(&sb, "%s=%d/%d ", r.patterns[i], in.Len(), in.Cap())
		if in.Closed() {
			sb.WriteString("closed ")
		}
	}
	fmt.Fprintf(&sb, "%s=%d/%d", outputQueueName, r.output.Len(), r.output.Cap())
	return sb.String()
}
