// Package pipeline fans input lines out to one consumer per search pattern
// and collects every line that matched at least one of them.
//
// Pipeline Architecture:
//
//	Producer (reads the Source)
//	   ↓ one bounded queue per pattern, every line enqueued on each
//	Consumers (one goroutine per pattern)
//	   ↓ shared bounded queue, first matching consumer forwards the line
//	Collector (writes the Sink)
//
// Every line is shared by all consumers through a single *Line. The first
// consumer whose pattern occurs in the line marks it matched and forwards
// it; the others only count their own occurrences. A line's buffer returns
// to the pool once every consumer has visited it and, if it matched, the
// collector has written it.
//
// Shutdown:
//   - The producer closes every consumer queue when the Source ends.
//   - Each consumer drains its queue and exits; the last one closes the
//     shared queue.
//   - The collector drains the shared queue, flushes the Sink and exits.
//
// A failing stage cancels the others. The optional stall watchdog cancels a
// run that stops making progress and reports every queue depth.
//
// Example Usage:
//
//	p, err := pipeline.New([]string{"cat", "ran"}, pipeline.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	report, err := p.WithLogger(logger).Run(ctx, source, sink)
//	for _, s := range report.Patterns {
//	    fmt.Printf("%s: %d lines, %d matches\n", s.Pattern, s.MatchedLines, s.Matches)
//	}
package pipeline
