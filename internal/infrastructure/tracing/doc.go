/*
Package tracing provides lightweight spans for pipeline stages.

# Overview

A pipeline run is one trace; its ID is the run ID. Every stage (producer,
each consumer, collector) is a span. Finished spans are logged
through zap: at debug level on success, at error level on failure.

# Usage

	tracer := tracing.New("fanmatch", logger.Logger)
	ctx = tracing.WithTraceID(ctx, tracing.TraceID(runID))

	span, ctx := tracer.StartSpan(ctx, "consumer")
	span.SetTag("pattern", "cat")
	err := run(ctx)
	tracer.Finish(span, err)

The metrics listener uses HTTPMiddleware so scrape requests carry the run's
trace ID in the X-Trace-ID response header.
*/
package tracing
