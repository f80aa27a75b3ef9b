/*
Package monitoring provides Prometheus metrics for pipeline runs.

# Overview

Each Metrics value owns a private registry, so several pipelines (or tests)
can coexist in one process without duplicate registration panics.

# Metrics

  - Line flow: lines and bytes read, distinct lines matched, lines written,
    line buffers released
  - Patterns: occurrences and matched lines per pattern
  - Stages: queue depth, stage duration, stage failures
  - Runs: run count by status and run duration

# Usage

	metrics := monitoring.NewMetrics()

	p, _ := pipeline.New(patterns, cfg)
	p.WithMetrics(metrics)

	// Time a stage
	timer := monitoring.NewTimer(metrics, "collector")
	// ... run the stage ...
	timer.Stop(err)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
