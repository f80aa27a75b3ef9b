// Package config provides 12-factor configuration management for fanmatch.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags override environment variables.
//
// Configuration Sections:
//   - Pipeline: queue capacities and the stall watchdog
//   - Report: final report format
//   - Metrics: optional HTTP listener for /metrics and /progress
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("queue capacity %d\n", cfg.Pipeline.QueueCapacity)
//
// Environment Variables:
//   - FANMATCH_QUEUE_CAPACITY, FANMATCH_OUTPUT_CAPACITY, FANMATCH_STALL_TIMEOUT
//   - FANMATCH_REPORT_FORMAT (text, json, yaml, toml)
//   - FANMATCH_METRICS_ADDR, FANMATCH_METRICS_RPS, FANMATCH_METRICS_BURST
//   - FANMATCH_METRICS_ALLOW_ORIGINS, FANMATCH_PROGRESS_INTERVAL
//   - LOG_LEVEL, LOG_DEV
package config
