// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Output defaults to stderr so that stdout stays free for matched lines and
// the final report.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	logger.Info("Pipeline starting", zap.Int("patterns", 2))
//	logger.Error("Sink write failed", zap.Error(err))
package logging
