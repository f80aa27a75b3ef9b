// Package server exposes a running pipeline over HTTP.
//
// The listener is optional and only lives as long as one CLI invocation.
//
// Routes:
//   - GET /metrics: Prometheus exposition of the run's collector
//   - GET /healthz: liveness probe
//   - GET /progress: JSON snapshot of the live counters
//   - GET /progress/stream: websocket pushing the snapshot periodically
//
// Middleware stack:
//   - Recovery
//   - Tracing (X-Trace-ID is the run ID)
//   - Request metrics
//   - CORS, so a dashboard on another origin can poll /progress
//   - Global rate limit
//
// Example Usage:
//
//	srv := server.New(server.DefaultOptions(":9090"), metrics, p.Progress, logger)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
package server
