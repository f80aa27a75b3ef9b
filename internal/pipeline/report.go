package pipeline

import "time"

// Report is the outcome of one run.
type Report struct {
	RunID string

	// Input and Output name the source and sink; callers fill them in.
	Input  string
	Output string

	BytesRead    int64
	LinesRead    int64
	LinesMatched int64
	LinesWritten int64

	// Patterns holds one entry per configured pattern, in order.
	Patterns []PatternStats

	Duration time.Duration

	// Incomplete is set when the run failed; the counters then cover only
	// the lines processed before the failure.
	Incomplete bool
	Error      string
}
