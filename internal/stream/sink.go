package stream

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Sink receives lines and writes them out on Flush at the latest.
type Sink interface {
	WriteLine(line []byte) error
	Flush() error
}

// WriterSink writes newline-terminated lines through a buffer.
type WriterSink struct {
	name string
	w    *bufio.Writer

	// closers run in order on Close, after the buffer is flushed.
	closers closers
}

// NewWriterSink writes lines to w. Close flushes but does not close w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w)}
}

// Create returns a sink writing to path. "-" writes standard output.
// Otherwise the file is created or truncated; a ".gz" or ".zst" suffix
// compresses the output accordingly.
func Create(path string) (*WriterSink, error) {
	if path == Stdio {
		sink := NewWriterSink(os.Stdout)
		sink.name = path
		return sink, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	var w io.WriteCloser
	switch {
	case strings.HasSuffix(path, ".gz"):
		w = gzip.NewWriter(f)
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create output %s: %w", path, err)
		}
		w = enc
	}

	if w == nil {
		return &WriterSink{name: path, w: bufio.NewWriter(f), closers: closers{f}}, nil
	}
	return &WriterSink{name: path, w: bufio.NewWriter(w), closers: closers{w, f}}, nil
}

// Name returns the path given to Create, or "" for NewWriterSink.
func (s *WriterSink) Name() string {
	return s.name
}

// WriteLine buffers line followed by a newline.
func (s *WriterSink) WriteLine(line []byte) error {
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// Flush writes buffered lines to the underlying writer.
func (s *WriterSink) Flush() error {
	return s.w.Flush()
}

// Close flushes and closes whatever Create opened.
func (s *WriterSink) Close() error {
	err := s.Flush()
	if cerr := s.closers.Close(); err == nil {
		err = cerr
	}
	return err
}
