package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
)

// Source yields one line per call and io.EOF at the end of input. The
// returned slice is only valid until the next call.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// ReaderSource splits a reader into lines. Lines may be of any length.
type ReaderSource struct {
	r    *bufio.Reader
	line []byte
	size int
	err  error
}

// NewReaderSource reads lines from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: bufio.NewReader(r)}
}

// Next returns the next line without its terminator. A last line that is
// not newline-terminated is still returned; an empty line is returned as an
// empty, non-nil slice.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.line = s.line[:0]
	s.size = 0
	for {
		chunk, err := s.r.ReadSlice('\n')
		s.line = append(s.line, chunk...)
		s.size = len(s.line)

		switch {
		case err == nil:
			return trimEOL(s.line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			s.err = io.EOF
			if len(s.line) == 0 {
				return nil, io.EOF
			}
			return trimEOL(s.line), nil
		default:
			s.err = err
			return nil, err
		}
	}
}

// Consumed returns how many input bytes the last line returned by Next
// occupied, terminator included. An unterminated last line has none.
func (s *ReaderSource) Consumed() int {
	return s.size
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
