package pipeline

import (
	"fmt"
	"sync"
)

// Line is one input record shared by every consumer of a run.
//
// Text is read without locking: it is written once by the producer before
// the line is published and only released after every reader is done. The
// match flag, the access counter and the delivery flag are guarded by mu.
//
// The backing buffer goes back to the pool exactly once, when every
// consumer has visited the line and, for matched lines, the collector has
// delivered it.
type Line struct {
	seq       uint64
	buf       *[]byte
	consumers int
	release   func(*[]byte)

	mu        sync.Mutex
	matched   bool
	accesses  int
	delivered bool
	released  bool
}

func newLine(seq uint64, buf *[]byte, consumers int, release func(*[]byte)) *Line {
	return &Line{
		seq:       seq,
		buf:       buf,
		consumers: consumers,
		release:   release,
	}
}

// Seq returns the 1-based position of the line in the input.
func (l *Line) Seq() uint64 {
	return l.seq
}

// Text returns the line content without its line terminator.
func (l *Line) Text() []byte {
	return *l.buf
}

// Matched reports whether any consumer matched the line.
func (l *Line) Matched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.matched
}

// MarkMatched sets the match flag and reports whether this call was the
// one that set it. Only that caller forwards the line to the collector.
func (l *Line) MarkMatched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.matched {
		return false
	}
	l.matched = true
	return true
}

// Visit records that one consumer is done with the line. It reports whether
// the call released the buffer.
func (l *Line) Visit() bool {
	l.mu.Lock()
	if l.accesses >= l.consumers {
		l.mu.Unlock()
		panic(fmt.Sprintf("pipeline: line %d visited more than %d times", l.seq, l.consumers))
	}
	l.accesses++
	buf := l.claimLocked()
	l.mu.Unlock()

	return l.free(buf)
}

// Deliver records that the collector wrote the line out. It reports whether
// the call released the buffer.
func (l *Line) Deliver() bool {
	l.mu.Lock()
	if !l.matched || l.delivered {
		l.mu.Unlock()
		panic(fmt.Sprintf("pipeline: line %d delivered without a pending match", l.seq))
	}
	l.delivered = true
	buf := l.claimLocked()
	l.mu.Unlock()

	return l.free(buf)
}

// claimLocked hands the buffer to the caller once the release condition
// holds. Must be called with l.mu held.
func (l *Line) claimLocked() *[]byte {
	if l.accesses < l.consumers || (l.matched && !l.delivered) {
		return nil
	}
	if l.released {
		panic(fmt.Sprintf("pipeline: line %d released twice", l.seq))
	}
	l.released = true
	buf := l.buf
	l.buf = nil
	return buf
}

func (l *Line) free(buf *[]byte) bool {
	if buf == nil {
		return false
	}
	if l.release != nil {
		l.release(buf)
	}
	return true
}
