// Package pool recycles the byte buffers that hold line text while it moves
// through the pipeline.
package pool

import "sync"

// DefaultBufferSize is the starting capacity of pooled buffers.
const DefaultBufferSize = 4096

// maxPooledSize keeps one very long line from pinning a large buffer.
const maxPooledSize = 1 << 20

// BufferPool implements a pool of byte slices for efficient memory reuse
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool with buffers of the specified size
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, 0, size)
				return &buffer
			},
		},
	}
}

// Get retrieves an empty buffer from the pool or creates a new one
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Copy returns a pooled buffer holding a copy of data
func (bp *BufferPool) Copy(data []byte) *[]byte {
	buffer := bp.Get()
	*buffer = append((*buffer)[:0], data...)
	return buffer
}

// Put returns a buffer to the pool for reuse
func (bp *BufferPool) Put(buffer *[]byte) {
	if buffer == nil || cap(*buffer) > maxPooledSize {
		return
	}
	// Reset buffer length but keep capacity
	*buffer = (*buffer)[:0]
	bp.pool.Put(buffer)
}
