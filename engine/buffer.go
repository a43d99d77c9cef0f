package engine

import (
	"sync"
)

// DefaultBufferSize is the default size of the scratch buffers files are
// read into. 1MB keeps syscall overhead low without letting N workers pin
// much resident memory, regardless of how large individual files are.
const DefaultBufferSize = 1 * 1024 * 1024

// BufferPool manages reusable read buffers so warming a tree with millions
// of files does not allocate per file. Each worker holds one buffer for the
// lifetime of one file; buffers are never shared across goroutines.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new BufferPool that allocates buffers of the specified size.
// If size is <= 0, DefaultBufferSize is used.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get retrieves a reusable byte buffer from the pool.
// The caller should defer calling Put on this buffer once finished.
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Put returns the byte buffer to the pool so it can be reused.
// The caller should not hold onto or read/write to the buffer after calling Put.
func (bp *BufferPool) Put(b *[]byte) {
	// A basic sanity check to avoid returning nil pointers.
	if b != nil {
		bp.pool.Put(b)
	}
}
