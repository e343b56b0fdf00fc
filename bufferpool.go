package netreactor

import (
	"math/bits"
	"sync"
)

// BufferPool is the memory-pool collaborator frame bodies are drawn
// from: Alloc(size) returns a buffer of at least size bytes, Free
// returns it for reuse. Buffers are bucketed into power-of-two size
// classes, each backed by its own sync.Pool.
type BufferPool struct {
	classes []sync.Pool
	minBits int
}

// NewBufferPool builds a BufferPool spanning size classes from minSize
// up to maxSize (inclusive), both rounded up to the nearest power of
// two.
func NewBufferPool(minSize, maxSize int) *BufferPool {
	if minSize < 1 {
		minSize = 1
	}
	minBits := bits.Len(uint(minSize - 1))
	maxBits := bits.Len(uint(maxSize - 1))
	if maxBits < minBits {
		maxBits = minBits
	}
	p := &BufferPool{
		classes: make([]sync.Pool, maxBits-minBits+1),
		minBits: minBits,
	}
	for i := range p.classes {
		classSize := 1 << (minBits + i)
		p.classes[i].New = func() any {
			buf := make([]byte, classSize)
			return &buf
		}
	}
	return p
}

func (p *BufferPool) classFor(size int) int {
	if size < 1 {
		size = 1
	}
	b := bits.Len(uint(size - 1))
	idx := b - p.minBits
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Alloc returns a buffer with length exactly size, drawn from the
// smallest size class able to hold it. Sizes larger than the pool's top
// class fall back to a plain allocation (never returned to the pool).
func (p *BufferPool) Alloc(size int) []byte {
	idx := p.classFor(size)
	if idx >= len(p.classes) {
		return make([]byte, size)
	}
	bufPtr := p.classes[idx].Get().(*[]byte)
	buf := (*bufPtr)[:cap(*bufPtr)]
	return buf[:size]
}

// Free returns buf to its size class for reuse. Buffers whose capacity
// is not exactly one of the pool's class sizes (including the oversize
// fallback) are silently discarded.
func (p *BufferPool) Free(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	b := bits.Len(uint(c)) - 1
	idx := b - p.minBits
	if idx < 0 || idx >= len(p.classes) {
		return
	}
	full := buf[:c]
	p.classes[idx].Put(&full)
}
