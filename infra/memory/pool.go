// Package memory pools the scratch buffers of the write path.
package memory

import "sync"

// Pool is a typed object pool.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}

// Buffers hands out byte slices for framing records. Slices that grew
// beyond maxRetain are dropped on Put instead of being pooled.
type Buffers struct {
	pool      *Pool[[]byte]
	maxRetain int
}

func NewBuffers(initial, maxRetain int) *Buffers {
	return &Buffers{
		pool: NewPool(func() *[]byte {
			b := make([]byte, 0, initial)
			return &b
		}),
		maxRetain: maxRetain,
	}
}

// Get returns a slice of length n. Its contents are undefined.
func (b *Buffers) Get(n int) *[]byte {
	buf := b.pool.Get()
	if cap(*buf) < n {
		*buf = make([]byte, n)
	}
	*buf = (*buf)[:n]
	return buf
}

func (b *Buffers) Put(buf *[]byte) {
	if cap(*buf) > b.maxRetain {
		return
	}
	*buf = (*buf)[:0]
	b.pool.Put(buf)
}
