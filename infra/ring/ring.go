package ring

// Ring is a fixed-capacity FIFO queue over a preallocated slot arena.
//
// head and tail are monotonic cursors; the item with cursor i lives in
// slot i % capacity. Enqueue never overwrites: it fails when the ring
// holds capacity items. A Ring has a single writer; the host serialises
// every invocation that touches it.
type Ring[T any] struct {
	head  uint64
	tail  uint64
	slots []T
}

// New allocates a ring with room for capacity items.
func New[T any](capacity uint64) *Ring[T] {
	if capacity == 0 {
		panic("ring capacity must be positive")
	}
	return &Ring[T]{
		slots: make([]T, capacity),
	}
}

func (r *Ring[T]) slot(cursor uint64) uint64 {
	return cursor % uint64(len(r.slots))
}

// Enqueue appends v at the tail. It returns false, leaving the ring
// untouched, when the ring is full.
func (r *Ring[T]) Enqueue(v T) bool {
	if r.tail-r.head == uint64(len(r.slots)) {
		return false
	}
	r.slots[r.slot(r.tail)] = v
	r.tail++
	return true
}

// Dequeue removes and returns the item at the head.
func (r *Ring[T]) Dequeue() (T, bool) {
	var zero T
	if r.tail == r.head {
		return zero, false
	}
	i := r.slot(r.head)
	v := r.slots[i]
	r.slots[i] = zero
	r.head++
	return v, true
}

// Peek returns the item at the head without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	if r.tail == r.head {
		return zero, false
	}
	return r.slots[r.slot(r.head)], true
}

// At returns the item at cursor, which must lie in [Head, Tail).
func (r *Ring[T]) At(cursor uint64) (T, bool) {
	var zero T
	if cursor < r.head || cursor >= r.tail {
		return zero, false
	}
	return r.slots[r.slot(cursor)], true
}

// Discard drops up to n items from the head and returns how many were dropped.
func (r *Ring[T]) Discard(n uint64) uint64 {
	if c := r.Len(); n > c {
		n = c
	}
	var zero T
	for i := uint64(0); i < n; i++ {
		r.slots[r.slot(r.head)] = zero
		r.head++
	}
	return n
}

// Each calls fn for every queued item from head to tail until fn returns false.
func (r *Ring[T]) Each(fn func(cursor uint64, v T) bool) {
	for c := r.head; c < r.tail; c++ {
		if !fn(c, r.slots[r.slot(c)]) {
			return
		}
	}
}

func (r *Ring[T]) Len() uint64 { return r.tail - r.head }
func (r *Ring[T]) Cap() uint64 { return uint64(len(r.slots)) }
func (r *Ring[T]) Free() uint64 { return r.Cap() - r.Len() }
func (r *Ring[T]) Head() uint64 { return r.head }
func (r *Ring[T]) Tail() uint64 { return r.tail }
func (r *Ring[T]) Full() bool { return r.Len() == r.Cap() }
func (r *Ring[T]) Empty() bool { return r.head == r.tail }
