package blink

// Ring is a fixed-capacity FIFO that overwrites its oldest element when full.
type Ring[T any] struct {
	buf     []T
	start   int
	n       int
	dropped int
}

// NewRing creates a ring holding up to capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, dropping the oldest element if the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.n == len(r.buf) {
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
		r.dropped++
		return
	}
	r.buf[(r.start+r.n)%len(r.buf)] = v
	r.n++
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped returns how many elements were overwritten before being drained.
func (r *Ring[T]) Dropped() int { return r.dropped }

// Drain returns all stored elements oldest first and empties the ring.
func (r *Ring[T]) Drain() []T {
	out := make([]T, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	r.Clear()
	return out
}

// Clear empties the ring.
func (r *Ring[T]) Clear() {
	r.start = 0
	r.n = 0
}
