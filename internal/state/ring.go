package state

// Ring keeps the most recent items up to a fixed capacity. It is not safe
// for concurrent use.
type Ring[T any] struct {
	buf   []T
	idx   int
	count int
}

// NewRing returns a ring holding at most capacity items. A capacity below
// one is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Add appends an item, evicting the oldest one when full.
func (r *Ring[T]) Add(item T) {
	r.buf[r.idx] = item
	r.idx = (r.idx + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	return r.count
}

// Entries returns the stored items oldest first, or nil when empty.
func (r *Ring[T]) Entries() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	if r.count == len(r.buf) {
		for i := 0; i < r.count; i++ {
			out[i] = r.buf[(r.idx+i)%len(r.buf)]
		}
	} else {
		copy(out, r.buf[:r.count])
	}
	return out
}

// Clear drops every item.
func (r *Ring[T]) Clear() {
	clear(r.buf)
	r.idx = 0
	r.count = 0
}
