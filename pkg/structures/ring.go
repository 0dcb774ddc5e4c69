// Package structures holds small containers shared across the engine.
package structures

// Ring is a bounded buffer that retains the most recently added items,
// evicting the oldest once capacity is reached. Not safe for concurrent
// use; callers hold their own lock.
type Ring[T any] struct {
	items []T
	start int
	count int
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Add appends an item, evicting the oldest entry when full.
func (r *Ring[T]) Add(item T) {
	idx := (r.start + r.count) % len(r.items)
	r.items[idx] = item
	if r.count < len(r.items) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.items)
	}
}

// Len reports how many items are retained.
func (r *Ring[T]) Len() int {
	return r.count
}

// Items returns the retained entries, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(r.start+i)%len(r.items)])
	}
	return out
}
