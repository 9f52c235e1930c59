// Package fixedbuf provides the fixed-capacity containers used on paths that
// must not grow while the host process is live: the walker's visited set, the
// emitter's output buffer, and the hook installer's record table. Every
// container allocates once at construction and returns ErrCapacityExceeded
// instead of growing.
package fixedbuf

import "errors"

// ErrCapacityExceeded is returned when a fixed-capacity container is full.
var ErrCapacityExceeded = errors.New("fixedbuf: capacity exceeded")

// List is an append-only list with a hard capacity.
type List[T any] struct {
	items []T
}

// NewList allocates a list that can hold up to capacity items.
func NewList[T any](capacity int) *List[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &List[T]{items: make([]T, 0, capacity)}
}

// Push appends v. Returns ErrCapacityExceeded when the list is full.
func (l *List[T]) Push(v T) error {
	if len(l.items) == cap(l.items) {
		return ErrCapacityExceeded
	}
	l.items = append(l.items, v)
	return nil
}

// Len returns the number of items pushed so far.
func (l *List[T]) Len() int { return len(l.items) }

// Cap returns the fixed capacity.
func (l *List[T]) Cap() int { return cap(l.items) }

// At returns the item at index i. Out-of-range access is an internal logic
// defect and routes to the fatal halt.
func (l *List[T]) At(i int) T {
	if i < 0 || i >= len(l.items) {
		Halt("fixedbuf: list index out of range")
	}
	return l.items[i]
}

// Set overwrites the item at index i.
func (l *List[T]) Set(i int, v T) {
	if i < 0 || i >= len(l.items) {
		Halt("fixedbuf: list index out of range")
	}
	l.items[i] = v
}

// Items returns the backing slice, valid until the next Push.
func (l *List[T]) Items() []T { return l.items }

// Reset discards all items but keeps the capacity.
func (l *List[T]) Reset() { l.items = l.items[:0] }
