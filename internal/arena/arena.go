package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrArenaFull is returned when a region does not fit into the arena.
var ErrArenaFull = errors.New("arena is full")

// Word is the set of element types an Arena can hold.
type Word interface {
	~uint8 | ~uint32 | ~int32 | ~float32
}

// Arena is a fixed-capacity bump allocator over a single slice.
type Arena[T Word] struct {
	buf  []T
	next atomic.Int64
}

// New creates an Arena holding up to capacity elements.
func New[T Word](capacity int) *Arena[T] {
	return &Arena[T]{buf: make([]T, max(capacity, 0))}
}

// alloc reserves n elements and returns their offset.
func (a *Arena[T]) alloc(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("arena: negative size %d", n)
	}
	for {
		cur := a.next.Load()
		end := cur + int64(n)
		if end > int64(len(a.buf)) {
			return 0, ErrArenaFull
		}
		if a.next.CompareAndSwap(cur, end) {
			return int(cur), nil
		}
	}
}

// MustAlloc reserves n elements and returns them as a zeroed slice whose
// capacity ends at the region, so appends cannot spill into a neighbour.
// It panics when the arena was sized too small.
func (a *Arena[T]) MustAlloc(n int) []T {
	off, err := a.alloc(n)
	if err != nil {
		panic(fmt.Sprintf("arena: alloc %d of %d: %v", n, len(a.buf), err))
	}
	s := a.buf[off : off+n : off+n]
	clear(s)
	return s
}
