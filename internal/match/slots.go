package match

import (
	"slices"
	"sync"
)

// entry is one candidate neighbor: squared distance and the caller's
// original rhs index.
type entry struct {
	d2  float32
	idx uint32
}

// less orders entries by distance, then index.
func (e entry) less(o entry) bool {
	if e.d2 != o.d2 {
		return e.d2 < o.d2
	}
	return e.idx < o.idx
}

func compareEntries(a, b entry) int {
	switch {
	case a.less(b):
		return -1
	case b.less(a):
		return 1
	default:
		return 0
	}
}

// slotBuffer holds up to capacity candidates for each atom of one lhs
// 128-block. When an atom's slots are full, a closer candidate replaces
// the farthest one, so the slots always hold the closest candidates seen.
type slotBuffer struct {
	capacity int
	entries  []entry
	counts   []int
}

func newSlotBuffer(atoms, capacity int) *slotBuffer {
	return &slotBuffer{
		capacity: capacity,
		entries:  make([]entry, atoms*capacity),
		counts:   make([]int, atoms),
	}
}

func (s *slotBuffer) reset() {
	clear(s.counts)
}

// insert offers a candidate to atom a.
func (s *slotBuffer) insert(a int, e entry) {
	slots := s.entries[a*s.capacity : (a+1)*s.capacity]
	c := s.counts[a]
	if c < s.capacity {
		slots[c] = e
		s.counts[a] = c + 1
		return
	}

	far := 0
	for i := 1; i < c; i++ {
		if slots[far].less(slots[i]) {
			far = i
		}
	}
	if e.less(slots[far]) {
		slots[far] = e
	}
}

// sorted returns the candidates of atom a ordered by distance, then index.
// full reports whether every slot was used.
func (s *slotBuffer) sorted(a int) (list []entry, full bool) {
	c := s.counts[a]
	list = s.entries[a*s.capacity : a*s.capacity+c]
	slices.SortFunc(list, compareEntries)
	return list, c == s.capacity
}

// slotPool recycles slot buffers of one capacity.
type slotPool struct {
	pool sync.Pool
}

func newSlotPool(atoms, capacity int) *slotPool {
	return &slotPool{
		pool: sync.Pool{
			New: func() any { return newSlotBuffer(atoms, capacity) },
		},
	}
}

func (p *slotPool) get() *slotBuffer {
	s := p.pool.Get().(*slotBuffer)
	s.reset()
	return s
}

func (p *slotPool) put(s *slotBuffer) {
	p.pool.Put(s)
}
