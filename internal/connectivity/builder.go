// Package connectivity builds the atom to bonded-neighbor table of a bond
// list.
//
// Every atom has room for MaxNeighbors neighbors. Bonds are inserted by
// concurrent workers that claim slots with an atomic increment, so the
// slot order of an atom's neighbors, and which neighbors survive when an
// atom has more than MaxNeighbors bonds, depend on scheduling.
package connectivity

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/molgeo/internal/atomics"
	"github.com/hupe1980/molgeo/internal/parallel"
)

// MaxNeighbors is the number of neighbor slots per atom.
const MaxNeighbors = 8

// DefaultChunkSize is the number of bonds one task handles.
const DefaultChunkSize = 4096

var (
	// ErrBondOutOfRange is returned for a bond that references an atom
	// index outside [0, atomCount).
	ErrBondOutOfRange = errors.New("bond index out of range")
	// ErrSelfBond is returned for a bond whose endpoints are equal.
	ErrSelfBond = errors.New("bond connects an atom to itself")
)

// Bond is an unordered pair of atom indices.
type Bond = [2]uint32

// BondError reports the first invalid bond of a list.
type BondError struct {
	Index int
	Bond  Bond
	Err   error
}

func (e *BondError) Error() string {
	return fmt.Sprintf("bond %d (%d-%d): %v", e.Index, e.Bond[0], e.Bond[1], e.Err)
}

func (e *BondError) Unwrap() error {
	return e.Err
}

// NeighborSet holds the bonded neighbors of one atom.
type NeighborSet struct {
	// Neighbors holds Count valid entries.
	Neighbors [MaxNeighbors]uint32
	// Count is the number of valid entries, at most MaxNeighbors.
	Count uint8
	// Overflow is set when the atom had more than MaxNeighbors bonds.
	Overflow bool
}

// Slice returns the valid neighbors.
func (s *NeighborSet) Slice() []uint32 {
	return s.Neighbors[:s.Count]
}

// Sort orders the valid neighbors ascending.
func (s *NeighborSet) Sort() {
	slices.Sort(s.Neighbors[:s.Count])
}

// Builder builds connectivity tables. It is safe for concurrent use.
type Builder struct {
	pool      *parallel.Pool
	chunkSize int
}

// NewBuilder creates a Builder that spreads chunks over pool. A nil pool
// builds on the calling goroutine. A non-positive chunkSize selects
// DefaultChunkSize.
func NewBuilder(pool *parallel.Pool, chunkSize int) *Builder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Builder{pool: pool, chunkSize: chunkSize}
}

// Build validates bonds and returns one NeighborSet per atom.
//
// An invalid bond fails the whole call with a *BondError; when several
// bonds are invalid, the one with the lowest index is reported.
func (b *Builder) Build(atomCount int, bonds []Bond) ([]NeighborSet, error) {
	if atomCount < 0 || uint64(atomCount) > math.MaxUint32 {
		panic(fmt.Sprintf("connectivity: invalid atom count %d", atomCount))
	}
	if err := b.validate(atomCount, bonds); err != nil {
		return nil, err
	}

	sets := make([]NeighborSet, atomCount)
	if atomCount == 0 {
		return sets, nil
	}
	counters := atomics.NewUint32Array(atomCount)

	b.forEachChunk(len(bonds), func(lo, hi int) {
		for _, bond := range bonds[lo:hi] {
			insert(sets, counters, bond[0], bond[1])
			insert(sets, counters, bond[1], bond[0])
		}
	})

	b.forEachChunk(atomCount, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			c := counters.Load(i)
			sets[i].Count = uint8(min(c, MaxNeighbors))
			sets[i].Overflow = c > MaxNeighbors
		}
	})
	return sets, nil
}

// insert claims the next slot of atom and stores neighbor in it. Claims
// past the last slot only count.
func insert(sets []NeighborSet, counters *atomics.Uint32Array, atom, neighbor uint32) {
	slot := counters.Increment(int(atom))
	if slot < MaxNeighbors {
		sets[atom].Neighbors[slot] = neighbor
	}
}

func (b *Builder) validate(atomCount int, bonds []Bond) error {
	chunks := (len(bonds) + b.chunkSize - 1) / b.chunkSize
	errs := make([]error, chunks)

	b.forEachChunk(len(bonds), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if err := check(atomCount, bonds[i]); err != nil {
				errs[lo/b.chunkSize] = &BondError{Index: i, Bond: bonds[i], Err: err}
				return
			}
		}
	})

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func check(atomCount int, bond Bond) error {
	if int64(bond[0]) >= int64(atomCount) || int64(bond[1]) >= int64(atomCount) {
		return ErrBondOutOfRange
	}
	if bond[0] == bond[1] {
		return ErrSelfBond
	}
	return nil
}

// forEachChunk runs fn over [0, n) in chunks of chunkSize.
func (b *Builder) forEachChunk(n int, fn func(lo, hi int)) {
	chunks := (n + b.chunkSize - 1) / b.chunkSize
	chunk := func(c int) {
		lo := c * b.chunkSize
		fn(lo, min(lo+b.chunkSize, n))
	}
	if b.pool == nil {
		for c := range chunks {
			chunk(c)
		}
		return
	}
	b.pool.Run(chunks, chunk)
}
