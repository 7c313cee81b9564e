package molgeo

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/molgeo/internal/connectivity"
	"github.com/hupe1980/molgeo/internal/match"
)

// Range is a half-open span of MatchResult.Indices.
type Range = match.Range

// MatchResult holds the neighbor list of every lhs atom in one flat buffer.
//
// Lists are sorted by ascending distance, ties by ascending index, and
// hold the caller's rhs indices.
type MatchResult struct {
	// Indices holds every list back to back.
	Indices []uint32
	// Distances holds the Euclidean distance, in nanometres, of every entry
	// of Indices.
	Distances []float32
	// Ranges[i] locates the list of lhs atom i. Ranges are contiguous and
	// start at 0.
	Ranges []Range
	// Truncated holds the lhs atoms that had more than maxNeighbors
	// neighbors.
	Truncated *roaring.Bitmap
}

func newMatchResult(r *match.Result) *MatchResult {
	return &MatchResult{
		Indices:   r.Indices,
		Distances: r.Distances,
		Ranges:    r.Ranges,
		Truncated: roaring.BitmapOf(r.Truncated...),
	}
}

// Len returns the number of lhs atoms.
func (m *MatchResult) Len() int { return len(m.Ranges) }

// Pairs returns the total number of neighbor entries.
func (m *MatchResult) Pairs() int { return len(m.Indices) }

// Neighbors returns the neighbor list of lhs atom i.
func (m *MatchResult) Neighbors(i int) []uint32 {
	r := m.Ranges[i]
	return m.Indices[r.Start:r.End]
}

// NeighborDistances returns the distances of the neighbor list of lhs
// atom i.
func (m *MatchResult) NeighborDistances(i int) []float32 {
	r := m.Ranges[i]
	return m.Distances[r.Start:r.End]
}

// IsTruncated reports whether the list of lhs atom i was capped.
func (m *MatchResult) IsTruncated(i int) bool {
	return m.Truncated.Contains(uint32(i))
}

// NeighborSet holds the bonded neighbors of one atom: up to eight indices,
// their count and an overflow flag.
type NeighborSet = connectivity.NeighborSet

// MaxBondedNeighbors is the capacity of a NeighborSet.
const MaxBondedNeighbors = connectivity.MaxNeighbors

// ConnectivityMap holds one NeighborSet per atom.
//
// When an atom has more than MaxBondedNeighbors bonds, which of its
// neighbors are kept is unspecified.
type ConnectivityMap struct {
	Sets []NeighborSet
}

// Len returns the number of atoms.
func (c *ConnectivityMap) Len() int { return len(c.Sets) }

// Neighbors returns the bonded neighbors of atom i in slot order.
func (c *ConnectivityMap) Neighbors(i int) []uint32 {
	return c.Sets[i].Slice()
}

// Overflowed returns the atoms with more than MaxBondedNeighbors bonds.
func (c *ConnectivityMap) Overflowed() *roaring.Bitmap {
	bm := roaring.New()
	for i := range c.Sets {
		if c.Sets[i].Overflow {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// Sort orders every neighbor set ascending, giving a canonical map for
// atoms without overflow.
func (c *ConnectivityMap) Sort() {
	for i := range c.Sets {
		c.Sets[i].Sort()
	}
}
