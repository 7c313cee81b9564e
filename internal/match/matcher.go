// Package match finds, for every atom of one operand, the atoms of another
// operand whose spheres overlap it.
//
// The search prunes hierarchically: a lhs 128-block is tested against every
// rhs 128-block, surviving pairs are refined through the 32-atom and 8-atom
// spheres, and only 8×8 lane groups that still overlap run the exact pair
// test. Each lhs 128-block is one task on the worker pool.
package match

import (
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/hupe1980/molgeo/internal/bvh"
	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/internal/simd"
)

// MaxNeighborsLimit is the exclusive upper bound of Request.MaxNeighbors.
const MaxNeighborsLimit = 254

// padIndex marks padding lanes of the rhs operand.
const padIndex = math.MaxUint32

const (
	groupsPerBlock = bvh.BlockAtoms / bvh.GroupAtoms
	blocksPerSuper = bvh.SuperAtoms / bvh.BlockAtoms
)

// Request describes one match.
type Request struct {
	// LHS and RHS are the operands. For a self-match both point to the same
	// operand and Self is true.
	LHS, RHS *bvh.Operand
	// LHSOrder and RHSOrder map operand lanes to the caller's indices.
	LHSOrder, RHSOrder []uint32
	// Self excludes every atom from its own list.
	Self bool
	// MaxNeighbors caps every list, 0 < MaxNeighbors < MaxNeighborsLimit.
	MaxNeighbors int
}

// Range is a half-open span of Result.Indices.
type Range struct {
	Start, End uint32
}

// Len returns the number of entries in the range.
func (r Range) Len() int { return int(r.End - r.Start) }

// Result is the flat neighbor table of a match, in the caller's lhs order.
type Result struct {
	// Indices holds the caller's rhs indices of every list back to back.
	Indices []uint32
	// Distances holds the Euclidean distance of every entry of Indices.
	Distances []float32
	// Ranges[i] locates the list of lhs atom i.
	Ranges []Range
	// Truncated lists, in ascending order, the lhs atoms that had more
	// than MaxNeighbors neighbors.
	Truncated []uint32
}

// Matcher runs matches on a worker pool. It is safe for concurrent use.
type Matcher struct {
	pool  *parallel.Pool
	slots sync.Map // capacity -> *slotPool
}

// NewMatcher creates a Matcher. A nil pool runs every task on the calling
// goroutine.
func NewMatcher(pool *parallel.Pool) *Matcher {
	return &Matcher{pool: pool}
}

func (m *Matcher) slotPool(capacity int) *slotPool {
	if p, ok := m.slots.Load(capacity); ok {
		return p.(*slotPool)
	}
	p, _ := m.slots.LoadOrStore(capacity, newSlotPool(bvh.SuperAtoms, capacity))
	return p.(*slotPool)
}

// blockResult is the compacted output of one lhs 128-block.
type blockResult struct {
	counts    [bvh.SuperAtoms]uint8
	truncated [bvh.SuperAtoms]bool
	indices   []uint32
	distances []float32
}

// Run executes a match.
func (m *Matcher) Run(req Request) *Result {
	if req.MaxNeighbors >= MaxNeighborsLimit {
		panic(fmt.Sprintf("match: maxNeighbors %d must be below %d", req.MaxNeighbors, MaxNeighborsLimit))
	}
	if req.MaxNeighbors <= 0 {
		panic(fmt.Sprintf("match: maxNeighbors %d must be positive", req.MaxNeighbors))
	}
	if len(req.LHSOrder) != req.LHS.Count || len(req.RHSOrder) != req.RHS.Count {
		panic(fmt.Sprintf("match: order sizes %d/%d do not match operands %d/%d",
			len(req.LHSOrder), len(req.RHSOrder), req.LHS.Count, req.RHS.Count))
	}

	n := req.LHS.Count
	res := &Result{Ranges: make([]Range, n)}
	if n == 0 || req.RHS.Count == 0 {
		return res
	}

	// rhs lanes past Count map to padIndex; compact drops them.
	rhsIndex := make([]uint32, len(req.RHS.X))
	copy(rhsIndex, req.RHSOrder)
	for i := req.RHS.Count; i < len(rhsIndex); i++ {
		rhsIndex[i] = padIndex
	}

	blocks := make([]blockResult, req.LHS.Supers())
	slots := m.slotPool(req.MaxNeighbors + 1)
	task := func(b int) {
		buf := slots.get()
		defer slots.put(buf)
		t := &blockTask{req: &req, rhsIndex: rhsIndex, block: b, slots: buf}
		t.search()
		t.compact(&blocks[b])
	}

	if m.pool == nil {
		for b := range blocks {
			task(b)
		}
	} else {
		m.pool.Run(len(blocks), task)
	}

	assemble(res, &req, blocks)
	return res
}

// assemble lays the block outputs out in the caller's lhs order.
func assemble(res *Result, req *Request, blocks []blockResult) {
	// lane of each caller index
	lanes := make([]uint32, len(req.LHSOrder))
	for lane, orig := range req.LHSOrder {
		lanes[orig] = uint32(lane)
	}
	// start of each lane inside its block output
	starts := make([]uint32, len(req.LHSOrder))
	var total uint32
	for b := range blocks {
		var off uint32
		for a := 0; a < bvh.SuperAtoms; a++ {
			lane := b*bvh.SuperAtoms + a
			if lane >= len(starts) {
				break
			}
			starts[lane] = off
			off += uint32(blocks[b].counts[a])
		}
		total += off
	}

	res.Indices = make([]uint32, total)
	res.Distances = make([]float32, total)
	var pos uint32
	for orig, lane := range lanes {
		blk := &blocks[lane/bvh.SuperAtoms]
		a := lane % bvh.SuperAtoms
		c := uint32(blk.counts[a])
		s := starts[lane]
		copy(res.Indices[pos:pos+c], blk.indices[s:s+c])
		copy(res.Distances[pos:pos+c], blk.distances[s:s+c])
		res.Ranges[orig] = Range{Start: pos, End: pos + c}
		pos += c
		if blk.truncated[a] {
			res.Truncated = append(res.Truncated, uint32(orig))
		}
	}
}

// blockTask searches one lhs 128-block.
type blockTask struct {
	req      *Request
	rhsIndex []uint32
	block    int
	slots    *slotBuffer

	d2     [bvh.SuperAtoms]float32
	tmp    [2 * bvh.SuperAtoms]float32
	pairs  [simd.Width * simd.Width]float32
	supers []int
	blocks []int
}

// search collects every overlapping pair of the block into the slots.
func (t *blockTask) search() {
	lhs, rhs := t.req.LHS, t.req.RHS
	s := t.block

	t.supers = t.overlapping(t.supers[:0], lhs.L128, s, rhs.L128, 0, rhs.Supers())
	if len(t.supers) == 0 {
		return
	}

	for lb := s * blocksPerSuper; lb < (s+1)*blocksPerSuper; lb++ {
		t.blocks = t.blocks[:0]
		for _, rs := range t.supers {
			t.blocks = t.overlapping(t.blocks, lhs.L32, lb, rhs.L32, rs*blocksPerSuper, (rs+1)*blocksPerSuper)
		}
		if len(t.blocks) == 0 {
			continue
		}
		for lg := lb * groupsPerBlock; lg < (lb+1)*groupsPerBlock; lg++ {
			if isNaN(lhs.L8.X[lg]) {
				continue
			}
			for _, rb := range t.blocks {
				for rg := rb * groupsPerBlock; rg < (rb+1)*groupsPerBlock; rg++ {
					if spheresOverlap(lhs.L8, lg, rhs.L8, rg) {
						t.pairGroup(lg, rg)
					}
				}
			}
		}
	}
}

// overlapping appends to dst the rhs groups in [lo, hi) whose spheres
// overlap lhs group g. Centre distances are computed as one batch.
func (t *blockTask) overlapping(dst []int, l bvh.Level, g int, r bvh.Level, lo, hi int) []int {
	cx, cy, cz, cr := l.X[g], l.Y[g], l.Z[g], l.R[g]
	if isNaN(cx) {
		return dst
	}
	for start := lo; start < hi; start += len(t.d2) {
		end := min(start+len(t.d2), hi)
		d2 := t.d2[:end-start]
		simd.SquaredDistances(d2, t.tmp[:2*(end-start)], cx, cy, cz, r.X[start:end], r.Y[start:end], r.Z[start:end])
		for i, d := range d2 {
			reach := cr + r.R[start+i]
			if d <= reach*reach {
				dst = append(dst, start+i)
			}
		}
	}
	return dst
}

func spheresOverlap(l bvh.Level, i int, r bvh.Level, j int) bool {
	dx := l.X[i] - r.X[j]
	dy := l.Y[i] - r.Y[j]
	dz := l.Z[i] - r.Z[j]
	reach := l.R[i] + r.R[j]
	return dx*dx+dy*dy+dz*dz <= reach*reach
}

// pairGroup runs the exact test between lhs group lg and rhs group rg.
func (t *blockTask) pairGroup(lg, rg int) {
	req := t.req
	mask := simd.PairMask(req.LHS.Lanes(lg), req.RHS.Lanes(rg), &t.pairs)
	if req.Self && lg == rg {
		mask &^= simd.DiagonalMask
	}
	base := lg*simd.Width - t.block*bvh.SuperAtoms
	for mask != 0 {
		bit := bits.TrailingZeros64(mask)
		mask &= mask - 1
		i, j := bit/simd.Width, bit%simd.Width
		t.slots.insert(base+i, entry{d2: t.pairs[bit], idx: t.rhsIndex[rg*simd.Width+j]})
	}
}

// compact sorts and truncates every list of the block into out.
func (t *blockTask) compact(out *blockResult) {
	k := t.req.MaxNeighbors
	first := t.block * bvh.SuperAtoms
	atoms := min(bvh.SuperAtoms, t.req.LHS.Count-first)

	total := 0
	for a := 0; a < atoms; a++ {
		total += min(t.slots.counts[a], k)
	}
	out.indices = make([]uint32, 0, total)
	out.distances = make([]float32, 0, total)

	for a := 0; a < atoms; a++ {
		list, full := t.slots.sorted(a)
		kept := 0
		for _, e := range list {
			if kept == k {
				break
			}
			if e.idx == padIndex {
				continue
			}
			out.indices = append(out.indices, e.idx)
			out.distances = append(out.distances, float32(math.Sqrt(float64(e.d2))))
			kept++
		}
		out.counts[a] = uint8(kept)
		// With capacity k+1, a full buffer means more than k neighbors.
		out.truncated[a] = full
	}
}

func isNaN(f float32) bool { return f != f }
