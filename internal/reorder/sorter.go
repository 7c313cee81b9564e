// Package reorder computes a locality-preserving order of atom positions.
//
// The order is an octree traversal (a Morton-like Z order). Small inputs
// run one single-threaded descent from the bounding box; large inputs are
// first bucketed into a coarse grid whose occupied cells are then refined
// independently on the worker pool. Nodes that are expensive enough consult
// the work splitter to fan their children out across the pool.
package reorder

import (
	"fmt"
	"math"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/molgeo/internal/arena"
	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/internal/simd"
)

// MinLevelSize is the side length (nm) below which octree cells are not
// split. Two atoms sharing a terminal cell are closer than about 0.054 nm,
// well below any covalent bond length.
const MinLevelSize = 1.0 / 32

// Config holds the tuning knobs of the sorter.
type Config struct {
	// Policy selects octree, grid or automatic granularity.
	Policy Policy
	// OctreeThreshold is the atom count from which PolicyAuto uses the grid.
	OctreeThreshold int
	// GridCellAtoms is the average number of atoms per occupied grid cell.
	GridCellAtoms int
	// TargetTaskLatency is the desired latency of one parallel task.
	TargetTaskLatency time.Duration
	// MinSplitLatency is the estimated node latency below which the work
	// splitter is not consulted.
	MinSplitLatency time.Duration
	// LatencyPerAtomLevel is the estimated cost, in nanoseconds, of moving
	// one atom down one octree level.
	LatencyPerAtomLevel float64
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		Policy:              PolicyAuto,
		OctreeThreshold:     10_000,
		GridCellAtoms:       512,
		TargetTaskLatency:   20 * time.Microsecond,
		MinSplitLatency:     2500 * time.Nanosecond,
		LatencyPerAtomLevel: 2.5,
	}
}

// Sorter computes spatial orders. It holds no per-call state and is safe
// for concurrent use.
type Sorter struct {
	cfg  Config
	pool *parallel.Pool
}

// NewSorter creates a Sorter. A nil pool runs every policy on the calling
// goroutine.
func NewSorter(cfg Config, pool *parallel.Pool) *Sorter {
	def := DefaultConfig()
	if cfg.OctreeThreshold <= 0 {
		cfg.OctreeThreshold = def.OctreeThreshold
	}
	if cfg.GridCellAtoms <= 0 {
		cfg.GridCellAtoms = def.GridCellAtoms
	}
	if cfg.TargetTaskLatency <= 0 {
		cfg.TargetTaskLatency = def.TargetTaskLatency
	}
	if cfg.MinSplitLatency < 0 {
		cfg.MinSplitLatency = def.MinSplitLatency
	}
	if cfg.LatencyPerAtomLevel <= 0 {
		cfg.LatencyPerAtomLevel = def.LatencyPerAtomLevel
	}
	return &Sorter{cfg: cfg, pool: pool}
}

// UsesGrid reports whether an input of n atoms takes the grid+octree path.
func (s *Sorter) UsesGrid(n int) bool {
	switch s.cfg.Policy {
	case PolicyGrid:
		return true
	case PolicyOctree:
		return false
	default:
		return n >= s.cfg.OctreeThreshold
	}
}

// ScratchBytes estimates the scratch memory of sorting n atoms.
func ScratchBytes(n int) int64 {
	// order + tmp + keys + grid rank table (bounded by n) + verification bits.
	return int64(n)*4*4 + int64(n)/8
}

// Sort returns the spatial order of the atoms: order[new] = original.
// The columns hold the x, y and z coordinates of every atom.
func (s *Sorter) Sort(xs, ys, zs []float32) []uint32 {
	n := len(xs)
	if len(ys) != n || len(zs) != n {
		panic(fmt.Sprintf("reorder: column length mismatch %d/%d/%d", len(xs), len(ys), len(zs)))
	}
	if uint64(n) > math.MaxUint32 {
		panic(fmt.Sprintf("reorder: %d atoms exceed 32-bit indices", n))
	}

	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	if n <= 1 {
		return order
	}

	b := boundsOf(xs, ys, zs)
	useGrid := s.UsesGrid(n)

	var g grid
	rankWords := 0
	if useGrid {
		g = planGrid(b, n, s.cfg.GridCellAtoms)
		rankWords = g.cells()
	}

	ar := arena.New[uint32](2*n + rankWords)
	w := &walker{
		xs:    xs,
		ys:    ys,
		zs:    zs,
		order: order,
		tmp:   ar.MustAlloc(n),
		keys:  ar.MustAlloc(n),
		cfg:   s.cfg,
	}

	if useGrid {
		w.pool = s.pool
		w.sortGrid(g, ar.MustAlloc(rankWords))
	} else {
		size := rootSize(b.largest())
		w.descend(0, n, b.rootCenter(size), size)
	}

	verifyPermutation(order)
	return order
}

// verifyPermutation panics unless order holds every index exactly once.
func verifyPermutation(order []uint32) {
	seen := bitset.New(uint(len(order)))
	for _, v := range order {
		if int(v) >= len(order) || seen.Test(uint(v)) {
			panic(fmt.Sprintf("reorder: partition lost atoms (index %d of %d)", v, len(order)))
		}
		seen.Set(uint(v))
	}
}

// box is an axis-aligned bounding box.
type box struct {
	min, max [3]float64
}

func boundsOf(xs, ys, zs []float32) box {
	var b box
	for axis, col := range [3][]float32{xs, ys, zs} {
		lo, hi := simd.Bounds(col)
		b.min[axis] = float64(lo)
		b.max[axis] = float64(hi)
	}
	return b
}

func (b box) extent() [3]float64 {
	return [3]float64{b.max[0] - b.min[0], b.max[1] - b.min[1], b.max[2] - b.min[2]}
}

func (b box) largest() float64 {
	e := b.extent()
	return max(e[0], e[1], e[2])
}

// rootCenter returns the centre of the cube of the given size whose low
// corner is the box minimum, so halving splits align with the box.
func (b box) rootCenter(size float64) [3]float64 {
	h := size / 2
	return [3]float64{b.min[0] + h, b.min[1] + h, b.min[2] + h}
}

// rootSize returns the smallest MinLevelSize·2^k covering extent.
func rootSize(extent float64) float64 {
	s := MinLevelSize
	for s < extent {
		s *= 2
	}
	return s
}
