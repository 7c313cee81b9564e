package reorder

import (
	"fmt"
	"math"

	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/internal/worksplit"
)

// walker carries the shared buffers of one Sort call. Every recursive step
// works on a half-open range [lo, hi) of order, tmp and keys that no other
// task touches.
type walker struct {
	xs, ys, zs []float32
	order      []uint32
	tmp        []uint32
	keys       []uint32
	cfg        Config
	pool       *parallel.Pool // nil: never fan out
}

// octant returns the 3-bit child key of a position relative to center.
// Positions on a midplane belong to the upper child.
func octant(x, y, z float32, center [3]float64) uint32 {
	var k uint32
	if float64(x) >= center[0] {
		k |= 1
	}
	if float64(y) >= center[1] {
		k |= 2
	}
	if float64(z) >= center[2] {
		k |= 4
	}
	return k
}

// childCenter offsets center by ±offset on each axis according to key.
func childCenter(center [3]float64, key int, offset float64) [3]float64 {
	c := center
	for axis := 0; axis < 3; axis++ {
		if key&(1<<axis) != 0 {
			c[axis] += offset
		} else {
			c[axis] -= offset
		}
	}
	return c
}

// partition reorders order[lo:hi] into eight runs by octant and returns the
// run boundaries: run k is order[spans[k]:spans[k+1]].
func (w *walker) partition(lo, hi int, center [3]float64) [worksplit.MaxChildren + 1]int {
	idx := w.order[lo:hi]
	keys := w.keys[lo:hi]
	tmp := w.tmp[lo:hi]

	var counts [worksplit.MaxChildren]int
	for i, a := range idx {
		k := octant(w.xs[a], w.ys[a], w.zs[a], center)
		keys[i] = k
		counts[k]++
	}

	var spans [worksplit.MaxChildren + 1]int
	var next [worksplit.MaxChildren]int
	spans[0] = lo
	for k := 0; k < worksplit.MaxChildren; k++ {
		next[k] = spans[k] - lo
		spans[k+1] = spans[k] + counts[k]
	}
	if spans[worksplit.MaxChildren] != hi {
		panic(fmt.Sprintf("reorder: octant counts %d do not cover node of %d atoms", spans[worksplit.MaxChildren]-lo, hi-lo))
	}

	for i, a := range idx {
		k := keys[i]
		tmp[next[k]] = a
		next[k]++
	}
	copy(idx, tmp)
	return spans
}

// latency estimates the cost of sorting n atoms in a node of the given size.
func (w *walker) latency(n int, size float64) float64 {
	depth := math.Log2(size / MinLevelSize)
	if depth < 1 {
		depth = 1
	}
	return float64(n) * depth * w.cfg.LatencyPerAtomLevel
}

// descend sorts order[lo:hi], a node of side size centred at center.
func (w *walker) descend(lo, hi int, center [3]float64, size float64) {
	n := hi - lo
	if n <= 1 {
		return
	}
	childSize := size / 2
	if childSize < MinLevelSize {
		return
	}

	spans := w.partition(lo, hi, center)

	if w.pool != nil && w.latency(n, size) > float64(w.cfg.MinSplitLatency.Nanoseconds()) {
		var lat [worksplit.MaxChildren]float64
		for k := 0; k < worksplit.MaxChildren; k++ {
			if c := spans[k+1] - spans[k]; c > 1 {
				lat[k] = w.latency(c, childSize)
			}
		}
		plan := worksplit.Split(lat, float64(w.cfg.TargetTaskLatency.Nanoseconds()))
		if plan.Tasks > 1 {
			g := w.pool.Group()
			for t := 1; t < plan.Tasks; t++ {
				g.Go(func() { w.descendTask(&spans, center, childSize, plan, t) })
			}
			w.descendTask(&spans, center, childSize, plan, 0)
			g.Wait()
			return
		}
	}

	for k := 0; k < worksplit.MaxChildren; k++ {
		w.descendChild(&spans, k, center, childSize)
	}
}

// descendTask sorts every child the plan assigned to task.
func (w *walker) descendTask(spans *[worksplit.MaxChildren + 1]int, center [3]float64, childSize float64, plan worksplit.Plan, task int) {
	for k := 0; k < worksplit.MaxChildren; k++ {
		if int(plan.Assignment[k]) == task {
			w.descendChild(spans, k, center, childSize)
		}
	}
}

func (w *walker) descendChild(spans *[worksplit.MaxChildren + 1]int, k int, center [3]float64, childSize float64) {
	lo, hi := spans[k], spans[k+1]
	if hi-lo > 1 {
		w.descend(lo, hi, childCenter(center, k, childSize/2), childSize)
	}
}
