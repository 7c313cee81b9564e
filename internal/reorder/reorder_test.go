package reorder

import (
	"math"
	"testing"

	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sorterFor(policy Policy, pool *parallel.Pool) *Sorter {
	cfg := DefaultConfig()
	cfg.Policy = policy
	cfg.GridCellAtoms = 32
	return NewSorter(cfg, pool)
}

func TestSortTrivialInputs(t *testing.T) {
	s := NewSorter(DefaultConfig(), nil)

	assert.Empty(t, s.Sort(nil, nil, nil))
	assert.Equal(t, []uint32{0}, s.Sort([]float32{1}, []float32{2}, []float32{3}))
}

func TestSortColumnMismatchPanics(t *testing.T) {
	s := NewSorter(DefaultConfig(), nil)
	assert.Panics(t, func() { s.Sort([]float32{1, 2}, []float32{1}, []float32{1, 2}) })
}

func TestSortIsPermutation(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	rng := testutil.NewRNG(42)
	xs, ys, zs := rng.ClusteredPoints(5000, 20, 0.3, 8)

	for _, policy := range []Policy{PolicyAuto, PolicyOctree, PolicyGrid} {
		t.Run(policy.String(), func(t *testing.T) {
			order := sorterFor(policy, pool).Sort(xs, ys, zs)
			require.Len(t, order, len(xs))
			assert.True(t, testutil.IsPermutation(order))
		})
	}
}

func TestSortDuplicatePositionsKeepInputOrder(t *testing.T) {
	n := 100
	xs := make([]float32, n)
	ys := make([]float32, n)
	zs := make([]float32, n)
	for i := range xs {
		xs[i], ys[i], zs[i] = 1.5, -2, 0.25
	}

	for _, policy := range []Policy{PolicyOctree, PolicyGrid} {
		order := sorterFor(policy, nil).Sort(xs, ys, zs)
		for i, v := range order {
			assert.Equal(t, uint32(i), v)
		}
	}
}

func TestSortKeepsClustersContiguous(t *testing.T) {
	// Two tight clusters 10 nm apart, interleaved in the input.
	n := 400
	xs := make([]float32, n)
	ys := make([]float32, n)
	zs := make([]float32, n)
	rng := testutil.NewRNG(7)
	for i := range n {
		off := float32(0)
		if i%2 == 1 {
			off = 10
		}
		xs[i] = off + rng.Float32()*0.5
		ys[i] = rng.Float32() * 0.5
		zs[i] = rng.Float32() * 0.5
	}

	for _, policy := range []Policy{PolicyOctree, PolicyGrid} {
		order := sorterFor(policy, nil).Sort(xs, ys, zs)
		first := order[0] % 2
		for i := 0; i < n/2; i++ {
			assert.Equal(t, first, order[i]%2, "position %d", i)
		}
		for i := n / 2; i < n; i++ {
			assert.NotEqual(t, first, order[i]%2, "position %d", i)
		}
	}
}

func TestRootCubeAnchorsAtBoxMinimum(t *testing.T) {
	b := box{min: [3]float64{1, -2, 0}, max: [3]float64{11, 0, 0.5}}
	size := rootSize(b.largest())
	assert.GreaterOrEqual(t, size, 10.0)
	assert.Less(t, size, 20.0)

	c := b.rootCenter(size)
	for axis := range 3 {
		assert.InDelta(t, b.min[axis]+size/2, c[axis], 1e-12)
		assert.GreaterOrEqual(t, c[axis]+size/2, b.max[axis])
	}
}

func meanStep(xs, ys, zs []float32, order []uint32) float64 {
	var sum float64
	for i := 1; i < len(order); i++ {
		a, b := order[i-1], order[i]
		dx := float64(xs[a] - xs[b])
		dy := float64(ys[a] - ys[b])
		dz := float64(zs[a] - zs[b])
		sum += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return sum / float64(len(order)-1)
}

func TestSortImprovesLocalityOfShuffledLattice(t *testing.T) {
	xs, ys, zs := testutil.Lattice(16, 16, 16, 0.15)
	testutil.NewRNG(3).Shuffle(xs, ys, zs)

	identity := make([]uint32, len(xs))
	for i := range identity {
		identity[i] = uint32(i)
	}
	before := meanStep(xs, ys, zs, identity)

	for _, policy := range []Policy{PolicyOctree, PolicyGrid} {
		after := meanStep(xs, ys, zs, sorterFor(policy, nil).Sort(xs, ys, zs))
		assert.Less(t, after, before/4, policy.String())
		assert.Less(t, after, 0.3, policy.String())
	}
}

func TestGridWithPoolMatchesSequential(t *testing.T) {
	pool := parallel.NewPool(8)
	defer pool.Close()

	xs, ys, zs := testutil.NewRNG(11).UniformPoints(20000, 6)

	cfg := DefaultConfig()
	cfg.Policy = PolicyGrid
	// Force fan-out at every level.
	cfg.MinSplitLatency = 0
	cfg.TargetTaskLatency = 1

	parallelOrder := NewSorter(cfg, pool).Sort(xs, ys, zs)
	sequential := NewSorter(cfg, nil).Sort(xs, ys, zs)

	assert.Equal(t, sequential, parallelOrder)
}

func TestOctreeFanOutMatchesSequential(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	xs, ys, zs := testutil.NewRNG(5).UniformPoints(3000, 3)
	b := boundsOf(xs, ys, zs)

	run := func(p *parallel.Pool) []uint32 {
		order := make([]uint32, len(xs))
		for i := range order {
			order[i] = uint32(i)
		}
		cfg := DefaultConfig()
		cfg.MinSplitLatency = 0
		cfg.TargetTaskLatency = 1
		w := &walker{
			xs: xs, ys: ys, zs: zs,
			order: order,
			tmp:   make([]uint32, len(xs)),
			keys:  make([]uint32, len(xs)),
			cfg:   cfg,
			pool:  p,
		}
		size := rootSize(b.largest())
		w.descend(0, len(xs), b.rootCenter(size), size)
		return order
	}

	assert.Equal(t, run(nil), run(pool))
}

func TestOctantTieGoesToUpperChild(t *testing.T) {
	c := [3]float64{1, 1, 1}
	assert.Equal(t, uint32(7), octant(1, 1, 1, c))
	assert.Equal(t, uint32(0), octant(0.5, 0.5, 0.5, c))
	assert.Equal(t, uint32(5), octant(1, 0.99, 2, c))
}

func TestPartitionRunsAreOrderedByOctant(t *testing.T) {
	xs, ys, zs := testutil.NewRNG(9).UniformPoints(500, 2)
	order := make([]uint32, len(xs))
	for i := range order {
		order[i] = uint32(i)
	}
	w := &walker{xs: xs, ys: ys, zs: zs, order: order, tmp: make([]uint32, 500), keys: make([]uint32, 500)}
	center := [3]float64{1, 1, 1}

	spans := w.partition(0, 500, center)

	assert.Equal(t, 0, spans[0])
	assert.Equal(t, 500, spans[8])
	for k := 0; k < 8; k++ {
		for _, a := range order[spans[k]:spans[k+1]] {
			assert.Equal(t, uint32(k), octant(xs[a], ys[a], zs[a], center))
		}
	}
}

func TestMorton(t *testing.T) {
	assert.Equal(t, uint64(0), morton(0, 0, 0))
	assert.Equal(t, uint64(1), morton(1, 0, 0))
	assert.Equal(t, uint64(2), morton(0, 1, 0))
	assert.Equal(t, uint64(4), morton(0, 0, 1))
	assert.Equal(t, uint64(7), morton(1, 1, 1))
	assert.Equal(t, uint64(8), morton(2, 0, 0))
	assert.Equal(t, uint64(1)<<60, morton(1<<20, 0, 0))
}

func TestPlanGridBoundsCellCount(t *testing.T) {
	for _, n := range []int{1, 7, 100, 10_000, 250_000} {
		xs, ys, zs := testutil.NewRNG(int64(n)).UniformPoints(n, 40)
		g := planGrid(boundsOf(xs, ys, zs), n, 512)

		assert.LessOrEqual(t, g.cells(), max(n, 8), "n=%d", n)
		for axis := 0; axis < 3; axis++ {
			assert.Less(t, g.dims[axis], uint32(1)<<mortonBits)
		}
		// The side is a power-of-two multiple of the minimum level size.
		levels := math.Log2(g.side / MinLevelSize)
		assert.Equal(t, math.Round(levels), levels)
	}
}

func TestUsesGrid(t *testing.T) {
	assert.False(t, sorterFor(PolicyAuto, nil).UsesGrid(9_999))
	assert.True(t, sorterFor(PolicyAuto, nil).UsesGrid(10_000))
	assert.True(t, sorterFor(PolicyGrid, nil).UsesGrid(2))
	assert.False(t, sorterFor(PolicyOctree, nil).UsesGrid(1_000_000))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyAuto, "auto": PolicyAuto, "Octree": PolicyOctree, " grid ": PolicyGrid} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParsePolicy("kd")
	assert.Error(t, err)

	var p Policy
	require.NoError(t, p.UnmarshalText([]byte("grid")))
	assert.Equal(t, PolicyGrid, p)
	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "grid", string(text))
}

func BenchmarkSort(b *testing.B) {
	pool := parallel.NewPool(0)
	defer pool.Close()

	xs, ys, zs := testutil.NewRNG(1).UniformPoints(100_000, 10)
	s := NewSorter(DefaultConfig(), pool)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Sort(xs, ys, zs)
	}
}
