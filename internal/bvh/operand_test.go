package bvh

import (
	"math"
	"testing"

	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(n int) []uint32 {
	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	return order
}

func radii(n int, r float32) []float32 {
	rs := make([]float32, n)
	for i := range rs {
		rs[i] = r
	}
	return rs
}

func TestPaddedLen(t *testing.T) {
	assert.Equal(t, 0, PaddedLen(0))
	assert.Equal(t, 128, PaddedLen(1))
	assert.Equal(t, 128, PaddedLen(128))
	assert.Equal(t, 256, PaddedLen(129))
}

func TestBuildEmpty(t *testing.T) {
	op := Build(nil, nil, nil, nil, nil, nil)
	assert.Equal(t, 0, op.Count)
	assert.Empty(t, op.X)
	assert.Equal(t, 0, op.Supers())
}

func TestBuildGathersInOrder(t *testing.T) {
	xs := []float32{0, 1, 2}
	ys := []float32{10, 11, 12}
	zs := []float32{20, 21, 22}
	rs := []float32{0.1, 0.2, 0.3}

	op := Build(xs, ys, zs, rs, []uint32{2, 0, 1}, nil)

	assert.Equal(t, float32(2), op.X[0])
	assert.Equal(t, float32(10), op.Y[1])
	assert.Equal(t, float32(21), op.Z[2])
	assert.Equal(t, float32(0.3), op.R[0])
}

func TestPaddingIsNaN(t *testing.T) {
	xs, ys, zs := testutil.NewRNG(1).UniformPoints(130, 3)
	op := Build(xs, ys, zs, radii(130, 0.1), identity(130), nil)

	require.Len(t, op.X, 256)
	for lane := 130; lane < 256; lane++ {
		assert.True(t, math.IsNaN(float64(op.X[lane])))
		assert.True(t, math.IsNaN(float64(op.Y[lane])))
		assert.True(t, math.IsNaN(float64(op.Z[lane])))
	}

	// Group 16 (lanes 128..135) is partially filled, group 17 is padding only.
	assert.False(t, math.IsNaN(float64(op.L8.X[16])))
	assert.True(t, math.IsNaN(float64(op.L8.X[17])))
	assert.True(t, math.IsNaN(float64(op.L8.R[17])))
	assert.False(t, math.IsNaN(float64(op.L32.X[4])))
	assert.True(t, math.IsNaN(float64(op.L32.X[5])))
	assert.Equal(t, 2, op.Supers())
}

func TestSpheresContainMembers(t *testing.T) {
	rng := testutil.NewRNG(2)
	n := 1000
	xs, ys, zs := rng.ClusteredPoints(n, 5, 0.4, 10)
	rs := make([]float32, n)
	for i := range rs {
		rs[i] = 0.05 + rng.Float32()*0.1
	}

	op := Build(xs, ys, zs, rs, identity(n), nil)

	check := func(l Level, size int) {
		for g := 0; g < l.Len(); g++ {
			for lane := g * size; lane < min((g+1)*size, n); lane++ {
				dx := float64(op.X[lane] - l.X[g])
				dy := float64(op.Y[lane] - l.Y[g])
				dz := float64(op.Z[lane] - l.Z[g])
				reach := math.Sqrt(dx*dx+dy*dy+dz*dz) + float64(op.R[lane])
				assert.LessOrEqual(t, reach, float64(l.R[g]), "size %d group %d lane %d", size, g, lane)
			}
		}
	}
	check(op.L8, GroupAtoms)
	check(op.L32, BlockAtoms)
	check(op.L128, SuperAtoms)
}

func TestBuildWithPoolMatchesSequential(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	// A full multiple of 128 keeps NaN padding out of the comparison.
	xs, ys, zs := testutil.NewRNG(3).UniformPoints(2048, 5)
	rs := radii(2048, 0.08)

	a := Build(xs, ys, zs, rs, identity(2048), nil)
	b := Build(xs, ys, zs, rs, identity(2048), pool)

	assert.Equal(t, a.L8, b.L8)
	assert.Equal(t, a.L32, b.L32)
	assert.Equal(t, a.L128, b.L128)
}

func TestBuildColumnMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		Build([]float32{1}, []float32{1}, []float32{1}, nil, []uint32{0}, nil)
	})
}

func TestLanes(t *testing.T) {
	xs, ys, zs := testutil.Lattice(16, 1, 1, 1)
	op := Build(xs, ys, zs, radii(16, 0.5), identity(16), nil)

	l := op.Lanes(1)
	assert.Equal(t, float32(8), l.X[0])
	assert.Equal(t, float32(15), l.X[7])
	assert.Equal(t, float32(0.5), l.R[3])
}
