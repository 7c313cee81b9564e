package molgeo

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"slices"
	"testing"

	"github.com/hupe1980/molgeo/element"
	"github.com/hupe1980/molgeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()
	eng, err := New(optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func carbons(xs, ys, zs []float32) []Atom {
	atoms := make([]Atom, len(xs))
	for i := range atoms {
		atoms[i] = Atom{Position: Position{xs[i], ys[i], zs[i]}, Element: element.Carbon}
	}
	return atoms
}

func TestTwoCarbons(t *testing.T) {
	eng := newEngine(t)
	atoms := []Atom{
		{Position: Position{0, 0, 0}, Element: element.Carbon},
		{Position: Position{0, 0, 0.15}, Element: element.Carbon},
	}

	res, err := eng.Match(atoms, nil, CovalentBondLength(1.5), 8)
	require.NoError(t, err)

	require.Equal(t, 2, res.Len())
	assert.Equal(t, []uint32{1}, res.Neighbors(0))
	assert.Equal(t, []uint32{0}, res.Neighbors(1))
	assert.InDelta(t, 0.15, res.NeighborDistances(0)[0], 1e-6)
	assert.InDelta(t, 0.15, res.NeighborDistances(1)[0], 1e-6)
	assert.True(t, res.Truncated.IsEmpty())
}

func TestMatchSameSliceIsSelfMatch(t *testing.T) {
	eng := newEngine(t)
	atoms := []Atom{
		{Position: Position{0, 0, 0}, Element: element.Carbon},
		{Position: Position{0, 0, 0.15}, Element: element.Carbon},
	}

	res, err := eng.Match(atoms, atoms, CovalentBondLength(1.5), 8)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, res.Neighbors(0))
	assert.Equal(t, []uint32{0}, res.Neighbors(1))

	// A copy is a different operand, so every atom finds its twin.
	cross, err := eng.Match(atoms, slices.Clone(atoms), CovalentBondLength(1.5), 8)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, cross.Neighbors(0))
	assert.Equal(t, []uint32{1, 0}, cross.Neighbors(1))
	assert.Zero(t, cross.NeighborDistances(0)[0])
}

func TestLatticeNeighborCounts(t *testing.T) {
	for _, policy := range []ReorderPolicy{PolicyOctree, PolicyGrid} {
		t.Run(policy.String(), func(t *testing.T) {
			eng := newEngine(t, WithReorderPolicy(policy))
			xs, ys, zs := testutil.Lattice(3, 3, 3, 0.2)

			res, err := eng.Match(carbons(xs, ys, zs), nil, AbsoluteRadius(0.25), 16)
			require.NoError(t, err)

			for i := range 27 {
				// 3 neighbors plus one per axis where the atom sits in the middle.
				want := 3
				for _, c := range []int{i % 3, i / 3 % 3, i / 9} {
					if c == 1 {
						want++
					}
				}
				assert.Len(t, res.Neighbors(i), want, "atom %d", i)
				for _, d := range res.NeighborDistances(i) {
					assert.InDelta(t, 0.2, d, 1e-6)
				}
			}
		})
	}
}

func TestMatchAgreesWithBruteForce(t *testing.T) {
	rng := testutil.NewRNG(42)
	lx, ly, lz := rng.ClusteredPoints(900, 6, 0.3, 3)
	rx, ry, rz := rng.UniformPoints(1300, 3)
	lhs, rhs := carbons(lx, ly, lz), carbons(rx, ry, rz)

	radii := func(n int) []float32 {
		rs := make([]float32, n)
		for i := range rs {
			rs[i] = 1.3 * element.Carbon.CovalentRadius()
		}
		return rs
	}
	truth := testutil.BruteForce(
		testutil.Cloud{X: lx, Y: ly, Z: lz, R: radii(900)},
		testutil.Cloud{X: rx, Y: ry, Z: rz, R: radii(1300)},
		false,
	)

	for _, policy := range []ReorderPolicy{PolicyOctree, PolicyGrid} {
		eng := newEngine(t, WithReorderPolicy(policy), WithWorkers(4))
		res, err := eng.Match(lhs, rhs, CovalentBondLength(1.3), 64)
		require.NoError(t, err)
		require.Equal(t, 900, res.Len())

		for i, want := range truth {
			got := res.Neighbors(i)
			require.Len(t, got, len(want), "atom %d", i)
			for e := range want {
				assert.Equal(t, want[e].Index, got[e], "atom %d entry %d", i, e)
			}
		}
	}
}

func TestSelfMatchProperties(t *testing.T) {
	eng := newEngine(t)
	xs, ys, zs := testutil.NewRNG(7).UniformPoints(2000, 3)
	atoms := carbons(xs, ys, zs)

	res, err := eng.Match(atoms, nil, AbsoluteRadius(0.3), 100)
	require.NoError(t, err)
	require.True(t, res.Truncated.IsEmpty())

	var start uint32
	for i := range atoms {
		r := res.Ranges[i]
		assert.Equal(t, start, r.Start)
		start = r.End

		dist := res.NeighborDistances(i)
		for e, j := range res.Neighbors(i) {
			assert.NotEqual(t, uint32(i), j, "self listed")
			assert.LessOrEqual(t, dist[e], float32(0.3)+1e-6)
			assert.Contains(t, res.Neighbors(int(j)), uint32(i), "pair %d-%d", i, j)
			if e > 0 {
				assert.GreaterOrEqual(t, dist[e], dist[e-1])
			}
		}
	}
	assert.Equal(t, int(start), res.Pairs())

	again, err := eng.Match(atoms, nil, AbsoluteRadius(0.3), 100)
	require.NoError(t, err)
	assert.Equal(t, res.Indices, again.Indices)
	assert.Equal(t, res.Ranges, again.Ranges)
}

func TestMatchTruncation(t *testing.T) {
	eng := newEngine(t)
	xs, ys, zs := testutil.Lattice(5, 5, 5, 0.1)

	res, err := eng.Match(carbons(xs, ys, zs), nil, AbsoluteRadius(0.25), 5)
	require.NoError(t, err)

	for i := range 125 {
		assert.LessOrEqual(t, len(res.Neighbors(i)), 5)
	}
	// The centre atom has far more than five neighbors within 0.25 nm.
	assert.True(t, res.IsTruncated(62))
	assert.Len(t, res.Neighbors(62), 5)
	for _, d := range res.NeighborDistances(62) {
		assert.InDelta(t, 0.1, d, 1e-6)
	}
}

func TestMatchEmpty(t *testing.T) {
	eng := newEngine(t)
	atoms := carbons([]float32{0, 1}, []float32{0, 0}, []float32{0, 0})

	res, err := eng.Match(nil, nil, AbsoluteRadius(1), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	res, err = eng.Match(atoms, []Atom{}, AbsoluteRadius(1), 4)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Empty(t, res.Neighbors(0))
	assert.Empty(t, res.Neighbors(1))
}

func TestMatchErrors(t *testing.T) {
	eng := newEngine(t)
	atoms := carbons([]float32{0}, []float32{0}, []float32{0})

	_, err := eng.Match(atoms, nil, AbsoluteRadius(0), 4)
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = eng.Match(atoms, nil, AbsoluteRadius(float32(math.NaN())), 4)
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = eng.Match(atoms, nil, Cutoff{}, 4)
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = eng.Match(atoms, nil, AbsoluteRadius(1), 0)
	assert.ErrorIs(t, err, ErrInvalidMaxNeighbors)

	assert.Panics(t, func() { _, _ = eng.Match(atoms, nil, AbsoluteRadius(1), MaxNeighborsLimit) })

	unknown := []Atom{{Element: element.Element(0)}}
	_, err = eng.Match(unknown, nil, CovalentBondLength(1.2), 4)
	assert.ErrorIs(t, err, ErrUnknownElement)
	var ia *ErrInvalidAtom
	require.True(t, errors.As(err, &ia))
	assert.Equal(t, 0, ia.Index)

	// Absolute radii do not need the element table.
	_, err = eng.Match(unknown, nil, AbsoluteRadius(1), 4)
	assert.NoError(t, err)

	bad := []Atom{{}, {Position: Position{0, float32(math.Inf(1)), 0}}}
	_, err = eng.Match(bad, nil, AbsoluteRadius(1), 4)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestReorder(t *testing.T) {
	eng := newEngine(t)
	xs, ys, zs := testutil.Lattice(8, 8, 8, 0.15)
	testutil.NewRNG(1).Shuffle(xs, ys, zs)
	atoms := carbons(xs, ys, zs)

	perm, err := eng.ReorderAtoms(atoms)
	require.NoError(t, err)
	require.True(t, perm.Valid(len(atoms)))

	inv := perm.Inverse()
	for i := range perm {
		assert.Equal(t, uint32(i), inv[perm[i]])
	}

	sorted := perm.ApplyAtoms(atoms)
	for i, a := range atoms {
		assert.Equal(t, a, sorted[perm[i]])
	}

	empty, err := eng.Reorder(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = eng.Reorder([]Position{{0, float32(math.NaN()), 0}})
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestReorderDoesNotChangeMatch(t *testing.T) {
	eng := newEngine(t)
	xs, ys, zs := testutil.NewRNG(3).UniformPoints(500, 2)
	atoms := carbons(xs, ys, zs)

	perm, err := eng.ReorderAtoms(atoms)
	require.NoError(t, err)
	sorted := perm.ApplyAtoms(atoms)

	a, err := eng.Match(atoms, nil, CovalentBondLength(2), 50)
	require.NoError(t, err)
	b, err := eng.Match(sorted, nil, CovalentBondLength(2), 50)
	require.NoError(t, err)

	for i := range atoms {
		want := a.Neighbors(i)
		got := b.Neighbors(int(perm[i]))
		require.Len(t, got, len(want))
		for e := range want {
			assert.Equal(t, perm[want[e]], got[e])
		}
	}
}

func TestBuildConnectivityMap(t *testing.T) {
	eng := newEngine(t)

	cm, err := eng.BuildConnectivityMap(4, []Bond{{0, 1}, {1, 2}, {1, 3}})
	require.NoError(t, err)
	cm.Sort()
	assert.Equal(t, 4, cm.Len())
	assert.Equal(t, []uint32{0, 2, 3}, cm.Neighbors(1))
	assert.True(t, cm.Overflowed().IsEmpty())

	_, err = eng.BuildConnectivityMap(3, []Bond{{0, 1}, {2, 2}})
	assert.ErrorIs(t, err, ErrSelfBond)
	var ib *ErrInvalidBond
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, 1, ib.Index)
	assert.Equal(t, Bond{2, 2}, ib.Bond)

	_, err = eng.BuildConnectivityMap(3, []Bond{{0, 3}})
	assert.ErrorIs(t, err, ErrBondOutOfRange)

	_, err = eng.BuildConnectivityMap(-1, nil)
	assert.Error(t, err)
}

func TestConnectivityOverflow(t *testing.T) {
	eng := newEngine(t)
	var bonds []Bond
	for j := uint32(1); j <= 9; j++ {
		bonds = append(bonds, Bond{0, j})
	}

	cm, err := eng.BuildConnectivityMap(10, bonds)
	require.NoError(t, err)

	assert.True(t, cm.Sets[0].Overflow)
	assert.Len(t, cm.Neighbors(0), MaxBondedNeighbors)
	assert.Equal(t, []uint32{0}, cm.Overflowed().ToArray())
}

func TestClosedEngine(t *testing.T) {
	eng, err := New()
	require.NoError(t, err)
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	_, err = eng.Reorder([]Position{{0, 0, 0}})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = eng.Match(nil, nil, AbsoluteRadius(1), 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = eng.BuildConnectivityMap(1, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScratchMemoryLimit(t *testing.T) {
	eng := newEngine(t, WithScratchMemoryLimit(1024))
	xs, ys, zs := testutil.NewRNG(1).UniformPoints(1000, 2)

	_, err := eng.Match(carbons(xs, ys, zs), nil, AbsoluteRadius(0.2), 8)
	assert.ErrorIs(t, err, ErrScratchMemory)

	perm, err := eng.Reorder([]Position{{0, 0, 0}, {1, 1, 1}})
	require.NoError(t, err)
	assert.Len(t, perm, 2)
	assert.LessOrEqual(t, eng.PeakScratchMemory(), int64(1024))
}

func TestMetricsAndLogging(t *testing.T) {
	var buf bytes.Buffer
	metrics := &BasicMetricsCollector{}
	eng := newEngine(t,
		WithMetricsCollector(metrics),
		WithLogger(NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	xs, ys, zs := testutil.Lattice(3, 3, 3, 0.2)
	atoms := carbons(xs, ys, zs)

	_, err := eng.ReorderAtoms(atoms)
	require.NoError(t, err)
	_, err = eng.Match(atoms, nil, AbsoluteRadius(0.25), 2)
	require.NoError(t, err)
	_, err = eng.BuildConnectivityMap(2, []Bond{{0, 0}})
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.ReorderCount)
	assert.Equal(t, int64(27), stats.ReorderAtoms)
	assert.Equal(t, int64(1), stats.MatchCount)
	assert.Equal(t, int64(54), stats.MatchPairs)
	assert.Equal(t, int64(27), stats.MatchTruncated)
	assert.Equal(t, int64(1), stats.ConnectivityErrors)

	out := buf.String()
	assert.Contains(t, out, "reorder completed")
	assert.Contains(t, out, "match truncated neighbor lists")
	assert.Contains(t, out, "connectivity map failed")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridCellAtoms = 0

	_, err := New(WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func BenchmarkMatch(b *testing.B) {
	eng, err := New()
	require.NoError(b, err)
	defer eng.Close()

	xs, ys, zs := testutil.NewRNG(1).UniformPoints(100_000, 10)
	atoms := carbons(xs, ys, zs)

	for b.Loop() {
		_, _ = eng.Match(atoms, nil, CovalentBondLength(1.5), 16)
	}
}
