// Package bvh builds the three-level bounding-sphere hierarchy that the
// matcher prunes with.
//
// An Operand stores atoms in structure-of-arrays lanes padded to a
// multiple of 128. Groups of 8, 32 and 128 consecutive atoms each carry a
// bounding sphere. Padding atoms have NaN coordinates and padding-only
// groups have NaN centres, so neither can pass a distance comparison.
package bvh

import (
	"fmt"
	"math"

	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/internal/simd"
)

// Group sizes of the three levels.
const (
	GroupAtoms = simd.Width
	BlockAtoms = 32
	SuperAtoms = 128
)

// radiusSlack inflates every padded radius, relative to the radius and the
// magnitude of the centre, so that float32 rounding in the sphere test can
// never prune a pair the atom test would accept.
const radiusSlack = 1e-5

// Level holds one bounding sphere per group.
type Level struct {
	X, Y, Z, R []float32
}

// Len returns the number of groups.
func (l Level) Len() int { return len(l.X) }

func newLevel(n int) Level {
	buf := make([]float32, 4*n)
	return Level{X: buf[:n:n], Y: buf[n : 2*n : 2*n], Z: buf[2*n : 3*n : 3*n], R: buf[3*n:]}
}

// Operand is one side of a match in lane layout.
type Operand struct {
	// Count is the number of real atoms. Lanes past Count are padding.
	Count int
	// X, Y, Z and R are the padded atom columns.
	X, Y, Z, R []float32
	// L8, L32 and L128 are the bounding spheres of the 8, 32 and 128 atom
	// groups.
	L8, L32, L128 Level
}

// PaddedLen returns n rounded up to a multiple of SuperAtoms.
func PaddedLen(n int) int {
	return (n + SuperAtoms - 1) / SuperAtoms * SuperAtoms
}

// Build gathers the atoms in order (order[lane] = source index) into a new
// Operand and computes its bounding spheres. A nil pool builds on the
// calling goroutine.
func Build(xs, ys, zs, rs []float32, order []uint32, pool *parallel.Pool) *Operand {
	n := len(order)
	if len(xs) != n || len(ys) != n || len(zs) != n || len(rs) != n {
		panic(fmt.Sprintf("bvh: %d atoms but columns of %d/%d/%d/%d", n, len(xs), len(ys), len(zs), len(rs)))
	}

	padded := PaddedLen(n)
	buf := make([]float32, 4*padded)
	op := &Operand{
		Count: n,
		X:     buf[:padded:padded],
		Y:     buf[padded : 2*padded : 2*padded],
		Z:     buf[2*padded : 3*padded : 3*padded],
		R:     buf[3*padded:],
		L8:    newLevel(padded / GroupAtoms),
		L32:   newLevel(padded / BlockAtoms),
		L128:  newLevel(padded / SuperAtoms),
	}

	nan := float32(math.NaN())
	for lane, src := range order {
		op.X[lane] = xs[src]
		op.Y[lane] = ys[src]
		op.Z[lane] = zs[src]
		op.R[lane] = rs[src]
	}
	for lane := n; lane < padded; lane++ {
		op.X[lane], op.Y[lane], op.Z[lane] = nan, nan, nan
	}

	supers := op.L128.Len()
	summarize := func(s int) {
		var d2 [SuperAtoms]float32
		var tmp [2 * SuperAtoms]float32
		op.summarize(&op.L128, SuperAtoms, s, d2[:], tmp[:])
		for b := s * 4; b < s*4+4; b++ {
			op.summarize(&op.L32, BlockAtoms, b, d2[:], tmp[:])
		}
		for g := s * 16; g < s*16+16; g++ {
			op.summarize(&op.L8, GroupAtoms, g, d2[:], tmp[:])
		}
	}
	if pool == nil {
		for s := 0; s < supers; s++ {
			summarize(s)
		}
	} else {
		pool.Run(supers, summarize)
	}
	return op
}

// summarize computes the sphere of group g of the given size: the centre
// of the members' bounding box and the largest |p - c| + r.
func (op *Operand) summarize(l *Level, size, g int, d2, tmp []float32) {
	lo := g * size
	hi := min(lo+size, op.Count)
	if hi <= lo {
		nan := float32(math.NaN())
		l.X[g], l.Y[g], l.Z[g], l.R[g] = nan, nan, nan, nan
		return
	}

	xs, ys, zs := op.X[lo:hi], op.Y[lo:hi], op.Z[lo:hi]
	var c [3]float32
	for axis, col := range [3][]float32{xs, ys, zs} {
		mn, mx := simd.Bounds(col)
		c[axis] = mn + (mx-mn)/2
	}

	simd.SquaredDistances(d2, tmp, c[0], c[1], c[2], xs, ys, zs)
	var radius float64
	for i, d := range d2[:hi-lo] {
		radius = max(radius, math.Sqrt(float64(d))+float64(op.R[lo+i]))
	}

	scale := radius
	for _, v := range c {
		scale = max(scale, math.Abs(float64(v)))
	}

	l.X[g], l.Y[g], l.Z[g] = c[0], c[1], c[2]
	l.R[g] = float32(radius + radiusSlack*(scale+1))
}

// Lanes returns the 8-atom lane group g.
func (op *Operand) Lanes(g int) simd.Lanes {
	return simd.LanesAt(op.X, op.Y, op.Z, op.R, g)
}

// Supers returns the number of 128-atom groups.
func (op *Operand) Supers() int { return op.L128.Len() }
