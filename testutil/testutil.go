package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Perm returns a pseudo-random permutation of [0, n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// UniformPoints generates n positions uniformly distributed in the cube
// [0, side)³, returned as x, y and z columns.
func (r *RNG) UniformPoints(n int, side float32) (xs, ys, zs []float32) {
	xs = make([]float32, n)
	ys = make([]float32, n)
	zs = make([]float32, n)
	r.FillUniformRange(xs, 0, side)
	r.FillUniformRange(ys, 0, side)
	r.FillUniformRange(zs, 0, side)
	return xs, ys, zs
}

// ClusteredPoints generates n positions around random centres inside the
// cube [0, side)³. Atom i belongs to cluster i % clusters and is displaced
// from its centre by Gaussian noise with the given spread.
func (r *RNG) ClusteredPoints(n, clusters int, spread, side float32) (xs, ys, zs []float32) {
	cx, cy, cz := r.UniformPoints(clusters, side)

	r.mu.Lock()
	defer r.mu.Unlock()

	xs = make([]float32, n)
	ys = make([]float32, n)
	zs = make([]float32, n)
	for i := range n {
		c := i % clusters
		xs[i] = cx[c] + float32(r.rand.NormFloat64())*spread
		ys[i] = cy[c] + float32(r.rand.NormFloat64())*spread
		zs[i] = cz[c] + float32(r.rand.NormFloat64())*spread
	}
	return xs, ys, zs
}

// Shuffle applies a random permutation to the columns in place and returns
// it: the atom now at i was at perm[i].
func (r *RNG) Shuffle(xs, ys, zs []float32) []int {
	perm := r.Perm(len(xs))
	ox := append([]float32(nil), xs...)
	oy := append([]float32(nil), ys...)
	oz := append([]float32(nil), zs...)
	for i, p := range perm {
		xs[i], ys[i], zs[i] = ox[p], oy[p], oz[p]
	}
	return perm
}

// Lattice returns the positions of a simple cubic nx×ny×nz lattice with the
// given spacing, x varying fastest.
func Lattice(nx, ny, nz int, spacing float32) (xs, ys, zs []float32) {
	n := nx * ny * nz
	xs = make([]float32, 0, n)
	ys = make([]float32, 0, n)
	zs = make([]float32, 0, n)
	for k := range nz {
		for j := range ny {
			for i := range nx {
				xs = append(xs, float32(i)*spacing)
				ys = append(ys, float32(j)*spacing)
				zs = append(zs, float32(k)*spacing)
			}
		}
	}
	return xs, ys, zs
}

// Cloud is a set of spheres in column form.
type Cloud struct {
	X, Y, Z, R []float32
}

// Len returns the number of spheres.
func (c Cloud) Len() int { return len(c.X) }

// Neighbor is one entry of an exact neighbor list.
type Neighbor struct {
	Index    uint32
	Distance float32
}

// BruteForce returns, for every lhs sphere, the rhs spheres it overlaps:
// |p_i - p_j|² <= (r_i + r_j)². Lists are sorted by distance, ties broken
// by index. When self is true, i never lists itself.
func BruteForce(lhs, rhs Cloud, self bool) [][]Neighbor {
	out := make([][]Neighbor, lhs.Len())
	for i := range lhs.Len() {
		var list []Neighbor
		for j := range rhs.Len() {
			if self && i == j {
				continue
			}
			dx := lhs.X[i] - rhs.X[j]
			dy := lhs.Y[i] - rhs.Y[j]
			dz := lhs.Z[i] - rhs.Z[j]
			d2 := dx*dx + dy*dy + dz*dz
			t := lhs.R[i] + rhs.R[j]
			if d2 <= t*t {
				list = append(list, Neighbor{Index: uint32(j), Distance: float32(math.Sqrt(float64(d2)))})
			}
		}
		SortNeighbors(list)
		out[i] = list
	}
	return out
}

// SortNeighbors orders a neighbor list by distance, then index.
func SortNeighbors(list []Neighbor) {
	sort.Slice(list, func(a, b int) bool {
		if list[a].Distance != list[b].Distance {
			return list[a].Distance < list[b].Distance
		}
		return list[a].Index < list[b].Index
	})
}

// IsPermutation reports whether order holds every index in [0, len) once.
func IsPermutation(order []uint32) bool {
	seen := make([]bool, len(order))
	for _, v := range order {
		if int(v) >= len(order) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
