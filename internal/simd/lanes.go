package simd

import "github.com/viterin/vek/vek32"

// Width is the number of atoms in one lane group.
const Width = 8

// DiagonalMask has the bits of pairs (i, i) set. Clearing it removes
// self pairs when a lane group is tested against itself.
const DiagonalMask uint64 = 0x8040201008040201

// Lanes is one 8-atom group in structure-of-arrays form.
type Lanes struct {
	X, Y, Z, R *[Width]float32
}

// LanesAt returns the lane group g of the given columns.
//
// The columns must hold at least (g+1)*Width values.
func LanesAt(x, y, z, r []float32, g int) Lanes {
	lo := g * Width
	hi := lo + Width
	return Lanes{
		X: (*[Width]float32)(x[lo:hi]),
		Y: (*[Width]float32)(y[lo:hi]),
		Z: (*[Width]float32)(z[lo:hi]),
		R: (*[Width]float32)(r[lo:hi]),
	}
}

// kernelSet is the pair of kernels used for one ISA.
type kernelSet struct {
	name             string
	pairMask         func(a, b Lanes, d2 *[Width * Width]float32) uint64
	squaredDistances func(dst, tmp []float32, cx, cy, cz float32, xs, ys, zs []float32)
}

var (
	genericKernels = kernelSet{"generic", pairMaskGeneric, squaredDistancesGeneric}
	// vek only has AVX2 assembly; elsewhere its pure Go path is slower
	// than the fused scalar loop.
	rowKernels = kernelSet{"rows", pairMaskRows, squaredDistancesGeneric}
	vekKernels = kernelSet{"rows+vek", pairMaskRows, squaredDistancesVek}
)

func kernelsFor(isa ISA) kernelSet {
	switch isa {
	case AVX2, AVX512:
		return vekKernels
	case NEON:
		return rowKernels
	default:
		return genericKernels
	}
}

var (
	activeKernels        = genericKernels
	pairMaskImpl         = pairMaskGeneric
	squaredDistancesImpl = squaredDistancesGeneric
)

func selectKernels() {
	activeKernels = kernelsFor(activeISA)
	pairMaskImpl = activeKernels.pairMask
	squaredDistancesImpl = activeKernels.squaredDistances
}

// PairMask tests all 64 pairs of two lane groups.
//
// Bit i*8+j of the result is set when |a_i - b_j|² <= (r_i + r_j)².
// d2[i*8+j] receives the squared distance of every pair. NaN coordinates
// never match.
func PairMask(a, b Lanes, d2 *[Width * Width]float32) uint64 {
	return pairMaskImpl(a, b, d2)
}

func pairMaskGeneric(a, b Lanes, d2 *[Width * Width]float32) uint64 {
	var mask uint64
	for i := 0; i < Width; i++ {
		for j := 0; j < Width; j++ {
			dx := a.X[i] - b.X[j]
			dy := a.Y[i] - b.Y[j]
			dz := a.Z[i] - b.Z[j]
			d := dx*dx + dy*dy + dz*dz
			t := a.R[i] + b.R[j]
			d2[i*Width+j] = d
			if d <= t*t {
				mask |= 1 << uint(i*Width+j)
			}
		}
	}
	return mask
}

// pairMaskRows computes a full row of distances before comparing it, which
// keeps the compare pass free of loads the compiler cannot hoist.
func pairMaskRows(a, b Lanes, d2 *[Width * Width]float32) uint64 {
	var mask uint64
	bx, by, bz, br := b.X, b.Y, b.Z, b.R
	for i := 0; i < Width; i++ {
		xi, yi, zi, ri := a.X[i], a.Y[i], a.Z[i], a.R[i]
		row := (*[Width]float32)(d2[i*Width : i*Width+Width])
		var limit [Width]float32
		for j := 0; j < Width; j++ {
			dx := xi - bx[j]
			dy := yi - by[j]
			dz := zi - bz[j]
			row[j] = dx*dx + dy*dy + dz*dz
			t := ri + br[j]
			limit[j] = t * t
		}
		var bits uint64
		for j := 0; j < Width; j++ {
			bits |= b2u(row[j] <= limit[j]) << uint(j)
		}
		mask |= bits << uint(i*Width)
	}
	return mask
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// SquaredDistances writes the squared distance from (cx, cy, cz) to every
// point of the xs/ys/zs columns into dst. tmp is scratch of at least twice
// the column length.
func SquaredDistances(dst, tmp []float32, cx, cy, cz float32, xs, ys, zs []float32) {
	n := len(xs)
	if n == 0 {
		return
	}
	squaredDistancesImpl(dst[:n], tmp[:2*n], cx, cy, cz, xs, ys, zs)
}

func squaredDistancesGeneric(dst, _ []float32, cx, cy, cz float32, xs, ys, zs []float32) {
	for i := range dst {
		dx := xs[i] - cx
		dy := ys[i] - cy
		dz := zs[i] - cz
		dst[i] = dx*dx + dy*dy + dz*dz
	}
}

// squaredDistancesVek needs len(tmp) >= 2*len(dst). vek rejects aliased
// operands, so the difference and its square live in separate halves.
func squaredDistancesVek(dst, tmp []float32, cx, cy, cz float32, xs, ys, zs []float32) {
	n := len(dst)
	diff, sq := tmp[:n], tmp[n:2*n]

	vek32.SubNumber_Into(diff, xs, cx)
	vek32.Mul_Into(dst, diff, diff)

	vek32.SubNumber_Into(diff, ys, cy)
	vek32.Mul_Into(sq, diff, diff)
	vek32.Add_Inplace(dst, sq)

	vek32.SubNumber_Into(diff, zs, cz)
	vek32.Mul_Into(sq, diff, diff)
	vek32.Add_Inplace(dst, sq)
}

// Bounds returns the minimum and maximum of a non-empty column.
func Bounds(xs []float32) (lo, hi float32) {
	return vek32.Min(xs), vek32.Max(xs)
}

// Info describes the kernel selection for diagnostics.
type Info struct {
	ISA            ISA
	Kernels        string
	Overridden     bool
	VekFeatures    []string
	VekAccelerated bool
}

// RuntimeInfo reports the active kernel selection.
func RuntimeInfo() Info {
	vi := vek32.Info()
	return Info{
		ISA:            activeISA,
		Kernels:        activeKernels.name,
		Overridden:     hasOverride,
		VekFeatures:    vi.CPUFeatures,
		VekAccelerated: vi.Acceleration,
	}
}
