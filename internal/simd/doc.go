// Package simd provides the lane kernels used by the neighbour search.
//
// # Kernels
//
//   - PairMask: exact 8×8 pair test between two lane groups, returning a
//     64-bit match mask and the squared distances of all 64 pairs.
//   - SquaredDistances: squared distances from one point to a column of
//     points (block centres), backed by github.com/viterin/vek.
//
// Runtime CPU feature detection (golang.org/x/sys/cpu) selects the kernel
// set. The MOLGEO_SIMD environment variable forces a specific ISA when it
// is available on the running CPU.
package simd
