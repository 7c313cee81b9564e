// Package testutil provides testing utilities for molgeo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating atom positions, computing exact
// neighbor lists by brute force, and checking permutations.
//
// # Position Generation
//
//	rng := testutil.NewRNG(seed)
//	xs, ys, zs := rng.UniformPoints(1000, 5.0)   // cube of side 5 nm
//	xs, ys, zs = testutil.Lattice(3, 3, 3, 0.15)  // simple cubic lattice
//
// # Exact Matching (Ground Truth)
//
//	truth := testutil.BruteForce(lhs, rhs, true)
package testutil
