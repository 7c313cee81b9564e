// Package molgeo provides the spatial indexing core of a molecular
// geometry toolkit.
//
// Given atoms (positions in nanometres and their elements), an Engine
//
//   - reorders them so that atoms close in space are close in memory,
//   - finds every pair of atoms within a cutoff, between two sets or
//     within one, and
//   - builds the atom to bonded-neighbor table of a bond list.
//
// # Quick Start
//
//	eng, _ := molgeo.New(molgeo.WithLogLevel(slog.LevelDebug))
//	defer eng.Close()
//
//	atoms := []molgeo.Atom{
//	    {Position: molgeo.Position{0, 0, 0}, Element: element.Carbon},
//	    {Position: molgeo.Position{0, 0, 0.15}, Element: element.Carbon},
//	}
//
//	// Self-match: atoms closer than 1.5× the sum of their covalent radii.
//	res, _ := eng.Match(atoms, nil, molgeo.CovalentBondLength(1.5), 4)
//	fmt.Println(res.Neighbors(0), res.NeighborDistances(0)) // [1] [0.15]
//
// # Reordering
//
// Reorder returns a Permutation with perm[original] = new. The caller
// owns the atom and bond arrays and keeps them consistent:
//
//	perm, _ := eng.ReorderAtoms(atoms)
//	atoms = perm.ApplyAtoms(atoms)
//	bonds = perm.ApplyBonds(bonds)
//
// Small inputs are sorted by one octree descent. Large inputs are bucketed
// into a coarse grid first, and every occupied cell is refined on the
// worker pool (see Config.ReorderPolicy).
//
// # Matching
//
// Match reorders both sets, groups them into 8, 32 and 128 atom blocks
// with bounding spheres, and runs the exact pair test only for blocks
// whose spheres overlap. Lists are capped at maxNeighbors entries; capped
// atoms are reported in MatchResult.Truncated.
//
// # Connectivity
//
// BuildConnectivityMap stores up to eight bonded neighbors per atom.
// Atoms with more bonds are flagged as overflowed; which neighbors they
// keep is unspecified.
//
// # Configuration
//
// Tuning knobs live in Config, which can be loaded from YAML with
// LoadConfig. The SIMD kernel selection can be forced with the
// MOLGEO_SIMD environment variable (generic, neon, avx2, avx512).
package molgeo
