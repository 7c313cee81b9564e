package molgeo

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/molgeo/element"
	"github.com/hupe1980/molgeo/internal/connectivity"
)

// Position is a point in space, in nanometres.
type Position [3]float32

// Finite reports whether every coordinate is a finite number.
func (p Position) Finite() bool {
	for _, v := range p {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// Atom is a positioned element. The engine never mutates atoms.
type Atom struct {
	Position Position
	Element  element.Element
}

// Bond is an unordered pair of atom indices.
type Bond = connectivity.Bond

// Permutation maps original indices to new ones: perm[original] = new.
type Permutation []uint32

// Valid reports whether p is a bijection on [0, n).
func (p Permutation) Valid(n int) bool {
	if len(p) != n {
		return false
	}
	seen := bitset.New(uint(n))
	for _, v := range p {
		if int(v) >= n || seen.Test(uint(v)) {
			return false
		}
		seen.Set(uint(v))
	}
	return true
}

// Inverse returns the permutation mapping new indices back to original
// ones.
func (p Permutation) Inverse() Permutation {
	inv := make(Permutation, len(p))
	for orig, v := range p {
		inv[v] = uint32(orig)
	}
	return inv
}

func (p Permutation) mustCover(n int, what string) {
	if len(p) != n {
		panic(fmt.Sprintf("molgeo: permutation of %d indices applied to %d %s", len(p), n, what))
	}
}

// ApplyAtoms returns the atoms in permuted order: out[p[i]] = atoms[i].
func (p Permutation) ApplyAtoms(atoms []Atom) []Atom {
	p.mustCover(len(atoms), "atoms")
	out := make([]Atom, len(atoms))
	for i, a := range atoms {
		out[p[i]] = a
	}
	return out
}

// ApplyPositions returns the positions in permuted order.
func (p Permutation) ApplyPositions(positions []Position) []Position {
	p.mustCover(len(positions), "positions")
	out := make([]Position, len(positions))
	for i, pos := range positions {
		out[p[i]] = pos
	}
	return out
}

// ApplyBonds returns the bonds with both endpoints renumbered. Bond order
// is unchanged. Endpoints outside the permutation panic.
func (p Permutation) ApplyBonds(bonds []Bond) []Bond {
	out := make([]Bond, len(bonds))
	for i, b := range bonds {
		if int(b[0]) >= len(p) || int(b[1]) >= len(p) {
			panic(fmt.Sprintf("molgeo: bond %d (%d-%d) outside permutation of %d", i, b[0], b[1], len(p)))
		}
		out[i] = Bond{p[b[0]], p[b[1]]}
	}
	return out
}
