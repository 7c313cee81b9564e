package molgeo

import (
	"fmt"
	"math"

	"github.com/hupe1980/molgeo/element"
)

type cutoffKind uint8

const (
	cutoffNone cutoffKind = iota
	cutoffAbsolute
	cutoffCovalent
)

// Cutoff decides which atom pairs are neighbors. Every atom gets a
// radius, and two atoms match when their distance is at most the sum of
// their radii. The zero value is invalid.
type Cutoff struct {
	kind  cutoffKind
	value float32
}

// AbsoluteRadius matches every pair closer than r nanometres. Each atom
// gets radius r/2.
func AbsoluteRadius(r float32) Cutoff {
	return Cutoff{kind: cutoffAbsolute, value: r}
}

// CovalentBondLength matches pairs closer than scale times the sum of
// their covalent radii. Each atom gets radius scale × its covalent radius.
func CovalentBondLength(scale float32) Cutoff {
	return Cutoff{kind: cutoffCovalent, value: scale}
}

// Validate returns ErrInvalidCutoff for the zero value and for
// non-positive or non-finite parameters.
func (c Cutoff) Validate() error {
	v := float64(c.value)
	if c.kind == cutoffNone || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCutoff, c)
	}
	return nil
}

// Radius returns the matching radius of an atom of element e.
func (c Cutoff) Radius(e element.Element) (float32, error) {
	switch c.kind {
	case cutoffAbsolute:
		return c.value / 2, nil
	case cutoffCovalent:
		if !e.Valid() {
			return 0, fmt.Errorf("%w: atomic number %d", ErrUnknownElement, uint8(e))
		}
		return c.value * e.CovalentRadius(), nil
	default:
		return 0, ErrInvalidCutoff
	}
}

// String returns the string representation of a Cutoff.
func (c Cutoff) String() string {
	switch c.kind {
	case cutoffAbsolute:
		return fmt.Sprintf("absolute(%g nm)", c.value)
	case cutoffCovalent:
		return fmt.Sprintf("covalent(×%g)", c.value)
	default:
		return "none"
	}
}
