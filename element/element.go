// Package element provides the chemical elements the geometry core knows
// and their covalent radii.
package element

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownElement is returned for symbols or atomic numbers without an
// entry in the table.
var ErrUnknownElement = errors.New("unknown element")

// Element is an atomic number.
type Element uint8

// Elements with a covalent radius.
const (
	Hydrogen   Element = 1
	Helium     Element = 2
	Lithium    Element = 3
	Beryllium  Element = 4
	Boron      Element = 5
	Carbon     Element = 6
	Nitrogen   Element = 7
	Oxygen     Element = 8
	Fluorine   Element = 9
	Neon       Element = 10
	Sodium     Element = 11
	Magnesium  Element = 12
	Aluminium  Element = 13
	Silicon    Element = 14
	Phosphorus Element = 15
	Sulfur     Element = 16
	Chlorine   Element = 17
	Argon      Element = 18
	Potassium  Element = 19
	Calcium    Element = 20
	Scandium   Element = 21
	Titanium   Element = 22
	Vanadium   Element = 23
	Chromium   Element = 24
	Manganese  Element = 25
	Iron       Element = 26
	Cobalt     Element = 27
	Nickel     Element = 28
	Copper     Element = 29
	Zinc       Element = 30
	Gallium    Element = 31
	Germanium  Element = 32
	Arsenic    Element = 33
	Selenium   Element = 34
	Bromine    Element = 35
	Krypton    Element = 36
	Silver     Element = 47
	Tin        Element = 50
	Iodine     Element = 53
	Platinum   Element = 78
	Gold       Element = 79
)

type entry struct {
	symbol string
	radius float32 // nm
}

// Single-bond covalent radii (Cordero et al. 2008, low-spin where the
// table distinguishes spin states). Carbon uses the classic sp³ value.
var table = [...]entry{
	Hydrogen:   {"H", 0.031},
	Helium:     {"He", 0.028},
	Lithium:    {"Li", 0.128},
	Beryllium:  {"Be", 0.096},
	Boron:      {"B", 0.084},
	Carbon:     {"C", 0.077},
	Nitrogen:   {"N", 0.071},
	Oxygen:     {"O", 0.066},
	Fluorine:   {"F", 0.057},
	Neon:       {"Ne", 0.058},
	Sodium:     {"Na", 0.166},
	Magnesium:  {"Mg", 0.141},
	Aluminium:  {"Al", 0.121},
	Silicon:    {"Si", 0.111},
	Phosphorus: {"P", 0.107},
	Sulfur:     {"S", 0.105},
	Chlorine:   {"Cl", 0.102},
	Argon:      {"Ar", 0.106},
	Potassium:  {"K", 0.203},
	Calcium:    {"Ca", 0.176},
	Scandium:   {"Sc", 0.170},
	Titanium:   {"Ti", 0.160},
	Vanadium:   {"V", 0.153},
	Chromium:   {"Cr", 0.139},
	Manganese:  {"Mn", 0.139},
	Iron:       {"Fe", 0.132},
	Cobalt:     {"Co", 0.126},
	Nickel:     {"Ni", 0.124},
	Copper:     {"Cu", 0.132},
	Zinc:       {"Zn", 0.122},
	Gallium:    {"Ga", 0.122},
	Germanium:  {"Ge", 0.120},
	Arsenic:    {"As", 0.119},
	Selenium:   {"Se", 0.120},
	Bromine:    {"Br", 0.120},
	Krypton:    {"Kr", 0.116},
	Silver:     {"Ag", 0.145},
	Tin:        {"Sn", 0.139},
	Iodine:     {"I", 0.139},
	Platinum:   {"Pt", 0.136},
	Gold:       {"Au", 0.136},
}

var bySymbol = func() map[string]Element {
	m := make(map[string]Element, len(table))
	for z, e := range table {
		if e.symbol != "" {
			m[strings.ToLower(e.symbol)] = Element(z)
		}
	}
	return m
}()

// Valid reports whether e has a table entry.
func (e Element) Valid() bool {
	return int(e) < len(table) && table[e].symbol != ""
}

// Symbol returns the chemical symbol, or "" for unknown elements.
func (e Element) Symbol() string {
	if !e.Valid() {
		return ""
	}
	return table[e].symbol
}

// String returns the chemical symbol, or "Z<n>" for unknown elements.
func (e Element) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Z%d", uint8(e))
	}
	return table[e].symbol
}

// CovalentRadius returns the covalent radius in nanometres, or 0 for
// unknown elements.
func (e Element) CovalentRadius() float32 {
	if !e.Valid() {
		return 0
	}
	return table[e].radius
}

// Parse returns the element with the given symbol. Matching ignores case
// and surrounding whitespace.
func Parse(symbol string) (Element, error) {
	if e, ok := bySymbol[strings.ToLower(strings.TrimSpace(symbol))]; ok {
		return e, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownElement, symbol)
}

// MustParse is like Parse but panics on unknown symbols.
func MustParse(symbol string) Element {
	e, err := Parse(symbol)
	if err != nil {
		panic(err)
	}
	return e
}

// All returns every element with a table entry, in atomic number order.
func All() []Element {
	out := make([]Element, 0, len(bySymbol))
	for z := range table {
		if Element(z).Valid() {
			out = append(out, Element(z))
		}
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: atomic number %d", ErrUnknownElement, uint8(e))
	}
	return []byte(e.Symbol()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Element) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
