package reorder

import (
	"fmt"
	"strings"
)

// Policy selects the granularity of the spatial sort.
type Policy uint8

const (
	// PolicyAuto uses the octree below the configured threshold and the
	// grid+octree hybrid above it.
	PolicyAuto Policy = iota
	// PolicyOctree always runs a single-threaded octree descent.
	PolicyOctree
	// PolicyGrid always builds the coarse grid first and refines every
	// occupied cell in parallel.
	PolicyGrid
)

// String returns the string representation of a Policy.
func (p Policy) String() string {
	switch p {
	case PolicyAuto:
		return "auto"
	case PolicyOctree:
		return "octree"
	case PolicyGrid:
		return "grid"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PolicyAuto, nil
	case "octree":
		return PolicyOctree, nil
	case "grid":
		return PolicyGrid, nil
	default:
		return PolicyAuto, fmt.Errorf("unknown reorder policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
