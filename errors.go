package molgeo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/molgeo/element"
	"github.com/hupe1980/molgeo/internal/connectivity"
	"github.com/hupe1980/molgeo/internal/resource"
)

var (
	// ErrInvalidCutoff is returned for a zero, negative or non-finite cutoff.
	ErrInvalidCutoff = errors.New("cutoff must be positive and finite")

	// ErrInvalidMaxNeighbors is returned when maxNeighbors is not positive.
	ErrInvalidMaxNeighbors = errors.New("maxNeighbors must be positive")

	// ErrUnknownElement is returned for an atom whose element has no
	// covalent radius.
	ErrUnknownElement = element.ErrUnknownElement

	// ErrInvalidPosition is returned for a position with a NaN or infinite
	// coordinate.
	ErrInvalidPosition = errors.New("position must be finite")

	// ErrBondOutOfRange is returned for a bond referencing a missing atom.
	ErrBondOutOfRange = connectivity.ErrBondOutOfRange

	// ErrSelfBond is returned for a bond whose endpoints are equal.
	ErrSelfBond = connectivity.ErrSelfBond

	// ErrInvalidConfig is returned for a configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrScratchMemory is returned when one call needs more scratch memory
	// than the configured limit.
	ErrScratchMemory = resource.ErrMemoryLimitExceeded

	// ErrClosed is returned by calls on a closed Engine.
	ErrClosed = errors.New("engine is closed")
)

// ErrInvalidAtom indicates an atom that cannot be indexed.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidAtom struct {
	Index int
	cause error
}

func (e *ErrInvalidAtom) Error() string {
	return fmt.Sprintf("invalid atom %d: %v", e.Index, e.cause)
}

func (e *ErrInvalidAtom) Unwrap() error { return e.cause }

// ErrInvalidBond indicates a bond that cannot be inserted into a
// connectivity map.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidBond struct {
	Index int
	Bond  Bond
	cause error
}

func (e *ErrInvalidBond) Error() string {
	return fmt.Sprintf("invalid bond %d (%d-%d): %v", e.Index, e.Bond[0], e.Bond[1], e.cause)
}

func (e *ErrInvalidBond) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var be *connectivity.BondError
	if errors.As(err, &be) {
		return &ErrInvalidBond{Index: be.Index, Bond: be.Bond, cause: be.Err}
	}

	return err
}
