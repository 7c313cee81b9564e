// Package atomics provides lock-free counter arrays.
//
// Go has no 8- or 16-bit atomic integers, so counters are 32 bits wide even
// where the stored values are tiny. Concurrent increments of one element are
// linearizable, but the order in which racing writers obtain their values
// is unspecified; callers that use the returned value as a slot index get a
// nondeterministic slot assignment.
package atomics

import "sync/atomic"

// Uint32Array is a fixed-length array of atomic counters.
type Uint32Array struct {
	v []atomic.Uint32
}

// NewUint32Array creates an array of n zeroed counters.
func NewUint32Array(n int) *Uint32Array {
	return &Uint32Array{v: make([]atomic.Uint32, n)}
}

// Increment adds one to counter i and returns the value before the
// increment, which is the slot claimed by the caller.
func (a *Uint32Array) Increment(i int) uint32 {
	return a.v[i].Add(1) - 1
}

// Load returns counter i.
func (a *Uint32Array) Load(i int) uint32 {
	return a.v[i].Load()
}
