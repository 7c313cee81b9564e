// Package arena provides a per-call scratch allocator.
//
// One Arena backs all scratch buffers of a single reorder call. Regions are
// carved from one backing array, sized up front by the caller.
//
// MustAlloc may be called concurrently (lock-free CAS on the bump offset).
package arena
