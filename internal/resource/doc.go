// Package resource bounds the scratch memory held by concurrent calls.
//
// Every reorder, match and connectivity call estimates its scratch
// footprint (arena, slot buffers, operands) and reserves it before
// allocating. With a limit configured, calls queue on a weighted semaphore
// until enough budget is free; a single request larger than the whole
// budget fails immediately with ErrMemoryLimitExceeded.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//	if err := rc.AcquireMemory(need); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(need)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
