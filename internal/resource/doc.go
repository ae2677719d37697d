// Package resource implements the memory budget shared by a pool's arena and
// size-class registry.
//
// # Memory Budget
//
// Every byte the pool obtains on behalf of its clients is reserved here first:
// arena blocks (payload plus in-band header) and size-class metadata. A
// weighted semaphore enforces the hard limit and atomic counters track usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20, // 64MB limit
//	})
//
//	if err := rc.AcquireMemory(blockBytes); err != nil {
//	    // ErrMemoryLimitExceeded: treated as an allocation failure
//	}
//	defer rc.ReleaseMemory(blockBytes)
//
// AcquireMemory never blocks. An allocator that ran out of memory must fail
// immediately rather than wait for another client to free something, because
// freed cells are never given back to the budget before teardown.
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows an unlimited pool without nil checks everywhere.
package resource
