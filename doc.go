// Package segpool provides a segregated free-list memory pool for Go.
//
// A Pool serves raw allocations of arbitrary byte sizes from a ladder of size
// classes (8, 12, 16, 20, ... bytes). Each class keeps an intrusive LIFO free
// list of cells carved from large blocks, so steady-state allocation and
// deallocation never touch the Go allocator or the garbage collector.
//
// # Quick Start
//
//	pool, _ := segpool.New()
//	defer pool.Close()
//
//	p, _ := pool.Allocate(13)    // served from the 16-byte class
//	defer pool.Deallocate(p, 13) // the original size must be passed back
//
// # Typed Allocation
//
// Containers allocate element storage through a typed adapter:
//
//	ints, _ := segpool.NewAllocator[int64](pool)
//	s, _ := ints.AllocateSlice(100)
//	defer ints.DeallocateSlice(s)
//
// Element types must not contain Go pointers, strings, slices, maps or
// interfaces: pool memory is invisible to the garbage collector.
//
// # Memory Model
//
//   - Freed cells go back to their class's free list and are reused LIFO.
//   - Memory is never returned to the OS before Close; a stable allocation
//     pattern therefore plateaus instead of shrinking.
//   - Reused cells keep the previous occupant's bytes.
//   - Deallocate must be called with the size passed to Allocate. Enable
//     WithContractChecks to reject mismatched sizes and double frees.
//
// # Thread Safety
//
// A Pool is not safe for concurrent use. Give each goroutine its own Pool or
// guard a shared one externally. Stats may be read from any goroutine.
package segpool
