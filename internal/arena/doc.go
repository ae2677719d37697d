// Package arena owns the raw memory blocks behind a segregated free-list pool.
//
// The arena obtains contiguous blocks from a Source, prefixes each with a
// small in-band header, and threads them into a reverse chronological chain.
// Blocks are never released individually: Release walks the chain from the
// most recent block to the oldest and gives everything back at once.
//
// # Sources
//
//   - HeapSource: Go byte slices. Portable; the arena keeps every slice
//     reachable so interior pointers stay valid until Release.
//   - MmapSource: anonymous mappings outside the garbage collector.
//
// # Safety
//
// AllocBlock returns errors instead of panicking. A failed request leaves the
// chain and the memory budget exactly as they were.
package arena
