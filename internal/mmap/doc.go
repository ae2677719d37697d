// Package mmap provides anonymous memory mappings for off-heap allocation.
//
// # Overview
//
// MapAnon obtains read-write memory directly from the operating system,
// outside the Go garbage collector's control. The pool's mmap source uses it
// to back arena blocks so that large free lists never add GC scan work.
//
// # Usage
//
//	m, err := mmap.MapAnon(1 << 20)
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := m.Bytes()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure no
// goroutine touches the bytes after Close returns.
package mmap
