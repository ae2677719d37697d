// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// AllocAligned returns heap byte slices whose first byte sits on a
// power-of-two boundary. Heap-backed arena blocks use it so that the payload
// after the block header starts on a 16-byte boundary.
package mem
