package mem

import (
	"unsafe"
)

// DefaultAlignment is the alignment of heap-backed arena blocks.
const DefaultAlignment = 16

// AllocAligned allocates a byte slice of the given size whose first byte is
// aligned to align, which must be a power of two. It returns nil for a
// non-positive size or an invalid alignment.
//
// Note: This function allocates up to align-1 extra bytes.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 || !validAlignment(align) {
		return nil
	}

	buf := make([]byte, size+align-1)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := int((uintptr(align) - addr&uintptr(align-1)) & uintptr(align-1))

	return buf[offset : offset+size : offset+size]
}

// IsAligned reports whether p is a multiple of align.
func IsAligned(p unsafe.Pointer, align int) bool {
	return validAlignment(align) && uintptr(p)&uintptr(align-1) == 0
}

func validAlignment(align int) bool {
	return align > 0 && align&(align-1) == 0
}
