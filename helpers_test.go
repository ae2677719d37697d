package segpool_test

import "unsafe"

func segpoolPointer(b *[8]byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
