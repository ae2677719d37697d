package sizeclass

import (
	"errors"
	"unsafe"
)

// sliceArena hands out Go-heap blocks and keeps them reachable.
type sliceArena struct {
	blocks [][]byte
	sizes  []int
	fail   error
}

func (a *sliceArena) AllocBlock(n int) (unsafe.Pointer, error) {
	if a.fail != nil {
		return nil, a.fail
	}
	buf := make([]byte, n)
	a.blocks = append(a.blocks, buf)
	a.sizes = append(a.sizes, n)
	return unsafe.Pointer(&buf[0]), nil
}

var errNoMemory = errors.New("no memory")
