package sizeclass

import (
	"unsafe"

	"github.com/hupe1980/segpool/internal/conv"
)

// BlockAllocator supplies raw blocks for refills.
type BlockAllocator interface {
	AllocBlock(n int) (unsafe.Pointer, error)
}

// Class is the header of one size class and the head of its free list.
type Class struct {
	size  int
	batch int
	next  *Class
	free  unsafe.Pointer // first free cell, nil when empty

	blocks int // blocks carved for this class
	cells  int // cells carved for this class
	nfree  int // cells currently on the free list
}

// Size returns the byte size every cell of the class provides.
func (c *Class) Size() int { return c.size }

// Batch returns the number of cells carved per refill.
func (c *Class) Batch() int { return c.batch }

// Next returns the next larger class, or nil at the tail.
func (c *Class) Next() *Class { return c.next }

// Blocks returns the number of arena blocks carved for the class.
func (c *Class) Blocks() int { return c.blocks }

// Cells returns the number of cells ever carved for the class.
func (c *Class) Cells() int { return c.cells }

// Free returns the number of cells on the free list.
func (c *Class) Free() int { return c.nfree }

// InUse returns the number of cells currently handed out.
func (c *Class) InUse() int { return c.cells - c.nfree }

// Empty reports whether the free list is empty.
func (c *Class) Empty() bool { return c.free == nil }

// Pop removes and returns the head of the free list, refilling it from arena
// first when it is empty.
func (c *Class) Pop(arena BlockAllocator) (unsafe.Pointer, error) {
	if c.free == nil {
		if err := c.refill(arena); err != nil {
			return nil, err
		}
	}
	cell := c.free
	c.free = loadLink(cell)
	c.nfree--
	return cell, nil
}

// Push prepends p to the free list. The most recently pushed cell is the
// next one popped.
func (c *Class) Push(p unsafe.Pointer) {
	storeLink(p, c.free)
	c.free = p
	c.nfree++
}

// refill carves one block into batch cells and threads them all onto the
// free list. On error the list is unchanged.
func (c *Class) refill(arena BlockAllocator) error {
	n, err := conv.MulInt(c.batch, c.size)
	if err != nil {
		return err
	}
	base, err := arena.AllocBlock(n)
	if err != nil {
		return err
	}
	for i := 0; i < c.batch; i++ {
		cell := unsafe.Add(base, i*c.size)
		storeLink(cell, c.free)
		c.free = cell
	}
	c.blocks++
	c.cells += c.batch
	c.nfree += c.batch
	return nil
}

// reset forgets the free list. Used at teardown.
func (c *Class) reset() {
	c.free = nil
	c.nfree = 0
	c.next = nil
}

// Cells may start at any multiple of the increment, so the link is kept as a
// plain address rather than a Go pointer.
func storeLink(cell, next unsafe.Pointer) {
	*(*uintptr)(cell) = uintptr(next)
}

//go:nocheckptr
func loadLink(cell unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(*(*uintptr)(cell)) //nolint:govet // cell memory is pinned by the arena until release
}
