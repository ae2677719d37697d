// Package track records live allocations so that contract violations on
// deallocation can be detected instead of corrupting a free list.
//
// Live cell addresses are kept in one roaring64 bitmap per size class. A
// deallocation is accepted only when its address is live in the class its
// size maps to; otherwise the tracker reports whether the address is live in
// some other class (size mismatch) or nowhere (double free or foreign
// pointer).
package track

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

var (
	// ErrSizeMismatch is returned when a live cell is freed with a size that
	// maps to a different class than the one it was allocated from.
	ErrSizeMismatch = errors.New("track: deallocation size does not match allocation")
	// ErrNotLive is returned when the address is not a live allocation:
	// a double free, a use of a stale pointer, or memory the pool never handed out.
	ErrNotLive = errors.New("track: pointer is not a live allocation")
)

// Violation describes a rejected deallocation.
type Violation struct {
	Addr       uintptr
	ClassSize  int // class the caller's size maps to
	ActualSize int // class the address is live in, 0 if none
	cause      error
}

func (v *Violation) Error() string {
	if v.ActualSize > 0 {
		return fmt.Sprintf("%v: %#x freed as class %d, allocated from class %d", v.cause, v.Addr, v.ClassSize, v.ActualSize)
	}
	return fmt.Sprintf("%v: %#x (class %d)", v.cause, v.Addr, v.ClassSize)
}

func (v *Violation) Unwrap() error { return v.cause }

// Tracker holds the live set per class size.
// It is not safe for concurrent use.
type Tracker struct {
	live map[int]*roaring64.Bitmap
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{live: make(map[int]*roaring64.Bitmap)}
}

// Allocated marks addr live in the class of the given size.
func (t *Tracker) Allocated(classSize int, addr uintptr) {
	bm, ok := t.live[classSize]
	if !ok {
		bm = roaring64.New()
		t.live[classSize] = bm
	}
	bm.Add(uint64(addr))
}

// Check validates a deallocation of addr from the class of the given size
// without changing the live set.
func (t *Tracker) Check(classSize int, addr uintptr) error {
	if bm, ok := t.live[classSize]; ok && bm.Contains(uint64(addr)) {
		return nil
	}
	for size, bm := range t.live {
		if size != classSize && bm.Contains(uint64(addr)) {
			return &Violation{Addr: addr, ClassSize: classSize, ActualSize: size, cause: ErrSizeMismatch}
		}
	}
	return &Violation{Addr: addr, ClassSize: classSize, cause: ErrNotLive}
}

// Freed validates a deallocation and, when it is valid, removes addr from
// the live set.
func (t *Tracker) Freed(classSize int, addr uintptr) error {
	if err := t.Check(classSize, addr); err != nil {
		return err
	}
	t.live[classSize].Remove(uint64(addr))
	return nil
}

// Live returns the number of live cells in the class of the given size.
func (t *Tracker) Live(classSize int) uint64 {
	if bm, ok := t.live[classSize]; ok {
		return bm.GetCardinality()
	}
	return 0
}

// TotalLive returns the number of live cells across all classes.
func (t *Tracker) TotalLive() uint64 {
	var n uint64
	for _, bm := range t.live {
		n += bm.GetCardinality()
	}
	return n
}

// Reset forgets every live cell.
func (t *Tracker) Reset() {
	t.live = make(map[int]*roaring64.Bitmap)
}
