package arena

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/segpool/internal/conv"
	"github.com/hupe1980/segpool/internal/resource"
)

// HeaderSize is the number of bytes preceding the payload of every block.
// Layout: [seq uint64][payload length uint64].
const HeaderSize = 16

var (
	// ErrReleased is returned when allocating from a released arena.
	ErrReleased = errors.New("arena: released")

	errInvalidSize = errors.New("arena: block size must be positive")
)

// ErrBlockAllocation reports a block the arena could not obtain.
type ErrBlockAllocation struct {
	Size  int // payload bytes requested
	cause error
}

func (e *ErrBlockAllocation) Error() string {
	return fmt.Sprintf("arena: cannot allocate block of %d bytes: %v", e.Size, e.cause)
}

func (e *ErrBlockAllocation) Unwrap() error { return e.cause }

// Stats tracks arena memory usage.
//
//   - Blocks: blocks currently held
//   - BytesReserved: bytes obtained from the source, headers included
//   - PayloadBytes: bytes handed to callers of AllocBlock
type Stats struct {
	Blocks        uint64
	BytesReserved uint64
	PayloadBytes  uint64
}

type atomicStats struct {
	Blocks        atomic.Uint64
	BytesReserved atomic.Uint64
	PayloadBytes  atomic.Uint64
}

type block struct {
	prev   *block
	region Region
	size   int // header + payload
}

// Arena is a chain of raw memory blocks released together.
// It is not safe for concurrent allocation; Stats may be read concurrently.
type Arena struct {
	source   Source
	budget   *resource.Controller
	current  *block // most recently allocated block
	seq      uint64
	released bool
	stats    atomicStats
}

// New creates an arena that reserves blocks from source and accounts them
// against budget. A nil source selects HeapSource; a nil budget is unlimited.
func New(source Source, budget *resource.Controller) *Arena {
	if source == nil {
		source = HeapSource{}
	}
	return &Arena{
		source: source,
		budget: budget,
	}
}

// AllocBlock reserves a block with n usable bytes and returns the address of
// its first payload byte.
func (a *Arena) AllocBlock(n int) (unsafe.Pointer, error) {
	if a.released {
		return nil, ErrReleased
	}
	if n <= 0 {
		return nil, &ErrBlockAllocation{Size: n, cause: errInvalidSize}
	}

	total, err := conv.AddInt(n, HeaderSize)
	if err != nil {
		return nil, &ErrBlockAllocation{Size: n, cause: err}
	}

	if err := a.budget.AcquireMemory(int64(total)); err != nil {
		return nil, &ErrBlockAllocation{Size: n, cause: err}
	}

	region, err := a.source.Reserve(total)
	if err != nil {
		a.budget.ReleaseMemory(int64(total))
		return nil, &ErrBlockAllocation{Size: n, cause: err}
	}

	data := region.Bytes()
	if len(data) < total {
		_ = region.Close()
		a.budget.ReleaseMemory(int64(total))
		return nil, &ErrBlockAllocation{Size: n, cause: fmt.Errorf("%s source returned %d bytes, want %d", a.source.Name(), len(data), total)}
	}

	a.seq++
	binary.LittleEndian.PutUint64(data[0:8], a.seq)
	binary.LittleEndian.PutUint64(data[8:16], uint64(n))

	a.current = &block{
		prev:   a.current,
		region: region,
		size:   total,
	}

	a.stats.Blocks.Add(1)
	a.stats.BytesReserved.Add(uint64(total))
	a.stats.PayloadBytes.Add(uint64(n))

	return unsafe.Pointer(&data[HeaderSize]), nil //nolint:gosec // unsafe is required for arena implementation
}

// Walk visits every block from the most recent to the oldest, reporting the
// sequence number and payload length recorded in its header. It stops early
// when fn returns false.
func (a *Arena) Walk(fn func(seq uint64, payload int) bool) {
	for b := a.current; b != nil; b = b.prev {
		data := b.region.Bytes()
		seq := binary.LittleEndian.Uint64(data[0:8])
		payload := int(binary.LittleEndian.Uint64(data[8:16])) //nolint:gosec // written from a positive int
		if !fn(seq, payload) {
			return
		}
	}
}

// Release gives every block back to its source, most recent first, and
// returns the reserved bytes to the budget. The arena cannot be reused.
// Release is idempotent.
func (a *Arena) Release() error {
	if a.released {
		return nil
	}
	a.released = true

	var errs []error
	for b := a.current; b != nil; {
		prev := b.prev
		if err := b.region.Close(); err != nil {
			errs = append(errs, err)
		}
		a.budget.ReleaseMemory(int64(b.size))
		b.prev, b.region = nil, nil
		b = prev
	}
	a.current = nil

	a.stats.Blocks.Store(0)
	a.stats.BytesReserved.Store(0)
	a.stats.PayloadBytes.Store(0)

	return errors.Join(errs...)
}

// Released reports whether Release has been called.
func (a *Arena) Released() bool {
	return a.released
}

// Source returns the source blocks are reserved from.
func (a *Arena) Source() Source {
	return a.source
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		Blocks:        a.stats.Blocks.Load(),
		BytesReserved: a.stats.BytesReserved.Load(),
		PayloadBytes:  a.stats.PayloadBytes.Load(),
	}
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{source: %s, blocks: %d, reserved: %.2f KB, payload: %.2f KB}",
		a.source.Name(),
		stats.Blocks,
		float64(stats.BytesReserved)/1024,
		float64(stats.PayloadBytes)/1024,
	)
}
