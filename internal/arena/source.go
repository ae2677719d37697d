package arena

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/segpool/internal/mem"
	"github.com/hupe1980/segpool/internal/mmap"
)

// Region is a contiguous range of raw memory owned by the arena.
type Region interface {
	Bytes() []byte
	Close() error
}

// Source obtains raw regions from the operating system.
type Source interface {
	Reserve(size int) (Region, error)
	Name() string
}

// HeapSource reserves regions as Go byte slices aligned to
// mem.DefaultAlignment.
type HeapSource struct{}

// Reserve implements Source.
func (HeapSource) Reserve(size int) (Region, error) {
	if size <= 0 {
		return nil, errInvalidSize
	}
	return reserveAligned(size, mem.DefaultAlignment)
}

func reserveAligned(size, align int) (Region, error) {
	data := mem.AllocAligned(size, align)
	if data == nil || !mem.IsAligned(unsafe.Pointer(unsafe.SliceData(data)), align) {
		return nil, fmt.Errorf("arena: cannot reserve %d bytes aligned to %d", size, align)
	}
	return &heapRegion{data: data}, nil
}

// Name implements Source.
func (HeapSource) Name() string { return "heap" }

type heapRegion struct {
	data []byte
}

func (r *heapRegion) Bytes() []byte { return r.data }

func (r *heapRegion) Close() error {
	r.data = nil
	return nil
}

// MmapSource reserves regions as anonymous memory mappings.
type MmapSource struct{}

// Reserve implements Source.
func (MmapSource) Reserve(size int) (Region, error) {
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements Source.
func (MmapSource) Name() string { return "mmap" }
