package segpool

import (
	"sync/atomic"
)

// MetricsCollector defines an interface for collecting allocator metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package provides a Prometheus implementation.
//
// Collectors are called synchronously on the allocation path and should be
// cheap.
type MetricsCollector interface {
	// RecordAllocate is called after each Allocate. classSize is 0 when err
	// is non-nil.
	RecordAllocate(size, classSize int, err error)

	// RecordDeallocate is called after each Deallocate that reached a class.
	RecordDeallocate(size, classSize int, err error)

	// RecordRefill is called when a free list is refilled from a new block.
	RecordRefill(classSize, cells int)

	// RecordClassesCreated is called when the ladder grows.
	RecordClassesCreated(count int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(int, int, error)   {}
func (NoopMetricsCollector) RecordDeallocate(int, int, error) {}
func (NoopMetricsCollector) RecordRefill(int, int)            {}
func (NoopMetricsCollector) RecordClassesCreated(int)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount    atomic.Int64
	AllocateErrors   atomic.Int64
	AllocatedBytes   atomic.Int64 // bytes requested
	ClassBytes       atomic.Int64 // bytes handed out, rounded to class size
	DeallocateCount  atomic.Int64
	DeallocateErrors atomic.Int64
	RefillCount      atomic.Int64
	RefillCells      atomic.Int64
	ClassesCreated   atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(size, classSize int, err error) {
	b.AllocateCount.Add(1)
	if err != nil {
		b.AllocateErrors.Add(1)
		return
	}
	b.AllocatedBytes.Add(int64(size))
	b.ClassBytes.Add(int64(classSize))
}

// RecordDeallocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeallocate(size, classSize int, err error) {
	b.DeallocateCount.Add(1)
	if err != nil {
		b.DeallocateErrors.Add(1)
	}
}

// RecordRefill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRefill(classSize, cells int) {
	b.RefillCount.Add(1)
	b.RefillCells.Add(int64(cells))
}

// RecordClassesCreated implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClassesCreated(count int) {
	b.ClassesCreated.Add(int64(count))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:    b.AllocateCount.Load(),
		AllocateErrors:   b.AllocateErrors.Load(),
		AllocatedBytes:   b.AllocatedBytes.Load(),
		ClassBytes:       b.ClassBytes.Load(),
		DeallocateCount:  b.DeallocateCount.Load(),
		DeallocateErrors: b.DeallocateErrors.Load(),
		RefillCount:      b.RefillCount.Load(),
		RefillCells:      b.RefillCells.Load(),
		ClassesCreated:   b.ClassesCreated.Load(),
		InternalWaste:    b.internalWaste(),
	}
}

// internalWaste is the fraction of handed-out bytes lost to class rounding.
func (b *BasicMetricsCollector) internalWaste() float64 {
	class := b.ClassBytes.Load()
	if class == 0 {
		return 0
	}
	return float64(class-b.AllocatedBytes.Load()) / float64(class)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount    int64
	AllocateErrors   int64
	AllocatedBytes   int64
	ClassBytes       int64
	DeallocateCount  int64
	DeallocateErrors int64
	RefillCount      int64
	RefillCells      int64
	ClassesCreated   int64
	InternalWaste    float64
}
