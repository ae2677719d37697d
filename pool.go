package segpool

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/segpool/internal/arena"
	"github.com/hupe1980/segpool/internal/resource"
	"github.com/hupe1980/segpool/internal/sizeclass"
	"github.com/hupe1980/segpool/internal/track"
)

// Pool is a segregated free-list allocator.
//
// Requests are rounded up to the nearest size class and served from that
// class's free list. Empty lists are refilled with a freshly reserved block;
// freed cells go back to the front of their list and are never returned to
// the system before Close.
//
// A Pool is not safe for concurrent use. Stats may be called from any
// goroutine.
type Pool struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector

	budget   *resource.Controller
	arena    *arena.Arena
	registry *sizeclass.Registry
	tracker  *track.Tracker // nil unless contract checks are on

	closed atomic.Bool
	stats  poolStats
}

type poolStats struct {
	classes       atomic.Int64
	maxClass      atomic.Int64
	allocations   atomic.Uint64
	deallocations atomic.Uint64
	failures      atomic.Uint64
	violations    atomic.Uint64
	refills       atomic.Uint64
	liveCells     atomic.Int64
}

// New creates a pool holding a single size class of the initial size.
// No block is reserved until the first allocation.
func New(optFns ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if o.logger == nil {
		if o.logLevel != nil {
			o.logger = NewTextLogger(*o.logLevel)
		} else {
			o.logger = NoopLogger()
		}
	}
	if o.memoryLimit < 0 {
		return nil, fmt.Errorf("segpool: memory limit must not be negative, got %d", o.memoryLimit)
	}
	if o.maxAllocSize < 0 {
		return nil, fmt.Errorf("segpool: max allocation size must not be negative, got %d", o.maxAllocSize)
	}

	src, err := o.source.arenaSource()
	if err != nil {
		return nil, err
	}

	cfg := o.sizeClassConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("segpool: %w", err)
	}

	budget := resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit})

	registry, err := sizeclass.NewRegistry(cfg, budget)
	if err != nil {
		return nil, translateError(0, err)
	}

	p := &Pool{
		opts:     o,
		logger:   o.logger.WithSource(src.Name()),
		metrics:  o.metricsCollector,
		budget:   budget,
		arena:    arena.New(src, budget),
		registry: registry,
	}
	if o.contractChecks {
		p.tracker = track.New()
	}
	p.stats.classes.Store(int64(registry.Len()))
	p.stats.maxClass.Store(int64(registry.Max()))

	return p, nil
}

// Allocate returns the address of at least n usable bytes.
//
// A zero-byte request returns nil without allocating. The memory is not
// zeroed; a reused cell keeps the bytes its previous owner left behind.
// On failure the pool is left as it was before the call.
func (p *Pool) Allocate(n int) (unsafe.Pointer, error) {
	if n == 0 {
		return nil, nil
	}
	if n < 0 || (p.opts.maxAllocSize > 0 && n > p.opts.maxAllocSize) {
		err := fmt.Errorf("%w: %d bytes", ErrInvalidSize, n)
		p.metrics.RecordAllocate(n, 0, err)
		return nil, err
	}
	if p.closed.Load() {
		return nil, ErrClosed
	}

	created, err := p.registry.ExtendTo(n)
	if created > 0 {
		p.stats.classes.Store(int64(p.registry.Len()))
		p.stats.maxClass.Store(int64(p.registry.Max()))
		p.metrics.RecordClassesCreated(created)
		p.logger.LogClassesCreated(created, p.registry.Max())
	}
	if err != nil {
		return nil, p.fail(n, err)
	}

	c := p.registry.Find(n)
	if c == nil {
		return nil, p.fail(n, fmt.Errorf("segpool: no class for %d bytes after growing to %d", n, p.registry.Max()))
	}

	blocks := c.Blocks()
	cell, err := c.Pop(p.arena)
	if err != nil {
		return nil, p.fail(n, err)
	}
	if c.Blocks() != blocks {
		p.stats.refills.Add(1)
		p.metrics.RecordRefill(c.Size(), c.Batch())
		p.logger.LogRefill(c.Size(), c.Batch())
	}

	if p.tracker != nil {
		p.tracker.Allocated(c.Size(), uintptr(cell))
	}
	p.stats.allocations.Add(1)
	p.stats.liveCells.Add(1)
	p.metrics.RecordAllocate(n, c.Size(), nil)

	return cell, nil
}

func (p *Pool) fail(n int, err error) error {
	err = translateError(n, err)
	p.stats.failures.Add(1)
	p.metrics.RecordAllocate(n, 0, err)
	p.logger.LogAllocationFailure(n, err)
	if p.opts.panicOnFailure && errors.Is(err, ErrAllocationFailed) {
		panic(err)
	}
	return err
}

// AllocateBytes is Allocate returning a byte slice of length and capacity n.
func (p *Pool) AllocateBytes(n int) ([]byte, error) {
	ptr, err := p.Allocate(n)
	if err != nil || ptr == nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), n), nil
}

// Deallocate returns the cell at ptr to the free list of the class n maps
// to. n must be the size ptr was allocated with.
//
// A wrong size, a double free or a pointer the pool never returned is
// undefined behavior unless the pool was created WithContractChecks, in
// which case the call fails with ErrContractViolation and nothing changes.
func (p *Pool) Deallocate(ptr unsafe.Pointer, n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSize, n)
	}
	if p.closed.Load() {
		return ErrClosed
	}
	if ptr == nil {
		return p.reject(n, 0, nil, fmt.Errorf("%w: nil pointer freed with %d bytes", ErrContractViolation, n))
	}

	c := p.registry.Find(n)
	if c == nil {
		return p.reject(n, 0, ptr, fmt.Errorf("%w: no class holds %d bytes", ErrContractViolation, n))
	}

	if p.tracker != nil {
		if err := p.tracker.Freed(c.Size(), uintptr(ptr)); err != nil {
			return p.reject(n, c.Size(), ptr, translateError(n, err))
		}
	}

	c.Push(ptr)
	p.stats.deallocations.Add(1)
	p.stats.liveCells.Add(-1)
	p.metrics.RecordDeallocate(n, c.Size(), nil)

	return nil
}

func (p *Pool) reject(n, classSize int, ptr unsafe.Pointer, err error) error {
	p.stats.violations.Add(1)
	p.metrics.RecordDeallocate(n, classSize, err)
	p.logger.LogContractViolation(n, uintptr(ptr), err)
	return err
}

// DeallocateBytes releases a slice obtained from AllocateBytes. b must start
// at the first byte of that slice and keep its capacity.
func (p *Pool) DeallocateBytes(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	return p.Deallocate(unsafe.Pointer(unsafe.SliceData(b)), cap(b))
}

// Close releases every size class and then every block. All pointers handed
// out by the pool become invalid. Close is idempotent.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	stats := p.Stats()

	p.registry.Release()
	if p.tracker != nil {
		p.tracker.Reset()
	}
	err := p.arena.Release()

	p.stats.classes.Store(0)
	p.stats.maxClass.Store(0)
	p.stats.liveCells.Store(0)

	p.logger.LogClose(stats, err)
	return err
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// ClassFor returns the size of the class a request of n bytes is served
// from. It does not grow the pool.
func (p *Pool) ClassFor(n int) int {
	return p.registry.Config().ClassFor(n)
}

// Batch returns the number of cells one refill carves for a class of the
// given size.
func (p *Pool) Batch(classSize int) int {
	return p.registry.Config().Batch(classSize)
}

// MaxAllocSize returns the largest request the pool can serve: the
// WithMaxAllocSize limit or the largest class the ladder may grow to,
// whichever is smaller.
func (p *Pool) MaxAllocSize() int {
	limit := p.registry.Config().MaxSize()
	if m := p.opts.maxAllocSize; m > 0 && m < limit {
		return m
	}
	return limit
}

// Stats is a snapshot of pool activity.
//
//   - Classes, MaxClass: size of the class ladder
//   - Blocks, BytesReserved, PayloadBytes: memory held by the arena
//   - BytesInUse, PeakBytes, MemoryLimit: memory budget, class metadata included
//   - LiveCells: allocations not yet freed
type Stats struct {
	Source        string
	Classes       int
	MaxClass      int
	Blocks        uint64
	BytesReserved uint64
	PayloadBytes  uint64
	BytesInUse    int64
	PeakBytes     int64
	MemoryLimit   int64
	Allocations   uint64
	Deallocations uint64
	Failures      uint64
	Violations    uint64
	Refills       uint64
	LiveCells     int64
}

// Stats returns current statistics. It is safe to call concurrently with
// allocation.
func (p *Pool) Stats() Stats {
	as := p.arena.Stats()
	return Stats{
		Source:        p.arena.Source().Name(),
		Classes:       int(p.stats.classes.Load()),
		MaxClass:      int(p.stats.maxClass.Load()),
		Blocks:        as.Blocks,
		BytesReserved: as.BytesReserved,
		PayloadBytes:  as.PayloadBytes,
		BytesInUse:    p.budget.MemoryUsage(),
		PeakBytes:     p.budget.PeakMemoryUsage(),
		MemoryLimit:   p.budget.MemoryLimit(),
		Allocations:   p.stats.allocations.Load(),
		Deallocations: p.stats.deallocations.Load(),
		Failures:      p.stats.failures.Load(),
		Violations:    p.stats.violations.Load(),
		Refills:       p.stats.refills.Load(),
		LiveCells:     p.stats.liveCells.Load(),
	}
}

// ClassStats describes one size class.
type ClassStats struct {
	Size   int
	Batch  int
	Blocks int
	Cells  int
	Free   int
	InUse  int
}

// SizeClasses returns every class in ascending order. Unlike Stats it reads
// the free lists and must not race with allocation.
func (p *Pool) SizeClasses() []ClassStats {
	if p.closed.Load() {
		return nil
	}
	classes := p.registry.Classes()
	out := make([]ClassStats, 0, len(classes))
	for _, c := range classes {
		out = append(out, ClassStats{
			Size:   c.Size(),
			Batch:  c.Batch(),
			Blocks: c.Blocks(),
			Cells:  c.Cells(),
			Free:   c.Free(),
			InUse:  c.InUse(),
		})
	}
	return out
}

// BlockStats describes one reserved block as recorded in its header.
type BlockStats struct {
	Seq     uint64 `json:"seq"`
	Payload int    `json:"payload"`
}

// Blocks returns every reserved block, most recent first. Like SizeClasses
// it must not race with allocation.
func (p *Pool) Blocks() []BlockStats {
	if p.closed.Load() {
		return nil
	}
	var out []BlockStats
	p.arena.Walk(func(seq uint64, payload int) bool {
		out = append(out, BlockStats{Seq: seq, Payload: payload})
		return true
	})
	return out
}

func (p *Pool) String() string {
	s := p.Stats()
	return fmt.Sprintf(
		"Pool{source: %s, classes: %d, max: %d, blocks: %d, reserved: %.2f KB, live: %d}",
		s.Source, s.Classes, s.MaxClass, s.Blocks, float64(s.BytesReserved)/1024, s.LiveCells,
	)
}
