package sizeclass

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/segpool/internal/conv"
	"github.com/hupe1980/segpool/internal/resource"
)

var (
	// ErrReleased is returned when growing a released registry.
	ErrReleased = errors.New("sizeclass: registry released")
	// ErrLadderExhausted is returned when a request is larger than the
	// largest class the configuration allows.
	ErrLadderExhausted = errors.New("sizeclass: request exceeds the largest size class")
)

// ClassHeaderSize is the metadata cost of one class, charged to the memory
// budget when the class is created.
const ClassHeaderSize = int(unsafe.Sizeof(Class{}))

// ErrHeaderAllocation reports a class header that could not be created.
type ErrHeaderAllocation struct {
	Size  int // size of the class being created, or the request when the ladder is exhausted
	cause error
}

func (e *ErrHeaderAllocation) Error() string {
	return fmt.Sprintf("sizeclass: cannot create class %d: %v", e.Size, e.cause)
}

func (e *ErrHeaderAllocation) Unwrap() error { return e.cause }

// Registry is the ascending, grow-only ladder of size classes.
// It is not safe for concurrent use.
type Registry struct {
	cfg    Config
	budget *resource.Controller

	head  *Class
	tail  *Class
	max   int      // size of tail
	index []*Class // index[i].size == InitialSize + i*Increment

	released bool
}

// NewRegistry creates a registry holding only the initial class.
func NewRegistry(cfg Config, budget *resource.Controller) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		cfg:    cfg,
		budget: budget,
	}
	c, err := r.newClass(cfg.InitialSize)
	if err != nil {
		return nil, err
	}
	r.head, r.tail = c, c
	r.max = c.size
	r.index = append(r.index, c)
	return r, nil
}

func (r *Registry) newClass(size int) (*Class, error) {
	if err := r.budget.AcquireMemory(int64(ClassHeaderSize)); err != nil {
		return nil, &ErrHeaderAllocation{Size: size, cause: err}
	}
	return &Class{
		size:  size,
		batch: r.cfg.Batch(size),
	}, nil
}

// ExtendTo appends classes until the largest one covers target. It returns
// the number of classes created. When a header cannot be created the classes
// appended before it stay linked and the failed one is not. A target beyond
// Config.MaxSize is refused before any class is created.
func (r *Registry) ExtendTo(target int) (int, error) {
	if r.released {
		return 0, ErrReleased
	}
	if target > r.cfg.MaxSize() {
		return 0, &ErrHeaderAllocation{Size: target, cause: ErrLadderExhausted}
	}
	created := 0
	for r.max < target {
		size, err := conv.AddInt(r.max, r.cfg.Increment)
		if err != nil {
			return created, &ErrHeaderAllocation{Size: r.max, cause: err}
		}
		c, err := r.newClass(size)
		if err != nil {
			return created, err
		}
		r.tail.next = c
		r.tail = c
		r.max = size
		r.index = append(r.index, c)
		created++
	}
	return created, nil
}

// Find returns the first class whose size is at least target, or nil when
// the ladder does not reach target yet.
func (r *Registry) Find(target int) *Class {
	if r.cfg.Lookup == LookupLinear {
		return r.findLinear(target)
	}
	return r.findIndexed(target)
}

func (r *Registry) findLinear(target int) *Class {
	c := r.head
	for c != nil && c.size < target {
		c = c.next
	}
	return c
}

func (r *Registry) findIndexed(target int) *Class {
	if target <= r.cfg.InitialSize {
		return r.head
	}
	i := (target - r.cfg.InitialSize + r.cfg.Increment - 1) / r.cfg.Increment
	if i >= len(r.index) {
		return nil
	}
	return r.index[i]
}

// Head returns the smallest class.
func (r *Registry) Head() *Class { return r.head }

// Tail returns the largest class.
func (r *Registry) Tail() *Class { return r.tail }

// Max returns the size of the largest class.
func (r *Registry) Max() int { return r.max }

// Len returns the number of classes.
func (r *Registry) Len() int { return len(r.index) }

// Config returns the registry configuration.
func (r *Registry) Config() Config { return r.cfg }

// Classes returns every class in ascending order.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.index))
	for c := r.head; c != nil; c = c.next {
		out = append(out, c)
	}
	return out
}

// Release drops every header and its free list and returns their metadata
// to the budget. Cells themselves belong to the arena. Release is idempotent.
func (r *Registry) Release() {
	if r.released {
		return
	}
	r.released = true
	for c := r.head; c != nil; {
		next := c.next
		c.reset()
		r.budget.ReleaseMemory(int64(ClassHeaderSize))
		c = next
	}
	r.head, r.tail = nil, nil
	r.index = nil
	r.max = 0
}
