package segpool

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/hupe1980/segpool/internal/conv"
)

// Destroyer is implemented by element types that hold resources outside the
// pool. Allocator.Destroy calls it before the storage is given back.
type Destroyer interface {
	Destroy()
}

// Allocator hands out storage for arrays of T from a Pool.
//
// T must not contain Go pointers: the garbage collector does not scan pool
// memory. Adapters of different element types may share one Pool and reuse
// each other's size classes.
type Allocator[T any] struct {
	pool     *Pool
	elemSize int
}

// NewAllocator creates an adapter for T over p. A nil p selects Default().
func NewAllocator[T any](p *Pool) (*Allocator[T], error) {
	if p == nil {
		p = Default()
	}
	typ := reflect.TypeFor[T]()
	if hasPointers(typ) {
		return nil, fmt.Errorf("%w: %v", ErrPointerElement, typ)
	}
	return &Allocator[T]{
		pool:     p,
		elemSize: int(typ.Size()),
	}, nil
}

// Rebind returns an adapter for U over the pool a uses.
func Rebind[U, T any](a *Allocator[T]) (*Allocator[U], error) {
	return NewAllocator[U](a.pool)
}

// Pool returns the underlying pool.
func (a *Allocator[T]) Pool() *Pool { return a.pool }

// ElemSize returns the size of T in bytes.
func (a *Allocator[T]) ElemSize() int { return a.elemSize }

// Allocate returns uninitialized storage for count elements.
// A zero count returns nil without touching the pool.
func (a *Allocator[T]) Allocate(count int) (*T, error) {
	if count == 0 {
		return nil, nil
	}
	n, err := a.bytes(count)
	if err != nil {
		return nil, err
	}
	ptr, err := a.pool.Allocate(n)
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// AllocateSlice is Allocate returning a slice of length and capacity count.
func (a *Allocator[T]) AllocateSlice(count int) ([]T, error) {
	p, err := a.Allocate(count)
	if err != nil || p == nil {
		return nil, err
	}
	return unsafe.Slice(p, count), nil
}

// Deallocate returns storage obtained from Allocate(count). A zero count is
// a no-op.
func (a *Allocator[T]) Deallocate(p *T, count int) error {
	if count == 0 {
		return nil
	}
	n, err := a.bytes(count)
	if err != nil {
		return err
	}
	return a.pool.Deallocate(unsafe.Pointer(p), n)
}

// DeallocateSlice releases a slice obtained from AllocateSlice. s must start
// at its first element and keep its capacity.
func (a *Allocator[T]) DeallocateSlice(s []T) error {
	if cap(s) == 0 {
		return nil
	}
	return a.Deallocate(unsafe.SliceData(s), cap(s))
}

// Construct stores v at p, making it a live element.
func (a *Allocator[T]) Construct(p *T, v T) {
	*p = v
}

// Destroy ends the life of the element at p. When *T implements Destroyer
// its Destroy method is called. The storage itself stays allocated.
func (a *Allocator[T]) Destroy(p *T) {
	if d, ok := any(p).(Destroyer); ok {
		d.Destroy()
	}
}

// Equal reports whether storage from a can be released through other, which
// holds when both draw from the same pool.
func (a *Allocator[T]) Equal(other interface{ Pool() *Pool }) bool {
	return other != nil && a.pool == other.Pool()
}

// MaxSize returns the largest count Allocate can serve, bounded by the
// pool's maximum allocation size.
func (a *Allocator[T]) MaxSize() int {
	if a.elemSize == 0 {
		return math.MaxInt
	}
	return a.pool.MaxAllocSize() / a.elemSize
}

func (a *Allocator[T]) bytes(count int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: count %d", ErrInvalidSize, count)
	}
	n, err := conv.MulInt(count, a.elemSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %d elements of %d bytes: %w", ErrInvalidSize, count, a.elemSize, err)
	}
	return n, nil
}

// hasPointers reports whether values of t hold anything the garbage
// collector would need to trace.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
