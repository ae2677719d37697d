package segpool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segpool/internal/arena"
	"github.com/hupe1980/segpool/internal/sizeclass"
	"github.com/hupe1980/segpool/internal/track"
)

var (
	// ErrAllocationFailed matches every *AllocationError.
	ErrAllocationFailed = errors.New("segpool: allocation failed")
	// ErrInvalidSize is returned for negative or oversized requests.
	ErrInvalidSize = errors.New("segpool: invalid size")
	// ErrClosed is returned when using a pool after Close.
	ErrClosed = errors.New("segpool: pool closed")
	// ErrContractViolation is returned when a deallocation breaks the
	// allocate/deallocate contract and the pool is able to tell.
	ErrContractViolation = errors.New("segpool: contract violation")
	// ErrPointerElement is returned when a typed adapter is requested for an
	// element type that holds Go pointers.
	ErrPointerElement = errors.New("segpool: element type contains Go pointers")
)

// Phase names the structure the pool was creating when it ran out of memory.
type Phase int

const (
	// PhaseHeader is the creation of a size-class header.
	PhaseHeader Phase = iota + 1
	// PhaseBlock is the creation of an arena block.
	PhaseBlock
)

func (p Phase) String() string {
	switch p {
	case PhaseHeader:
		return "header"
	case PhaseBlock:
		return "block"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// AllocationError reports memory the pool could not obtain. The pool state
// is unchanged by the failed request.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type AllocationError struct {
	Phase   Phase
	Size    int // class size (PhaseHeader) or block payload bytes (PhaseBlock)
	Request int // bytes the client asked for
	cause   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("segpool: allocating %d bytes: cannot create %s of %d bytes: %v", e.Request, e.Phase, e.Size, e.cause)
}

// Is reports whether target is ErrAllocationFailed.
func (e *AllocationError) Is(target error) bool { return target == ErrAllocationFailed }

func (e *AllocationError) Unwrap() error { return e.cause }

func translateError(request int, err error) error {
	if err == nil {
		return nil
	}

	var he *sizeclass.ErrHeaderAllocation
	if errors.As(err, &he) {
		return &AllocationError{Phase: PhaseHeader, Size: he.Size, Request: request, cause: err}
	}
	var be *arena.ErrBlockAllocation
	if errors.As(err, &be) {
		return &AllocationError{Phase: PhaseBlock, Size: be.Size, Request: request, cause: err}
	}

	if errors.Is(err, arena.ErrReleased) || errors.Is(err, sizeclass.ErrReleased) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	var v *track.Violation
	if errors.As(err, &v) {
		return fmt.Errorf("%w: %w", ErrContractViolation, err)
	}

	return err
}
