package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unsafe"
)

var (
	// ErrUnknownID is returned when a trace frees an id that is not live.
	ErrUnknownID = errors.New("trace: free of unknown id")
	// ErrDuplicateID is returned when a trace allocates an id that is live.
	ErrDuplicateID = errors.New("trace: id already live")
	// ErrCorrupted is returned when a live allocation was overwritten by
	// another one.
	ErrCorrupted = errors.New("trace: allocation overwritten")
)

// Allocator is the pool interface a trace is replayed against.
type Allocator interface {
	Allocate(n int) (unsafe.Pointer, error)
	Deallocate(p unsafe.Pointer, n int) error
}

// ReplayOptions controls Replay.
type ReplayOptions struct {
	// Verify stamps every allocation and checks the stamp on free.
	Verify bool
	// KeepLive skips freeing allocations still live at the end.
	KeepLive bool
}

// Report summarizes a replay.
type Report struct {
	Events         int           `json:"events"`
	Allocations    int           `json:"allocations"`
	Frees          int           `json:"frees"`
	RequestedBytes int64         `json:"requested_bytes"`
	PeakLive       int           `json:"peak_live"`
	PeakLiveBytes  int64         `json:"peak_live_bytes"`
	Leaked         int           `json:"leaked"`
	Verified       bool          `json:"verified"`
	Duration       time.Duration `json:"duration_ns"`
}

type liveCell struct {
	ptr  unsafe.Pointer
	size int
}

// EventError reports the event a replay stopped at.
type EventError struct {
	Index int // 0-based event position
	Event Event
	Err   error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("trace: event %d (%v): %v", e.Index, e.Event, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// Replay applies every event of r to a. Unless opts.KeepLive is set, the
// allocations still live at the end are freed. The context is checked
// between events.
func Replay(ctx context.Context, r *Reader, a Allocator, opts ReplayOptions) (Report, error) {
	var (
		rep       = Report{Verified: opts.Verify}
		live      = make(map[uint64]liveCell)
		liveBytes int64
		start     = time.Now()
	)

	fail := func(i int, e Event, err error) (Report, error) {
		rep.Duration = time.Since(start)
		rep.Leaked = len(live)
		return rep, &EventError{Index: i, Event: e, Err: err}
	}

	for i := 0; ; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				rep.Duration = time.Since(start)
				rep.Leaked = len(live)
				return rep, err
			}
		}

		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rep.Duration = time.Since(start)
			rep.Leaked = len(live)
			return rep, err
		}
		rep.Events++

		switch e.Op {
		case OpAlloc:
			if _, ok := live[e.ID]; ok {
				return fail(i, e, ErrDuplicateID)
			}
			p, err := a.Allocate(e.Size)
			if err != nil {
				return fail(i, e, err)
			}
			if opts.Verify {
				stamp(cellBytes(p, e.Size), e.ID)
			}
			live[e.ID] = liveCell{ptr: p, size: e.Size}
			rep.Allocations++
			rep.RequestedBytes += int64(e.Size)
			liveBytes += int64(e.Size)
			rep.PeakLive = max(rep.PeakLive, len(live))
			rep.PeakLiveBytes = max(rep.PeakLiveBytes, liveBytes)

		case OpFree:
			c, ok := live[e.ID]
			if !ok {
				return fail(i, e, ErrUnknownID)
			}
			if opts.Verify && !stamped(cellBytes(c.ptr, c.size), e.ID) {
				return fail(i, e, ErrCorrupted)
			}
			if err := a.Deallocate(c.ptr, c.size); err != nil {
				return fail(i, e, err)
			}
			delete(live, e.ID)
			rep.Frees++
			liveBytes -= int64(c.size)
		}
	}

	if opts.KeepLive {
		rep.Leaked = len(live)
	} else {
		for id, c := range live {
			if opts.Verify && !stamped(cellBytes(c.ptr, c.size), id) {
				rep.Duration = time.Since(start)
				return rep, fmt.Errorf("%w: id %d", ErrCorrupted, id)
			}
			if err := a.Deallocate(c.ptr, c.size); err != nil {
				rep.Duration = time.Since(start)
				return rep, fmt.Errorf("trace: draining id %d: %w", id, err)
			}
			delete(live, id)
		}
	}

	rep.Duration = time.Since(start)
	return rep, nil
}

func cellBytes(p unsafe.Pointer, n int) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

func stampByte(id uint64, i int) byte {
	x := id*0x9E3779B97F4A7C15 + uint64(i)
	return byte(x ^ x>>31)
}

func stamp(b []byte, id uint64) {
	for i := range b {
		b[i] = stampByte(id, i)
	}
}

func stamped(b []byte, id uint64) bool {
	for i := range b {
		if b[i] != stampByte(id, i) {
			return false
		}
	}
	return true
}
