package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op is the kind of a trace event.
type Op byte

const (
	// OpAlloc allocates Size bytes for ID.
	OpAlloc Op = 'a'
	// OpFree frees the allocation bound to ID.
	OpFree Op = 'f'
)

func (o Op) String() string {
	switch o {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	default:
		return fmt.Sprintf("Op(%q)", byte(o))
	}
}

// Event is one line of a trace.
type Event struct {
	Op   Op
	ID   uint64
	Size int // OpAlloc only
}

// Alloc returns an allocation event.
func Alloc(id uint64, size int) Event {
	return Event{Op: OpAlloc, ID: id, Size: size}
}

// Free returns a free event.
func Free(id uint64) Event {
	return Event{Op: OpFree, ID: id}
}

func (e Event) String() string {
	if e.Op == OpAlloc {
		return fmt.Sprintf("a %d %d", e.ID, e.Size)
	}
	return fmt.Sprintf("%c %d", byte(e.Op), e.ID)
}

var errMalformed = errors.New("malformed event")

// SyntaxError reports a line that is not a valid event.
type SyntaxError struct {
	Line int
	Text string
	err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("trace: line %d: %v: %q", e.Line, e.err, e.Text)
}

func (e *SyntaxError) Unwrap() error { return e.err }

// parseEvent parses one non-comment line.
func parseEvent(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields[0]) != 1 {
		return Event{}, errMalformed
	}

	switch Op(fields[0][0]) {
	case OpAlloc:
		if len(fields) != 3 {
			return Event{}, errMalformed
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("id: %w", err)
		}
		size, err := strconv.Atoi(fields[2])
		if err != nil {
			return Event{}, fmt.Errorf("size: %w", err)
		}
		if size < 0 {
			return Event{}, fmt.Errorf("size: negative %d", size)
		}
		return Alloc(id, size), nil
	case OpFree:
		if len(fields) != 2 {
			return Event{}, errMalformed
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("id: %w", err)
		}
		return Free(id), nil
	default:
		return Event{}, fmt.Errorf("unknown op %q", fields[0])
	}
}
