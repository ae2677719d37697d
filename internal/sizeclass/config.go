package sizeclass

import (
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/hupe1980/segpool/internal/conv"
)

const (
	// DefaultInitialSize is the size of the first class.
	DefaultInitialSize = 8
	// DefaultIncrement is the distance between adjacent classes.
	DefaultIncrement = 4
	// DefaultLargeThreshold is the largest class size still refilled in batches.
	DefaultLargeThreshold = 128
	// DefaultSmallBatch is the number of cells carved per block for small classes.
	DefaultSmallBatch = 20
	// LargeBatch is the number of cells carved per block above the threshold.
	LargeBatch = 1
	// DefaultMaxClasses bounds the ladder. With the default sizes the largest
	// class is just over 1 MiB and the headers cost a few MiB.
	DefaultMaxClasses = 1 << 18
)

// minCellSize is the smallest cell able to hold a free-list link.
const minCellSize = int(unsafe.Sizeof(uintptr(0)))

// Lookup selects how a request size is mapped to its class.
type Lookup int

const (
	// LookupIndexed computes the class position directly from the size.
	LookupIndexed Lookup = iota
	// LookupLinear scans the ladder from its head.
	LookupLinear
)

func (l Lookup) String() string {
	switch l {
	case LookupIndexed:
		return "indexed"
	case LookupLinear:
		return "linear"
	default:
		return fmt.Sprintf("Lookup(%d)", int(l))
	}
}

// ParseLookup parses "indexed" or "linear".
func ParseLookup(s string) (Lookup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "indexed", "index", "":
		return LookupIndexed, nil
	case "linear", "scan":
		return LookupLinear, nil
	default:
		return 0, fmt.Errorf("sizeclass: unknown lookup %q", s)
	}
}

// Config describes the class ladder and refill policy.
type Config struct {
	InitialSize    int
	Increment      int
	LargeThreshold int
	SmallBatch     int
	MaxClasses     int
	Lookup         Lookup
}

// DefaultConfig returns the 8/4 ladder with 20-cell batches up to 128 bytes.
func DefaultConfig() Config {
	return Config{
		InitialSize:    DefaultInitialSize,
		Increment:      DefaultIncrement,
		LargeThreshold: DefaultLargeThreshold,
		SmallBatch:     DefaultSmallBatch,
		MaxClasses:     DefaultMaxClasses,
		Lookup:         LookupIndexed,
	}
}

// Validate reports whether the configuration can back a working ladder.
func (c Config) Validate() error {
	if c.InitialSize < minCellSize {
		return fmt.Errorf("sizeclass: initial size %d is below the minimum cell size %d", c.InitialSize, minCellSize)
	}
	if c.Increment <= 0 {
		return fmt.Errorf("sizeclass: increment must be positive, got %d", c.Increment)
	}
	if c.LargeThreshold < 0 {
		return fmt.Errorf("sizeclass: large threshold must not be negative, got %d", c.LargeThreshold)
	}
	if c.SmallBatch <= 0 {
		return fmt.Errorf("sizeclass: small batch must be positive, got %d", c.SmallBatch)
	}
	if c.MaxClasses <= 0 {
		return fmt.Errorf("sizeclass: max classes must be positive, got %d", c.MaxClasses)
	}
	if c.Lookup != LookupIndexed && c.Lookup != LookupLinear {
		return fmt.Errorf("sizeclass: invalid lookup %v", c.Lookup)
	}
	return nil
}

// Batch returns the number of cells carved from one block for a class of the
// given size.
func (c Config) Batch(size int) int {
	if size > c.LargeThreshold {
		return LargeBatch
	}
	return c.SmallBatch
}

// ClassFor returns the size of the class a request of n bytes is served from.
func (c Config) ClassFor(n int) int {
	if n <= c.InitialSize {
		return c.InitialSize
	}
	steps := (n - c.InitialSize + c.Increment - 1) / c.Increment
	return c.InitialSize + steps*c.Increment
}

// MaxSize returns the size of the largest class the ladder may grow to.
func (c Config) MaxSize() int {
	span, err := conv.MulInt(c.MaxClasses-1, c.Increment)
	if err != nil {
		return math.MaxInt
	}
	size, err := conv.AddInt(c.InitialSize, span)
	if err != nil {
		return math.MaxInt
	}
	return size
}
