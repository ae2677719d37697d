package segpool

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/segpool/internal/arena"
	"github.com/hupe1980/segpool/internal/sizeclass"
)

// Source selects where the pool obtains its blocks.
type Source int

const (
	// SourceHeap backs blocks with Go byte slices. This is the default.
	SourceHeap Source = iota
	// SourceMmap backs blocks with anonymous memory mappings that live outside
	// the Go heap. Only available on unix and windows.
	SourceMmap
)

func (s Source) String() string {
	switch s {
	case SourceHeap:
		return "heap"
	case SourceMmap:
		return "mmap"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// ParseSource parses "heap" or "mmap".
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heap", "":
		return SourceHeap, nil
	case "mmap":
		return SourceMmap, nil
	default:
		return 0, fmt.Errorf("segpool: unknown source %q", s)
	}
}

func (s Source) arenaSource() (arena.Source, error) {
	switch s {
	case SourceHeap:
		return arena.HeapSource{}, nil
	case SourceMmap:
		return arena.MmapSource{}, nil
	default:
		return nil, fmt.Errorf("segpool: invalid source %v", s)
	}
}

// Lookup selects how a request size is mapped to its size class.
type Lookup = sizeclass.Lookup

const (
	// LookupIndexed computes the class position from the size in constant
	// time. This is the default.
	LookupIndexed = sizeclass.LookupIndexed
	// LookupLinear scans the ladder from the smallest class.
	LookupLinear = sizeclass.LookupLinear
)

// ParseLookup parses "indexed" or "linear".
func ParseLookup(s string) (Lookup, error) {
	return sizeclass.ParseLookup(s)
}

// SizeClassConfig describes the class ladder and the refill policy.
//
// Classes are InitialSize, InitialSize+Increment, ... A class whose size is at
// most LargeThreshold is refilled SmallBatch cells at a time; larger classes
// get one cell per block. The ladder never grows past MaxClasses classes;
// zero selects the default bound.
type SizeClassConfig struct {
	InitialSize    int
	Increment      int
	LargeThreshold int
	SmallBatch     int
	MaxClasses     int
}

// DefaultSizeClassConfig returns the 8, 12, 16, ... ladder with 20-cell
// batches up to 128 bytes.
func DefaultSizeClassConfig() SizeClassConfig {
	c := sizeclass.DefaultConfig()
	return SizeClassConfig{
		InitialSize:    c.InitialSize,
		Increment:      c.Increment,
		LargeThreshold: c.LargeThreshold,
		SmallBatch:     c.SmallBatch,
		MaxClasses:     c.MaxClasses,
	}
}

type options struct {
	logger           *Logger
	logLevel         *slog.Level
	metricsCollector MetricsCollector
	source           Source
	lookup           Lookup
	memoryLimit      int64
	contractChecks   bool
	panicOnFailure   bool
	maxAllocSize     int
	sizeClasses      SizeClassConfig
}

func defaultOptions() options {
	return options{
		metricsCollector: NoopMetricsCollector{},
		source:           SourceHeap,
		lookup:           LookupIndexed,
		sizeClasses:      DefaultSizeClassConfig(),
	}
}

func (o *options) sizeClassConfig() sizeclass.Config {
	maxClasses := o.sizeClasses.MaxClasses
	if maxClasses == 0 {
		maxClasses = sizeclass.DefaultMaxClasses
	}
	return sizeclass.Config{
		InitialSize:    o.sizeClasses.InitialSize,
		Increment:      o.sizeClasses.Increment,
		LargeThreshold: o.sizeClasses.LargeThreshold,
		SmallBatch:     o.sizeClasses.SmallBatch,
		MaxClasses:     maxClasses,
		Lookup:         o.lookup,
	}
}

// Option configures a Pool.
type Option func(*options)

// WithLogger sets the logger used by the pool.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel installs a text logger to stderr at the given level.
// It is ignored when WithLogger is also given.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logLevel = &level
	}
}

// WithMetricsCollector sets the metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithSource selects where blocks come from.
func WithSource(s Source) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithLookup selects the class lookup strategy. Both strategies pick the
// same class for every size.
func WithLookup(l Lookup) Option {
	return func(o *options) {
		o.lookup = l
	}
}

// WithMemoryLimit caps the bytes the pool may hold, counting block bytes
// and size-class metadata. A request that would exceed it fails with an
// *AllocationError and leaves the pool unchanged.
//
// Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithContractChecks tracks every live cell so that Deallocate can reject a
// wrong size, a double free or a foreign pointer with ErrContractViolation.
//
// Checks cost a bitmap update per call and are meant for tests and
// debugging.
func WithContractChecks() Option {
	return func(o *options) {
		o.contractChecks = true
	}
}

// WithPanicOnFailure makes allocation failures panic with the
// *AllocationError instead of returning it.
func WithPanicOnFailure() Option {
	return func(o *options) {
		o.panicOnFailure = true
	}
}

// WithMaxAllocSize rejects requests larger than n bytes with ErrInvalidSize.
//
// Zero leaves only the size-class bound: requests above the largest class
// the ladder may grow to fail with an *AllocationError in PhaseHeader.
func WithMaxAllocSize(n int) Option {
	return func(o *options) {
		o.maxAllocSize = n
	}
}

// WithSizeClassConfig replaces the default class ladder.
func WithSizeClassConfig(cfg SizeClassConfig) Option {
	return func(o *options) {
		o.sizeClasses = cfg
	}
}
