package trace

import (
	"errors"
	"math"
	"math/rand"
)

// GenConfig controls synthetic trace generation.
type GenConfig struct {
	// Events is the number of events before draining.
	Events int
	// Seed makes generation reproducible.
	Seed int64
	// MaxSize is the largest allocation size. Sizes are log-uniform in
	// [1, MaxSize], so small requests dominate.
	MaxSize int
	// Live is the number of live allocations the generator hovers around.
	Live int
	// Drain appends frees for every allocation still live at the end.
	Drain bool
}

// DefaultGenConfig returns a small mixed workload.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Events:  10000,
		Seed:    1,
		MaxSize: 512,
		Live:    1000,
		Drain:   true,
	}
}

// Validate reports whether the configuration can produce a trace.
func (c GenConfig) Validate() error {
	if c.Events < 0 {
		return errors.New("trace: events must not be negative")
	}
	if c.MaxSize <= 0 {
		return errors.New("trace: max size must be positive")
	}
	if c.Live <= 0 {
		return errors.New("trace: live target must be positive")
	}
	return nil
}

// Generate produces events according to cfg and passes each to emit.
// It stops at the first error emit returns.
func Generate(cfg GenConfig, emit func(Event) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	logMax := math.Log2(float64(cfg.MaxSize))

	var live []uint64
	next := uint64(1)

	for range cfg.Events {
		// Allocation probability falls as the live set grows past the target.
		pAlloc := 1 - float64(len(live))/float64(2*cfg.Live)
		if len(live) == 0 || rng.Float64() < pAlloc {
			size := int(math.Exp2(rng.Float64() * logMax))
			size = max(1, min(size, cfg.MaxSize))
			if err := emit(Alloc(next, size)); err != nil {
				return err
			}
			live = append(live, next)
			next++
			continue
		}

		i := rng.Intn(len(live))
		id := live[i]
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
		if err := emit(Free(id)); err != nil {
			return err
		}
	}

	if cfg.Drain {
		for i := len(live) - 1; i >= 0; i-- {
			if err := emit(Free(live[i])); err != nil {
				return err
			}
		}
	}
	return nil
}

// GenerateTo writes a generated trace to w.
func GenerateTo(w *Writer, cfg GenConfig) error {
	return Generate(cfg, w.Write)
}
