package sizeclass

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segpool/internal/resource"
)

func newRegistry(t *testing.T, lookup Lookup) *Registry {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Lookup = lookup
	r, err := NewRegistry(cfg, nil)
	require.NoError(t, err)
	return r
}

func TestNewRegistry(t *testing.T) {
	r := newRegistry(t, LookupIndexed)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 8, r.Max())
	assert.Same(t, r.Head(), r.Tail())
	assert.Equal(t, 8, r.Head().Size())
	assert.Equal(t, 20, r.Head().Batch())
}

func TestNewRegistry_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"initial below link size", func(c *Config) { c.InitialSize = 4 }},
		{"zero increment", func(c *Config) { c.Increment = 0 }},
		{"negative threshold", func(c *Config) { c.LargeThreshold = -1 }},
		{"zero batch", func(c *Config) { c.SmallBatch = 0 }},
		{"zero max classes", func(c *Config) { c.MaxClasses = 0 }},
		{"unknown lookup", func(c *Config) { c.Lookup = Lookup(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			_, err := NewRegistry(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_ExtendTo(t *testing.T) {
	r := newRegistry(t, LookupIndexed)

	created, err := r.ExtendTo(13)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 16, r.Max())

	// Already covered: no new classes.
	created, err = r.ExtendTo(10)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	created, err = r.ExtendTo(200)
	require.NoError(t, err)
	assert.Equal(t, 46, created)

	// Monotonic ladder spaced by the increment.
	classes := r.Classes()
	require.Len(t, classes, r.Len())
	for i := 1; i < len(classes); i++ {
		assert.Equal(t, classes[i-1].Size()+DefaultIncrement, classes[i].Size())
		assert.Same(t, classes[i], classes[i-1].Next())
	}
	assert.Nil(t, r.Tail().Next())
}

func TestRegistry_Find13UsesClass16(t *testing.T) {
	for _, lookup := range []Lookup{LookupIndexed, LookupLinear} {
		t.Run(lookup.String(), func(t *testing.T) {
			r := newRegistry(t, lookup)
			_, err := r.ExtendTo(13)
			require.NoError(t, err)

			c := r.Find(13)
			require.NotNil(t, c)
			assert.Equal(t, 16, c.Size())
		})
	}
}

func TestRegistry_FindBeyondLadder(t *testing.T) {
	for _, lookup := range []Lookup{LookupIndexed, LookupLinear} {
		r := newRegistry(t, lookup)
		assert.Nil(t, r.Find(9), lookup.String())
		assert.Equal(t, 8, r.Find(1).Size(), lookup.String())
	}
}

func TestRegistry_LookupEquivalence(t *testing.T) {
	r := newRegistry(t, LookupIndexed)
	_, err := r.ExtendTo(4096)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		n := rng.Intn(4200) + 1
		lin, idx := r.findLinear(n), r.findIndexed(n)
		require.Same(t, lin, idx, "size %d", n)
		if lin != nil {
			assert.GreaterOrEqual(t, lin.Size(), n)
			assert.Equal(t, r.Config().ClassFor(n), lin.Size())
		}
	}
}

func TestRegistry_HeaderBudget(t *testing.T) {
	budget := resource.NewController(resource.Config{MemoryLimitBytes: int64(3 * ClassHeaderSize)})
	r, err := NewRegistry(DefaultConfig(), budget)
	require.NoError(t, err)

	created, err := r.ExtendTo(24)
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	var he *ErrHeaderAllocation
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 20, he.Size)

	// 12 and 16 were linked, 20 was not.
	assert.Equal(t, 2, created)
	assert.Equal(t, 16, r.Max())
	assert.Equal(t, 3, r.Len())
	assert.Nil(t, r.Tail().Next())
	assert.Equal(t, int64(3*ClassHeaderSize), budget.MemoryUsage())

	r.Release()
	assert.Equal(t, int64(0), budget.MemoryUsage())
}

func TestRegistry_Release(t *testing.T) {
	budget := resource.NewController(resource.Config{})
	r, err := NewRegistry(DefaultConfig(), budget)
	require.NoError(t, err)
	_, err = r.ExtendTo(64)
	require.NoError(t, err)

	r.Release()
	r.Release()
	assert.Equal(t, int64(0), budget.MemoryUsage())
	assert.Equal(t, 0, r.Len())

	_, err = r.ExtendTo(128)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestRegistry_LadderBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClasses = 4
	budget := resource.NewController(resource.Config{})
	r, err := NewRegistry(cfg, budget)
	require.NoError(t, err)
	before := budget.MemoryUsage()

	for _, target := range []int{21, 1 << 40, math.MaxInt} {
		created, err := r.ExtendTo(target)
		assert.ErrorIs(t, err, ErrLadderExhausted)
		assert.Zero(t, created)

		var he *ErrHeaderAllocation
		require.ErrorAs(t, err, &he)
		assert.Equal(t, target, he.Size)
	}
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, before, budget.MemoryUsage())

	created, err := r.ExtendTo(20)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 20, r.Max())
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.Batch(8))
	assert.Equal(t, 20, cfg.Batch(128))
	assert.Equal(t, 1, cfg.Batch(132))

	assert.Equal(t, 8, cfg.ClassFor(1))
	assert.Equal(t, 8, cfg.ClassFor(8))
	assert.Equal(t, 12, cfg.ClassFor(9))
	assert.Equal(t, 16, cfg.ClassFor(13))
	assert.Equal(t, 132, cfg.ClassFor(129))

	assert.Equal(t, 8+(DefaultMaxClasses-1)*4, cfg.MaxSize())
	cfg.MaxClasses = 1
	assert.Equal(t, 8, cfg.MaxSize())
	cfg.MaxClasses = math.MaxInt
	assert.Equal(t, math.MaxInt, cfg.MaxSize())
}

func TestParseLookup(t *testing.T) {
	l, err := ParseLookup("linear")
	require.NoError(t, err)
	assert.Equal(t, LookupLinear, l)

	l, err = ParseLookup("Indexed")
	require.NoError(t, err)
	assert.Equal(t, LookupIndexed, l)

	_, err = ParseLookup("hash")
	assert.Error(t, err)

	assert.Equal(t, "Lookup(9)", Lookup(9).String())
}

func BenchmarkRegistry_Find(b *testing.B) {
	for _, lookup := range []Lookup{LookupIndexed, LookupLinear} {
		b.Run(lookup.String(), func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Lookup = lookup
			r, err := NewRegistry(cfg, nil)
			if err != nil {
				b.Fatal(err)
			}
			if _, err := r.ExtendTo(1024); err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = r.Find(1000)
			}
		})
	}
}
