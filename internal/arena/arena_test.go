package arena

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segpool/internal/mem"
	"github.com/hupe1980/segpool/internal/resource"
)

type failingSource struct {
	err   error
	calls int
}

func (s *failingSource) Reserve(size int) (Region, error) {
	s.calls++
	return nil, s.err
}

func (s *failingSource) Name() string { return "failing" }

type shortSource struct{}

func (shortSource) Reserve(size int) (Region, error) {
	return &heapRegion{data: make([]byte, size-1)}, nil
}

func (shortSource) Name() string { return "short" }

type closeTracker struct {
	closed *[]int
	id     int
	data   []byte
}

func (r *closeTracker) Bytes() []byte { return r.data }

func (r *closeTracker) Close() error {
	*r.closed = append(*r.closed, r.id)
	return nil
}

type trackingSource struct {
	closed []int
	next   int
}

func (s *trackingSource) Reserve(size int) (Region, error) {
	s.next++
	return &closeTracker{closed: &s.closed, id: s.next, data: make([]byte, size)}, nil
}

func (s *trackingSource) Name() string { return "tracking" }

func TestArena_AllocBlock(t *testing.T) {
	t.Run("payload is writable", func(t *testing.T) {
		a := New(nil, nil)
		defer a.Release()

		ptr, err := a.AllocBlock(160)
		require.NoError(t, err)
		require.NotNil(t, ptr)

		buf := unsafe.Slice((*byte)(ptr), 160)
		for i := range buf {
			buf[i] = byte(i)
		}
		for i := range buf {
			assert.Equal(t, byte(i), buf[i])
		}
	})

	t.Run("stats include header", func(t *testing.T) {
		a := New(HeapSource{}, nil)
		defer a.Release()

		_, err := a.AllocBlock(160)
		require.NoError(t, err)
		_, err = a.AllocBlock(200)
		require.NoError(t, err)

		stats := a.Stats()
		assert.Equal(t, uint64(2), stats.Blocks)
		assert.Equal(t, uint64(360+2*HeaderSize), stats.BytesReserved)
		assert.Equal(t, uint64(360), stats.PayloadBytes)
	})

	t.Run("distinct blocks do not overlap", func(t *testing.T) {
		a := New(nil, nil)
		defer a.Release()

		p1, err := a.AllocBlock(64)
		require.NoError(t, err)
		p2, err := a.AllocBlock(64)
		require.NoError(t, err)

		s1, s2 := uintptr(p1), uintptr(p2)
		assert.True(t, s1+64 <= s2 || s2+64 <= s1)
	})

	t.Run("heap payload is aligned", func(t *testing.T) {
		a := New(HeapSource{}, nil)
		defer a.Release()

		for _, n := range []int{1, 12, 160, 4096} {
			ptr, err := a.AllocBlock(n)
			require.NoError(t, err)
			assert.True(t, mem.IsAligned(ptr, mem.DefaultAlignment))
		}
	})

	t.Run("heap reserve rejects invalid alignment", func(t *testing.T) {
		_, err := reserveAligned(64, 3)
		assert.Error(t, err)

		r, err := reserveAligned(64, 64)
		require.NoError(t, err)
		assert.True(t, mem.IsAligned(unsafe.Pointer(&r.Bytes()[0]), 64))
		assert.Len(t, r.Bytes(), 64)
	})

	t.Run("invalid size", func(t *testing.T) {
		a := New(nil, nil)
		defer a.Release()

		_, err := a.AllocBlock(0)
		var be *ErrBlockAllocation
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 0, be.Size)
		assert.Equal(t, uint64(0), a.Stats().Blocks)
	})
}

func TestArena_Walk(t *testing.T) {
	a := New(nil, nil)
	defer a.Release()

	for _, n := range []int{160, 240, 132} {
		_, err := a.AllocBlock(n)
		require.NoError(t, err)
	}

	var seqs []uint64
	var sizes []int
	a.Walk(func(seq uint64, payload int) bool {
		seqs = append(seqs, seq)
		sizes = append(sizes, payload)
		return true
	})

	// Most recent first.
	assert.Equal(t, []uint64{3, 2, 1}, seqs)
	assert.Equal(t, []int{132, 240, 160}, sizes)

	visited := 0
	a.Walk(func(uint64, int) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestArena_SourceFailure(t *testing.T) {
	budget := resource.NewController(resource.Config{})
	boom := errors.New("out of memory")
	src := &failingSource{err: boom}
	a := New(src, budget)

	_, err := a.AllocBlock(160)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var be *ErrBlockAllocation
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 160, be.Size)

	// No partial state change.
	assert.Equal(t, uint64(0), a.Stats().Blocks)
	assert.Equal(t, int64(0), budget.MemoryUsage())
	assert.Equal(t, 1, src.calls)
}

func TestArena_ShortRegion(t *testing.T) {
	budget := resource.NewController(resource.Config{})
	a := New(shortSource{}, budget)

	_, err := a.AllocBlock(64)
	require.Error(t, err)
	assert.Equal(t, int64(0), budget.MemoryUsage())
	assert.Equal(t, uint64(0), a.Stats().Blocks)
}

func TestArena_BudgetExceeded(t *testing.T) {
	budget := resource.NewController(resource.Config{MemoryLimitBytes: 200})
	a := New(nil, budget)
	defer a.Release()

	_, err := a.AllocBlock(160)
	require.NoError(t, err)
	assert.Equal(t, int64(160+HeaderSize), budget.MemoryUsage())

	_, err = a.AllocBlock(160)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, uint64(1), a.Stats().Blocks)
	assert.Equal(t, int64(160+HeaderSize), budget.MemoryUsage())
}

func TestArena_Release(t *testing.T) {
	t.Run("most recent first", func(t *testing.T) {
		src := &trackingSource{}
		budget := resource.NewController(resource.Config{})
		a := New(src, budget)

		for i := 0; i < 4; i++ {
			_, err := a.AllocBlock(32)
			require.NoError(t, err)
		}

		require.NoError(t, a.Release())
		assert.Equal(t, []int{4, 3, 2, 1}, src.closed)
		assert.Equal(t, int64(0), budget.MemoryUsage())
		assert.Equal(t, Stats{}, a.Stats())
		assert.True(t, a.Released())
	})

	t.Run("idempotent", func(t *testing.T) {
		src := &trackingSource{}
		a := New(src, nil)
		_, err := a.AllocBlock(32)
		require.NoError(t, err)

		require.NoError(t, a.Release())
		require.NoError(t, a.Release())
		assert.Len(t, src.closed, 1)
	})

	t.Run("alloc after release", func(t *testing.T) {
		a := New(nil, nil)
		require.NoError(t, a.Release())

		_, err := a.AllocBlock(32)
		assert.ErrorIs(t, err, ErrReleased)
	})
}

func TestArena_String(t *testing.T) {
	a := New(nil, nil)
	defer a.Release()

	_, err := a.AllocBlock(1024)
	require.NoError(t, err)
	assert.Contains(t, a.String(), "source: heap")
	assert.Contains(t, a.String(), "blocks: 1")
}

func BenchmarkArena_AllocBlock(b *testing.B) {
	a := New(nil, nil)
	defer a.Release()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := a.AllocBlock(160); err != nil {
			b.Fatal(err)
		}
	}
}
