//go:build unix || windows

package segpool_test

import (
	"testing"
	"unsafe"

	"github.com/hupe1980/segpool"
	"github.com/hupe1980/segpool/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_MmapSource(t *testing.T) {
	p := newPool(t, segpool.WithSource(segpool.SourceMmap))

	sizes := testutil.NewRNG(3).Sizes(300, 1000)
	bufs := make([][]byte, len(sizes))
	spans := make([]testutil.Span, len(sizes))
	for i, n := range sizes {
		b, err := p.AllocateBytes(n)
		require.NoError(t, err)
		testutil.Fill(b, uint64(i))
		bufs[i] = b
		spans[i] = testutil.SpanOf(unsafe.Pointer(unsafe.SliceData(b)), n)
	}

	for i, b := range bufs {
		assert.True(t, testutil.Verify(b, uint64(i)))
	}
	_, _, overlap := testutil.FindOverlap(spans)
	assert.False(t, overlap)

	stats := p.Stats()
	assert.Equal(t, "mmap", stats.Source)
	assert.NotZero(t, stats.Blocks)

	require.NoError(t, p.Close())
	assert.Zero(t, p.Stats().Blocks)
}
