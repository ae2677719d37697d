package integration_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segpool"
	"github.com/hupe1980/segpool/internal/trace"
	segprom "github.com/hupe1980/segpool/metrics/prometheus"
)

func sources() []segpool.Source {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return []segpool.Source{segpool.SourceHeap, segpool.SourceMmap}
	default:
		return []segpool.Source{segpool.SourceHeap}
	}
}

// TestE2E_TraceReplay writes a compressed trace, replays it against every
// pool configuration and checks the exported metrics agree with the report.
func TestE2E_TraceReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workload.trace.zst")

	w, err := trace.Create(path)
	require.NoError(t, err)
	require.NoError(t, trace.GenerateTo(w, trace.GenConfig{
		Events:  20000,
		Seed:    2024,
		MaxSize: 1024,
		Live:    500,
		Drain:   true,
	}))
	require.NoError(t, w.Close())

	for _, src := range sources() {
		for _, lookup := range []segpool.Lookup{segpool.LookupIndexed, segpool.LookupLinear} {
			t.Run(fmt.Sprintf("%s/%s", src, lookup), func(t *testing.T) {
				rec := segprom.NewRecorder("segpool")
				reg := prom.NewPedanticRegistry()
				require.NoError(t, rec.Register(reg))

				pool, err := segpool.New(
					segpool.WithSource(src),
					segpool.WithLookup(lookup),
					segpool.WithContractChecks(),
					segpool.WithMetricsCollector(rec),
				)
				require.NoError(t, err)
				require.NoError(t, reg.Register(segprom.NewCollector("segpool", pool)))

				r, err := trace.Open(path)
				require.NoError(t, err)
				defer r.Close()

				rep, err := trace.Replay(context.Background(), r, pool, trace.ReplayOptions{Verify: true})
				require.NoError(t, err)
				assert.Zero(t, rep.Leaked)

				stats := pool.Stats()
				assert.Equal(t, uint64(rep.Allocations), stats.Allocations)
				assert.Equal(t, uint64(rep.Frees), stats.Deallocations)
				assert.Zero(t, stats.LiveCells)
				assert.LessOrEqual(t, stats.MaxClass, pool.ClassFor(1024))

				expected := fmt.Sprintf(`
# HELP segpool_allocations_total Successful allocations.
# TYPE segpool_allocations_total counter
segpool_allocations_total{source=%q} %d
`, src.String(), rep.Allocations)
				assert.NoError(t, testutil.GatherAndCompare(reg, stringsReader(expected), "segpool_allocations_total"))

				require.NoError(t, pool.Close())
				assert.Zero(t, pool.Stats().BytesInUse)
			})
		}
	}
}

// TestE2E_SharedPoolAcrossTypes checks that adapters of different element
// types share classes in one pool.
func TestE2E_SharedPoolAcrossTypes(t *testing.T) {
	pool, err := segpool.New(segpool.WithContractChecks())
	require.NoError(t, err)
	defer pool.Close()

	type pair struct{ A, B uint32 }

	words, err := segpool.NewAllocator[uint64](pool)
	require.NoError(t, err)
	pairs, err := segpool.Rebind[pair](words)
	require.NoError(t, err)

	w, err := words.AllocateSlice(100)
	require.NoError(t, err)
	require.NoError(t, words.DeallocateSlice(w))

	// 100 pairs are 800 bytes, the same class as 100 words.
	p, err := pairs.AllocateSlice(100)
	require.NoError(t, err)
	assert.Same(t, &w[0], (*uint64)(unsafePointer(&p[0])))
	require.NoError(t, pairs.DeallocateSlice(p))

	assert.Equal(t, uint64(1), pool.Stats().Blocks)
}
