package benchmark_test

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/hupe1980/segpool"
	"github.com/hupe1980/segpool/testutil"
)

// ============================================================================
// WORKLOAD BENCHMARKS
// ============================================================================
//
// Each workload replays a fixed size distribution with a sliding window of
// live allocations:
// 1. Uniform  - every class equally likely
// 2. Small    - log-uniform sizes, dominated by the batched classes
// 3. Zipfian  - a few hot sizes, the common case for real programs
// 4. Large    - sizes above the batch threshold, one block per refill

const (
	workloadLen = 4096
	window      = 512
)

type workload struct {
	name  string
	sizes []int
}

func workloads() []workload {
	rng := testutil.NewRNG(4711)

	uniform := make([]int, workloadLen)
	for i := range uniform {
		uniform[i] = 1 + rng.Intn(256)
	}

	zipf := make([]int, workloadLen)
	for i := range zipf {
		zipf[i] = 8 + 4*rng.Zipf(64, 1.2)
	}

	large := make([]int, workloadLen)
	for i := range large {
		large[i] = 129 + rng.Intn(2048)
	}

	return []workload{
		{"uniform", uniform},
		{"small", rng.Sizes(workloadLen, 512)},
		{"zipfian", zipf},
		{"large", large},
	}
}

func BenchmarkWorkloads(b *testing.B) {
	for _, w := range workloads() {
		for _, lookup := range []segpool.Lookup{segpool.LookupIndexed, segpool.LookupLinear} {
			b.Run(fmt.Sprintf("%s/segpool-%s", w.name, lookup), func(b *testing.B) {
				benchPool(b, w.sizes, segpool.WithLookup(lookup))
			})
		}
		b.Run(w.name+"/make", func(b *testing.B) {
			benchMake(b, w.sizes)
		})
	}
}

func benchPool(b *testing.B, sizes []int, opts ...segpool.Option) {
	p, err := segpool.New(opts...)
	if err != nil {
		b.Fatalf("new pool: %v", err)
	}
	defer p.Close()

	live := make([]unsafe.Pointer, window)
	liveSize := make([]int, window)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		slot := i % window
		if live[slot] != nil {
			if err := p.Deallocate(live[slot], liveSize[slot]); err != nil {
				b.Fatal(err)
			}
		}
		n := sizes[i%len(sizes)]
		ptr, err := p.Allocate(n)
		if err != nil {
			b.Fatal(err)
		}
		live[slot], liveSize[slot] = ptr, n
	}
	b.StopTimer()

	s := p.Stats()
	b.ReportMetric(float64(s.BytesReserved), "reserved-B")
	b.ReportMetric(float64(s.Classes), "classes")
}

var sink [][]byte

func benchMake(b *testing.B, sizes []int) {
	live := make([][]byte, window)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		live[i%window] = make([]byte, sizes[i%len(sizes)])
	}
	b.StopTimer()
	sink = live
}

func BenchmarkTypedAllocator(b *testing.B) {
	p, err := segpool.New()
	if err != nil {
		b.Fatalf("new pool: %v", err)
	}
	defer p.Close()

	type node struct {
		Key, Left, Right uint32
		Weight           float32
	}
	a, err := segpool.NewAllocator[node](p)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n, err := a.Allocate(1)
		if err != nil {
			b.Fatal(err)
		}
		a.Construct(n, node{Key: uint32(i)})
		if err := a.Deallocate(n, 1); err != nil {
			b.Fatal(err)
		}
	}
}
