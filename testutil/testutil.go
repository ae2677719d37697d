package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"unsafe"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Size returns a request size in [1, maxSize]. Small sizes are far more
// likely than large ones, the way object sizes are in real programs.
func (r *RNG) Size(maxSize int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sizeLocked(maxSize)
}

func (r *RNG) sizeLocked(maxSize int) int {
	if maxSize <= 1 {
		return 1
	}
	// Exponent uniform in [0, log2(max)] gives a log-uniform size.
	e := r.rand.Float64() * math.Log2(float64(maxSize))
	n := int(math.Exp2(e))
	if n < 1 {
		n = 1
	}
	if n > maxSize {
		n = maxSize
	}
	return n
}

// Sizes returns n request sizes drawn like Size.
func (r *RNG) Sizes(n, maxSize int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, n)
	for i := range out {
		out[i] = r.sizeLocked(maxSize)
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Fill writes a pattern derived from tag over b.
func Fill(b []byte, tag uint64) {
	for i := range b {
		b[i] = patternByte(tag, i)
	}
}

// Verify reports whether b still holds the pattern Fill wrote for tag.
func Verify(b []byte, tag uint64) bool {
	for i := range b {
		if b[i] != patternByte(tag, i) {
			return false
		}
	}
	return true
}

func patternByte(tag uint64, i int) byte {
	x := tag*0x9E3779B97F4A7C15 + uint64(i)
	x ^= x >> 29
	return byte(x)
}

// Bytes views n bytes at p as a slice.
func Bytes(p unsafe.Pointer, n int) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Span is a half-open address range [Addr, Addr+Len).
type Span struct {
	Addr uintptr
	Len  int
}

// SpanOf returns the span of n bytes at p.
func SpanOf(p unsafe.Pointer, n int) Span {
	return Span{Addr: uintptr(p), Len: n}
}

// End returns the first address past the span.
func (s Span) End() uintptr {
	return s.Addr + uintptr(s.Len)
}

// FindOverlap returns the indices of two spans that share at least one byte.
// ok is false when all spans are disjoint.
func FindOverlap(spans []Span) (i, j int, ok bool) {
	order := make([]int, len(spans))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		return spans[order[a]].Addr < spans[order[b]].Addr
	})

	var end uintptr
	last := -1
	for _, k := range order {
		cur := spans[k]
		if cur.Len == 0 {
			continue
		}
		if last >= 0 && cur.Addr < end {
			return last, k, true
		}
		if cur.End() > end {
			end, last = cur.End(), k
		}
	}
	return 0, 0, false
}
