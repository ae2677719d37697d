package segpool

import "sync"

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns a process-wide pool created with default options on first
// use. It is never closed.
//
// Sharing one pool lets element types of similar size reuse the same classes.
// Like every Pool it is not safe for concurrent use.
func Default() *Pool {
	defaultOnce.Do(func() {
		p, err := New()
		if err != nil {
			panic(err)
		}
		defaultPool = p
	})
	return defaultPool
}
