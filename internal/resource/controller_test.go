package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	// Test with limit
	c := NewController(Config{MemoryLimitBytes: 100})

	// Acquire 50
	err := c.AcquireMemory(50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryUsage())

	// Acquire 40
	err = c.AcquireMemory(40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Acquire 20 (should fail - limit exceeded)
	err = c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Release 50
	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	// Now Acquire 20 should succeed
	err = c.AcquireMemory(20)
	require.NoError(t, err)
	assert.Equal(t, int64(60), c.MemoryUsage())

	assert.Equal(t, int64(90), c.PeakMemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	err := c.AcquireMemory(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())
}

func TestController_IgnoresNonPositive(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 10})

	require.NoError(t, c.AcquireMemory(0))
	require.NoError(t, c.AcquireMemory(-5))
	c.ReleaseMemory(-5)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10) // Should not panic
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, int64(0), c.PeakMemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())
}

func TestController_ConcurrentAccounting(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 1 << 20})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := c.AcquireMemory(16); err == nil {
					c.ReleaseMemory(16)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), c.MemoryUsage())
}
