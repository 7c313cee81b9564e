package resource

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})
	require.NoError(t, c.AcquireMemory(1<<40))
	require.NoError(t, c.AcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(2<<40), c.PeakMemoryUsage())
}

func TestController_RequestLargerThanLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	err := c.AcquireMemory(101)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Zero(t, c.PeakMemoryUsage())
}

func TestController_WaitsForRelease(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	require.NoError(t, c.AcquireMemory(80))

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.AcquireMemory(30))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("acquire should wait while budget is held")
	case <-time.After(20 * time.Millisecond):
	}

	c.ReleaseMemory(80)
	wg.Wait()
	c.ReleaseMemory(30)
	// The two reservations never overlapped.
	assert.Equal(t, int64(80), c.PeakMemoryUsage())
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.PeakMemoryUsage())
}
