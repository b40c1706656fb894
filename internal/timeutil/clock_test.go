package timeutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	assert.GreaterOrEqual(t, c.Since(start), time.Duration(0))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
	assert.Equal(t, time.Hour, c.Since(start))
}

func TestMockClock_Concurrent(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, 8*time.Second, c.Since(time.Unix(0, 0)))
}
