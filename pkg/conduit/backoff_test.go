package conduit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectDelay(t *testing.T) {
	t.Run("doubles per attempt up to the cap", func(t *testing.T) {
		base := 1 * time.Second
		max := 30 * time.Second

		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second, // 32s capped
			30 * time.Second,
		}
		for i, want := range expected {
			attempt := i + 1
			assert.Equal(t, want, reconnectDelay(attempt, base, max, 2.0),
				"attempt %d", attempt)
		}
	})

	t.Run("attempt below one is treated as the first attempt", func(t *testing.T) {
		assert.Equal(t, time.Second, reconnectDelay(0, time.Second, time.Minute, 2.0))
		assert.Equal(t, time.Second, reconnectDelay(-5, time.Second, time.Minute, 2.0))
	})

	t.Run("factor one keeps the delay constant", func(t *testing.T) {
		for attempt := 1; attempt <= 10; attempt++ {
			assert.Equal(t, 500*time.Millisecond,
				reconnectDelay(attempt, 500*time.Millisecond, time.Minute, 1.0))
		}
	})

	t.Run("huge attempt numbers saturate at the cap instead of overflowing", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, reconnectDelay(1000, time.Second, 30*time.Second, 2.0))
		assert.Equal(t, 30*time.Second, reconnectDelay(1<<30, time.Second, 30*time.Second, 2.0))
	})

	t.Run("non-positive base yields no delay", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), reconnectDelay(3, 0, 30*time.Second, 2.0))
	})
}
