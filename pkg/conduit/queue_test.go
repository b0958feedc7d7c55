package conduit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendQueue(t *testing.T) {
	t.Run("pop returns frames in push order", func(t *testing.T) {
		q := newSendQueue(10)
		q.push(queuedFrame{msgType: "a"})
		q.push(queuedFrame{msgType: "b"})
		q.push(queuedFrame{msgType: "c"})
		require.Equal(t, 3, q.len())

		for _, want := range []string{"a", "b", "c"} {
			frame, ok := q.pop()
			require.True(t, ok)
			assert.Equal(t, want, frame.msgType)
		}

		_, ok := q.pop()
		assert.False(t, ok)
		assert.Equal(t, 0, q.len())
	})

	t.Run("push at capacity evicts the oldest frame", func(t *testing.T) {
		q := newSendQueue(3)
		for _, typ := range []string{"m1", "m2", "m3"} {
			_, evicted := q.push(queuedFrame{msgType: typ})
			assert.False(t, evicted)
		}

		old, evicted := q.push(queuedFrame{msgType: "m4"})
		require.True(t, evicted)
		assert.Equal(t, "m1", old.msgType)
		assert.Equal(t, 3, q.len())

		// Survivors are the newest three, still in order.
		for _, want := range []string{"m2", "m3", "m4"} {
			frame, ok := q.pop()
			require.True(t, ok)
			assert.Equal(t, want, frame.msgType)
		}
	})

	t.Run("peek does not remove", func(t *testing.T) {
		q := newSendQueue(2)

		_, ok := q.peek()
		assert.False(t, ok)

		q.push(queuedFrame{msgType: "a"})
		frame, ok := q.peek()
		require.True(t, ok)
		assert.Equal(t, "a", frame.msgType)
		assert.Equal(t, 1, q.len())
	})

	t.Run("capacity one always holds the newest frame", func(t *testing.T) {
		q := newSendQueue(1)
		q.push(queuedFrame{msgType: "first"})
		old, evicted := q.push(queuedFrame{msgType: "second"})
		require.True(t, evicted)
		assert.Equal(t, "first", old.msgType)

		frame, ok := q.peek()
		require.True(t, ok)
		assert.Equal(t, "second", frame.msgType)
	})
}
