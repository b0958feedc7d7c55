package conduit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomSet(t *testing.T) {
	t.Run("add reports whether the room was new", func(t *testing.T) {
		r := newRoomSet()
		assert.True(t, r.add("project-1"))
		assert.False(t, r.add("project-1"))
		assert.Equal(t, 1, r.len())
		assert.True(t, r.contains("project-1"))
	})

	t.Run("list preserves insertion order", func(t *testing.T) {
		r := newRoomSet()
		r.add("board-42")
		r.add("project-1")
		r.add("task-007")
		assert.Equal(t, []string{"board-42", "project-1", "task-007"}, r.list())
	})

	t.Run("remove keeps the order of the rest", func(t *testing.T) {
		r := newRoomSet()
		r.add("a")
		r.add("b")
		r.add("c")

		assert.True(t, r.remove("b"))
		assert.False(t, r.remove("b"))
		assert.False(t, r.contains("b"))
		assert.Equal(t, []string{"a", "c"}, r.list())
	})

	t.Run("list returns a copy", func(t *testing.T) {
		r := newRoomSet()
		r.add("a")
		r.add("b")

		rooms := r.list()
		rooms[0] = "mutated"
		assert.Equal(t, []string{"a", "b"}, r.list())
	})

	t.Run("clear empties everything", func(t *testing.T) {
		r := newRoomSet()
		r.add("a")
		r.add("b")
		r.clear()

		assert.Equal(t, 0, r.len())
		assert.False(t, r.contains("a"))
		assert.Empty(t, r.list())

		// The set is still usable afterwards.
		assert.True(t, r.add("a"))
		assert.Equal(t, []string{"a"}, r.list())
	})
}
