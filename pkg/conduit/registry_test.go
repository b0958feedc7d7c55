package conduit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRegistryDispatch(t *testing.T) {
	t.Run("exact key only matches its own type", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var got []string
		r.on("task_updated", func(event Event) {
			got = append(got, event.Type)
		})

		r.dispatch(Event{Type: "task_updated"})
		r.dispatch(Event{Type: "task_created"})
		r.dispatch(Event{Type: "task_updated"})

		assert.Equal(t, []string{"task_updated", "task_updated"}, got)
	})

	t.Run("wildcard receives every type", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var got []string
		r.on(Wildcard, func(event Event) {
			got = append(got, event.Type)
		})

		r.dispatch(Event{Type: "task_updated"})
		r.dispatch(Event{Type: TypeConnected})
		r.dispatch(Event{Type: "anything"})

		assert.Equal(t, []string{"task_updated", TypeConnected, "anything"}, got)
	})

	t.Run("hash wildcard is equivalent to star", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		count := 0
		r.on("#", func(Event) { count++ })

		r.dispatch(Event{Type: "a"})
		r.dispatch(Event{Type: "b/c"})

		assert.Equal(t, 2, count)
	})

	t.Run("plus pattern matches one level", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var got []string
		r.on("task/+/updated", func(event Event) {
			got = append(got, event.Type)
		})

		r.dispatch(Event{Type: "task/42/updated"})
		r.dispatch(Event{Type: "task/42/created"})
		r.dispatch(Event{Type: "task/42/sub/updated"})
		r.dispatch(Event{Type: "task/7/updated"})

		assert.Equal(t, []string{"task/42/updated", "task/7/updated"}, got)
	})

	t.Run("hash pattern matches a whole subtree", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var got []string
		r.on("presence/#", func(event Event) {
			got = append(got, event.Type)
		})

		r.dispatch(Event{Type: "presence/user-1"})
		r.dispatch(Event{Type: "presence/user-1/typing"})
		r.dispatch(Event{Type: "task/42/updated"})

		assert.Equal(t, []string{"presence/user-1", "presence/user-1/typing"}, got)
	})

	t.Run("exact listeners run before pattern listeners", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var order []string
		r.on(Wildcard, func(Event) { order = append(order, "wildcard") })
		r.on("task_updated", func(Event) { order = append(order, "exact") })

		r.dispatch(Event{Type: "task_updated"})

		assert.Equal(t, []string{"exact", "wildcard"}, order)
	})

	t.Run("same-key listeners run in registration order", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var order []int
		r.on("e", func(Event) { order = append(order, 1) })
		r.on("e", func(Event) { order = append(order, 2) })
		r.on("e", func(Event) { order = append(order, 3) })

		r.dispatch(Event{Type: "e"})

		assert.Equal(t, []int{1, 2, 3}, order)
	})
}

func TestRegistryCancel(t *testing.T) {
	t.Run("cancelled subscription stops receiving", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		count := 0
		sub := r.on("e", func(Event) { count++ })

		r.dispatch(Event{Type: "e"})
		sub.Cancel()
		r.dispatch(Event{Type: "e"})

		assert.Equal(t, 1, count)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		sub := r.on("e", func(Event) {})
		sub.Cancel()
		sub.Cancel()

		var nilSub *Subscription
		nilSub.Cancel() // must not panic
	})

	t.Run("cancel only removes the targeted subscription", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		var got []int
		sub1 := r.on("e", func(Event) { got = append(got, 1) })
		r.on("e", func(Event) { got = append(got, 2) })

		sub1.Cancel()
		r.dispatch(Event{Type: "e"})

		assert.Equal(t, []int{2}, got)
	})

	t.Run("unsubscribe during dispatch takes effect next event", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		count := 0
		var sub *Subscription
		sub = r.on("e", func(Event) {
			count++
			sub.Cancel()
		})

		r.dispatch(Event{Type: "e"})
		r.dispatch(Event{Type: "e"})

		assert.Equal(t, 1, count)
	})

	t.Run("subscription reports its key", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		assert.Equal(t, "task_updated", r.on("task_updated", func(Event) {}).Type())
		assert.Equal(t, Wildcard, r.on(Wildcard, func(Event) {}).Type())
		assert.Equal(t, "", r.onStateChange(func(StateChange) {}).Type())
	})

	t.Run("clear removes event and state listeners alike", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		count := 0
		r.on("e", func(Event) { count++ })
		r.on(Wildcard, func(Event) { count++ })
		r.onStateChange(func(StateChange) { count++ })

		r.clear()
		r.dispatch(Event{Type: "e"})
		r.dispatchState(StateChange{From: StateDisconnected, To: StateConnecting})

		assert.Equal(t, 0, count)
	})
}

func TestRegistryStateDispatch(t *testing.T) {
	r := newListenerRegistry(zaptest.NewLogger(t))
	var got []StateChange
	r.onStateChange(func(change StateChange) {
		got = append(got, change)
	})

	r.dispatchState(StateChange{From: StateDisconnected, To: StateConnecting})
	r.dispatchState(StateChange{From: StateConnecting, To: StateConnected})

	require.Len(t, got, 2)
	assert.Equal(t, StateConnecting, got[0].To)
	assert.Equal(t, StateConnected, got[1].To)
}

func TestRegistryPanicIsolation(t *testing.T) {
	t.Run("a panicking event listener does not starve the others", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		survived := false
		r.on("e", func(Event) { panic("listener bug") })
		r.on("e", func(Event) { survived = true })

		require.NotPanics(t, func() {
			r.dispatch(Event{Type: "e"})
		})
		assert.True(t, survived)
	})

	t.Run("a panicking state listener does not starve the others", func(t *testing.T) {
		r := newListenerRegistry(zaptest.NewLogger(t))
		survived := false
		r.onStateChange(func(StateChange) { panic("listener bug") })
		r.onStateChange(func(StateChange) { survived = true })

		require.NotPanics(t, func() {
			r.dispatchState(StateChange{From: StateDisconnected, To: StateConnecting})
		})
		assert.True(t, survived)
	})
}
