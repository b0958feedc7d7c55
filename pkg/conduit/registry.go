package conduit

import (
	"strings"
	"sync"

	"github.com/amir-yaghoubi/mqttpattern"
	"go.uber.org/zap"
)

// Wildcard is the registry key whose listeners receive every event regardless
// of type.
const Wildcard = "*"

// matcher reports whether a registered key matches an event type.
type matcher func(eventType string) bool

// makeMatcher builds the match function for a registry key. Plain keys match
// exactly. The "*" wildcard (and the equivalent MQTT "#") matches everything.
// Keys containing "+" or "#" match MQTT-style against slash-namespaced event
// types, which lets callers subscribe to families like "presence/#" when the
// server uses hierarchical types.
func makeMatcher(key string) matcher {
	if key == Wildcard || key == "#" {
		return func(string) bool { return true }
	}
	if strings.ContainsAny(key, "+#") {
		return func(eventType string) bool {
			return mqttpattern.Matches(key, eventType)
		}
	}
	return func(eventType string) bool {
		return eventType == key
	}
}

// isPatternKey reports whether a key needs matcher-based dispatch rather than
// the exact-type index.
func isPatternKey(key string) bool {
	return key == Wildcard || strings.ContainsAny(key, "+#")
}

// Subscription is the handle returned by On and OnStateChange. Cancelling it
// (directly or through Client.Off) unregisters the listener; cancellation is
// idempotent.
type Subscription struct {
	registry *listenerRegistry
	key      string
	fn       Listener
	stateFn  StateListener
	match    matcher
	canceled bool
}

// Cancel unregisters the listener. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.off(s)
}

// Type returns the event type or pattern this subscription was registered
// for, or the empty string for a state-change subscription.
func (s *Subscription) Type() string {
	return s.key
}

// listenerRegistry maps message-type keys (exact types, the "*" wildcard, and
// MQTT-style patterns) to listener sets, plus a separate list of state-change
// listeners. Dispatch snapshots the matching set under the lock and invokes
// outside it, so listeners may subscribe or unsubscribe freely during a
// dispatch pass; removals take effect for subsequent events. Every invocation
// is panic-wrapped.
type listenerRegistry struct {
	mu       sync.Mutex
	logger   *zap.Logger
	exact    map[string][]*Subscription
	patterns []*Subscription
	state    []*Subscription
}

func newListenerRegistry(logger *zap.Logger) *listenerRegistry {
	return &listenerRegistry{
		logger: logger,
		exact:  make(map[string][]*Subscription),
	}
}

func (r *listenerRegistry) on(key string, fn Listener) *Subscription {
	sub := &Subscription{
		registry: r,
		key:      key,
		fn:       fn,
		match:    makeMatcher(key),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if isPatternKey(key) {
		r.patterns = append(r.patterns, sub)
	} else {
		r.exact[key] = append(r.exact[key], sub)
	}
	return sub
}

func (r *listenerRegistry) onStateChange(fn StateListener) *Subscription {
	sub := &Subscription{
		registry: r,
		stateFn:  fn,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = append(r.state, sub)
	return sub
}

func (r *listenerRegistry) off(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.canceled {
		return
	}
	sub.canceled = true

	switch {
	case sub.stateFn != nil:
		r.state = removeSub(r.state, sub)
	case isPatternKey(sub.key):
		r.patterns = removeSub(r.patterns, sub)
	default:
		subs := removeSub(r.exact[sub.key], sub)
		if len(subs) == 0 {
			delete(r.exact, sub.key)
		} else {
			r.exact[sub.key] = subs
		}
	}
}

// clear drops every registered listener, event and state alike.
func (r *listenerRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, subs := range r.exact {
		for _, sub := range subs {
			sub.canceled = true
		}
	}
	for _, sub := range r.patterns {
		sub.canceled = true
	}
	for _, sub := range r.state {
		sub.canceled = true
	}

	r.exact = make(map[string][]*Subscription)
	r.patterns = nil
	r.state = nil
}

// dispatch delivers an event to listeners registered for its specific type
// first, then to wildcard/pattern listeners, each group in registration
// order.
func (r *listenerRegistry) dispatch(event Event) {
	r.mu.Lock()
	snapshot := make([]*Subscription, 0, len(r.exact[event.Type])+len(r.patterns))
	snapshot = append(snapshot, r.exact[event.Type]...)
	for _, sub := range r.patterns {
		if sub.match(event.Type) {
			snapshot = append(snapshot, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range snapshot {
		r.invoke(sub, event)
	}
}

// dispatchState delivers a state transition to every state listener.
func (r *listenerRegistry) dispatchState(change StateChange) {
	r.mu.Lock()
	snapshot := make([]*Subscription, len(r.state))
	copy(snapshot, r.state)
	r.mu.Unlock()

	for _, sub := range snapshot {
		r.invokeState(sub, change)
	}
}

func (r *listenerRegistry) invoke(sub *Subscription, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Event listener panicked",
				zap.String("type", event.Type),
				zap.Any("panic", rec))
		}
	}()
	sub.fn(event)
}

func (r *listenerRegistry) invokeState(sub *Subscription, change StateChange) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("State listener panicked",
				zap.String("state", change.To.String()),
				zap.Any("panic", rec))
		}
	}()
	sub.stateFn(change)
}

func removeSub(subs []*Subscription, target *Subscription) []*Subscription {
	for i, sub := range subs {
		if sub == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
