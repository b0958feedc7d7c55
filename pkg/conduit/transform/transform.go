// Package transform provides composable functions for reshaping, filtering,
// and rate limiting conduit events before they reach application code.
// Transforms chain into pipelines and match event types with MQTT-style
// patterns.
package transform

import (
	"strings"
	"time"

	"github.com/amir-yaghoubi/mqttpattern"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// TransformFunc transforms an event. It can modify, replace, or drop the
// event before further processing.
//
// Returns:
//   - *conduit.Event: The transformed event (nil to drop it)
//   - bool: Whether to continue calling subsequent transforms in a chain
//     (ignored when the event is nil)
type TransformFunc func(event *conduit.Event) (*conduit.Event, bool)

// DropTypePattern returns a TransformFunc that drops events whose types
// match the given MQTT-style pattern.
//
// Pattern examples:
//   - "presence/+" - drops "presence/typing", "presence/viewing", ...
//   - "debug/#" - drops everything under "debug/"
//
// Example:
//
//	pipeline := transform.Chain(
//	    transform.DropTypePattern("presence/+"),
//	    transform.DropTypePattern("debug/#"),
//	)
func DropTypePattern(pattern string) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		if mqttpattern.Matches(pattern, event.Type) {
			return nil, false
		}
		return event, true
	}
}

// DropTypePrefix returns a TransformFunc that drops events whose types
// start with the given prefix.
func DropTypePrefix(prefix string) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		if strings.HasPrefix(event.Type, prefix) {
			return nil, false
		}
		return event, true
	}
}

// AddTypePrefix returns a TransformFunc that prefixes every event type.
//
// Example:
//
//	transform.AddTypePrefix("remote/") // "task_updated" becomes "remote/task_updated"
func AddTypePrefix(prefix string) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		modified := &conduit.Event{
			Type: prefix + event.Type,
			Data: event.Data,
		}
		return modified, true
	}
}

// RateLimitByType returns a TransformFunc that drops events of a type
// arriving sooner than minInterval after the previous one of that type.
// Useful for taming chatty presence traffic.
//
// Note: this is a basic implementation and is not safe for use from
// multiple goroutines at once; apply it inside a single listener.
func RateLimitByType(minInterval time.Duration) TransformFunc {
	lastSeen := make(map[string]time.Time)

	return func(event *conduit.Event) (*conduit.Event, bool) {
		now := time.Now()
		if last, exists := lastSeen[event.Type]; exists {
			if now.Sub(last) < minInterval {
				return nil, false
			}
		}
		lastSeen[event.Type] = now
		return event, true
	}
}

// Chain combines multiple TransformFuncs into one, applied in order. A nil
// result or a false continue flag stops the chain.
//
// Example:
//
//	pipeline := transform.Chain(
//	    transform.DropTypePrefix("presence/"),
//	    deltaTransform,
//	)
func Chain(transforms ...TransformFunc) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		current := event
		for _, transform := range transforms {
			if current == nil {
				return nil, true
			}

			transformed, continueProcessing := transform(current)
			current = transformed

			if current == nil || !continueProcessing {
				return current, continueProcessing
			}
		}
		return current, true
	}
}

// SimpleTransformFunc transforms just the data payload of an event. It
// receives the event type, the payload, and any fields extracted from type
// pattern matching, and returns the new payload. Returning nil drops the
// event.
type SimpleTransformFunc func(eventType string, data map[string]any, fields map[string]string) map[string]any

// OnTypePattern returns a TransformFunc that applies a SimpleTransformFunc
// to events whose types match the given MQTT-style pattern, passing along
// fields extracted from the type.
//
// Pattern examples with field extraction:
//   - "task/+id/updated" - extracts the task id as the "id" field
//   - "user/+userId/+action" - extracts userId and action
//
// Example:
//
//	tagTask := func(eventType string, data map[string]any, fields map[string]string) map[string]any {
//	    data["task_id"] = fields["id"]
//	    return data
//	}
//	pipeline := transform.OnTypePattern("task/+id/updated", tagTask)
func OnTypePattern(pattern string, transform SimpleTransformFunc) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		if !mqttpattern.Matches(pattern, event.Type) {
			return event, true
		}

		extractedFields := mqttpattern.Extract(pattern, event.Type)

		transformedData := transform(event.Type, event.Data, extractedFields)
		if transformedData == nil {
			return nil, true
		}

		return &conduit.Event{Type: event.Type, Data: transformedData}, true
	}
}

// IfPattern returns a TransformFunc that applies transform only when the
// event type matches the given MQTT-style pattern; other events pass
// through unchanged.
func IfPattern(pattern string, transform TransformFunc) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		if mqttpattern.Matches(pattern, event.Type) {
			return transform(event)
		}
		return event, true
	}
}

// IfElsePattern returns a TransformFunc that applies ifTransform when the
// event type matches the pattern and elseTransform otherwise.
func IfElsePattern(pattern string, ifTransform, elseTransform TransformFunc) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		if mqttpattern.Matches(pattern, event.Type) {
			return ifTransform(event)
		}
		return elseTransform(event)
	}
}

// ModifyData returns a TransformFunc that applies a SimpleTransformFunc to
// every event's data payload, regardless of type.
func ModifyData(transform SimpleTransformFunc) TransformFunc {
	return func(event *conduit.Event) (*conduit.Event, bool) {
		transformedData := transform(event.Type, event.Data, make(map[string]string))
		if transformedData == nil {
			return nil, true
		}

		return &conduit.Event{Type: event.Type, Data: transformedData}, true
	}
}
