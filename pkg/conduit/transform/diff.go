package transform

import (
	"github.com/tsarna/go-structdiff"
)

// DeltaTransform is a SimpleTransformFunc that replaces "old" and "new"
// values in an event payload with their structural difference.
//
// It looks for payloads containing both "old" and "new" keys, the shape
// servers use for entity update events. When found, it computes the diff
// between the two values.
//
// Behavior depends on the payload structure:
//
// 1. Payload with exactly "old" and "new" keys:
//   - The entire payload is replaced with the diff result
//
// 2. Payload with "old" and "new" keys plus additional keys:
//   - "old" and "new" are removed
//   - A "delta" key is added containing the structural differences
//   - All other keys are preserved
//
// Example 1 - Simple delta (exactly old/new):
//
//	Input:  map[string]any{"old": {...}, "new": {...}}
//	Output: map[string]any{"status": "done"}  // the diff
//
// Example 2 - Extended delta (old/new + metadata):
//
//	Input:  map[string]any{
//	    "old": map[string]any{"title": "Draft", "status": "open"},
//	    "new": map[string]any{"title": "Draft", "status": "done"},
//	    "task_id": "T-42",
//	    "actor": "ada",
//	}
//	Output: map[string]any{
//	    "delta": map[string]any{"status": "done"},
//	    "task_id": "T-42",
//	    "actor": "ada",
//	}
//
// Payloads missing either key, and payloads whose diff cannot be computed,
// pass through unchanged.
//
// Use cases:
//   - Rendering only the fields an update actually changed
//   - Reducing payload size for activity feeds and audit views
func DeltaTransform(eventType string, data map[string]any, fields map[string]string) map[string]any {
	if data == nil {
		return data
	}

	oldValue, hasOld := data["old"]
	newValue, hasNew := data["new"]
	if !hasOld || !hasNew {
		return data
	}

	isSimpleDelta := len(data) == 2

	diff, err := structdiff.Diff(oldValue, newValue)
	if err != nil {
		return data
	}

	diffMap, isMap := any(diff).(map[string]any)
	if !isMap && diff != nil {
		return data
	}
	// A no-change diff normalizes to an empty map.
	if diffMap == nil {
		diffMap = map[string]any{}
	}

	if isSimpleDelta {
		return diffMap
	}

	newData := make(map[string]any)
	for key, value := range data {
		if key != "old" && key != "new" {
			newData[key] = value
		}
	}
	newData["delta"] = diffMap

	return newData
}
