package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/conduit/pkg/conduit"
)

func TestDeltaTransform(t *testing.T) {
	t.Run("simple delta with exactly old and new keys", func(t *testing.T) {
		result := DeltaTransform("task_updated", map[string]any{
			"old": map[string]any{
				"title":  "Draft proposal",
				"status": "open",
				"owner":  "ada",
			},
			"new": map[string]any{
				"title":  "Draft proposal",
				"status": "done",
				"owner":  "grace",
			},
		}, nil)

		require.NotNil(t, result)
		assert.Equal(t, "done", result["status"])
		assert.Equal(t, "grace", result["owner"])
		assert.NotContains(t, result, "title") // unchanged
		assert.NotContains(t, result, "old")
		assert.NotContains(t, result, "new")
		assert.NotContains(t, result, "delta")
	})

	t.Run("extended delta preserves metadata", func(t *testing.T) {
		result := DeltaTransform("task_updated", map[string]any{
			"old": map[string]any{
				"status": "open",
				"title":  "Draft",
			},
			"new": map[string]any{
				"status": "done",
				"title":  "Draft",
			},
			"task_id": "T-42",
			"actor":   "ada",
		}, nil)

		require.NotNil(t, result)
		assert.Equal(t, "T-42", result["task_id"])
		assert.Equal(t, "ada", result["actor"])
		assert.NotContains(t, result, "old")
		assert.NotContains(t, result, "new")

		delta, ok := result["delta"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "done", delta["status"])
		assert.NotContains(t, delta, "title")
	})

	t.Run("nested structures diff recursively", func(t *testing.T) {
		result := DeltaTransform("project_updated", map[string]any{
			"old": map[string]any{
				"name": "Meridian",
				"settings": map[string]any{
					"visibility": "private",
					"color":      "blue",
				},
			},
			"new": map[string]any{
				"name": "Meridian",
				"settings": map[string]any{
					"visibility": "public",
					"color":      "blue",
				},
			},
		}, nil)

		require.NotNil(t, result)
		assert.Contains(t, result, "settings")
		assert.NotContains(t, result, "name")
	})

	t.Run("no changes yields an empty delta", func(t *testing.T) {
		same := map[string]any{"title": "Draft", "status": "open"}

		result := DeltaTransform("task_updated", map[string]any{
			"old": same,
			"new": same,
		}, nil)

		require.NotNil(t, result)
		assert.Empty(t, result)
	})

	t.Run("passes through when a key is missing", func(t *testing.T) {
		cases := []map[string]any{
			{"old": map[string]any{"a": 1}, "other": "x"},
			{"new": map[string]any{"a": 1}, "other": "x"},
			{"unrelated": "payload"},
		}
		for i, data := range cases {
			result := DeltaTransform("task_updated", data, nil)
			assert.Equal(t, data, result, "case %d should pass through", i)
		}
	})

	t.Run("passes nil data through", func(t *testing.T) {
		assert.Nil(t, DeltaTransform("task_updated", nil, nil))
	})

	t.Run("arrays are replaced wholesale", func(t *testing.T) {
		result := DeltaTransform("task_updated", map[string]any{
			"old": map[string]any{"tags": []string{"a", "b", "c"}},
			"new": map[string]any{"tags": []string{"a", "b", "d"}},
		}, nil)

		require.NotNil(t, result)
		assert.Contains(t, result, "tags")
		assert.Equal(t, []string{"a", "b", "d"}, result["tags"])
	})

	t.Run("works through the pipeline", func(t *testing.T) {
		pipeline := ModifyData(DeltaTransform)

		result, cont := pipeline(&conduit.Event{
			Type: "task_updated",
			Data: map[string]any{
				"old": map[string]any{"status": "open"},
				"new": map[string]any{"status": "done"},
			},
		})

		assert.True(t, cont)
		require.NotNil(t, result)
		assert.Equal(t, "task_updated", result.Type)
		assert.Equal(t, map[string]any{"status": "done"}, result.Data)
	})
}
