package transform

import (
	"context"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// JqTransform returns a TransformFunc that runs a jq query against each
// event's data payload. The event type is bound to the $type variable
// inside the query.
//
// Result handling:
//   - Query produces no output: the event is dropped
//   - Single object result: it becomes the new data payload
//   - Single non-object result: wrapped as {"value": result}
//   - Multiple results: wrapped as {"values": [results...]}
//   - Query execution error: the event passes through unchanged
//
// Example:
//
//	trim, err := transform.JqTransform(`{id: .id, status: .status}`, logger)
//	if err != nil {
//	    return err
//	}
//	client.On("task_updated", func(event conduit.Event) {
//	    if out, _ := trim(&event); out != nil {
//	        render(*out)
//	    }
//	})
func JqTransform(jqQuery string, logger *zap.Logger) (TransformFunc, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, err
	}

	code, err := gojq.Compile(query, gojq.WithVariables([]string{"$type"}))
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return func(event *conduit.Event) (*conduit.Event, bool) {
		var input any
		if event.Data != nil {
			input = event.Data
		}

		iter := code.RunWithContext(context.Background(), input, event.Type)

		var results []any
		for {
			value, ok := iter.Next()
			if !ok {
				break
			}
			if runErr, isErr := value.(error); isErr {
				logger.Warn("jq transform failed, passing event through",
					zap.String("type", event.Type),
					zap.Error(runErr))
				return event, true
			}
			results = append(results, value)
		}

		switch len(results) {
		case 0:
			return nil, false
		case 1:
			if resultMap, isMap := results[0].(map[string]any); isMap {
				return &conduit.Event{Type: event.Type, Data: resultMap}, true
			}
			return &conduit.Event{Type: event.Type, Data: map[string]any{"value": results[0]}}, true
		default:
			return &conduit.Event{Type: event.Type, Data: map[string]any{"values": results}}, true
		}
	}, nil
}
