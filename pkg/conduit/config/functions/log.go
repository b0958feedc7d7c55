package functions

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetLogFunctions returns HCL functions for logging through a zap logger.
// With a nil logger the functions are no-ops that return false.
func GetLogFunctions(logger *zap.Logger) map[string]function.Function {
	if logger == nil {
		return map[string]function.Function{
			"log_debug": makeNoOpLogFunc(),
			"log_info":  makeNoOpLogFunc(),
			"log_warn":  makeNoOpLogFunc(),
			"log_error": makeNoOpLogFunc(),
			"log_msg":   makeNoOpLogLevelFunc(),
		}
	}

	return map[string]function.Function{
		"log_debug": makeLogFunc(logger, zapcore.DebugLevel),
		"log_info":  makeLogFunc(logger, zapcore.InfoLevel),
		"log_warn":  makeLogFunc(logger, zapcore.WarnLevel),
		"log_error": makeLogFunc(logger, zapcore.ErrorLevel),
		"log_msg":   makeLogLevelFunc(logger),
	}
}

// makeLogFunc creates a logging function for a specific log level
func makeLogFunc(logger *zap.Logger, level zapcore.Level) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "message",
				Type: cty.String,
			},
		},
		VarParam: &function.Parameter{
			Name: "fields",
			Type: cty.DynamicPseudoType,
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			message := args[0].AsString()
			fields := convertArgsToZapFields(args[1:])

			logger.Log(level, message, fields...)

			return cty.True, nil
		},
	})
}

// makeLogLevelFunc creates a logging function that takes the log level as
// its first parameter
func makeLogLevelFunc(logger *zap.Logger) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "level",
				Type: cty.String,
			},
			{
				Name: "message",
				Type: cty.String,
			},
		},
		VarParam: &function.Parameter{
			Name: "fields",
			Type: cty.DynamicPseudoType,
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			message := args[1].AsString()

			var level zapcore.Level
			switch args[0].AsString() {
			case "debug":
				level = zapcore.DebugLevel
			case "info":
				level = zapcore.InfoLevel
			case "warn", "warning":
				level = zapcore.WarnLevel
			case "error":
				level = zapcore.ErrorLevel
			default:
				level = zapcore.InfoLevel
			}

			fields := convertArgsToZapFields(args[2:])

			logger.Log(level, message, fields...)

			return cty.True, nil
		},
	})
}

// convertArgsToZapFields converts a slice of cty values to zap fields.
// A single map or object argument contributes its entries as named fields;
// anything else gets positional $1, $2, ... names.
func convertArgsToZapFields(args []cty.Value) []zap.Field {
	var fields []zap.Field

	if len(args) == 1 && !args[0].IsNull() && (args[0].Type().IsMapType() || args[0].Type().IsObjectType()) {
		mapVal := args[0]
		hasElements := false
		for it := mapVal.ElementIterator(); it.Next(); {
			hasElements = true
			key, val := it.Element()
			if field := convertCtyValueToZapField(key.AsString(), val); field != nil {
				fields = append(fields, *field)
			}
		}
		if hasElements {
			return fields
		}
	}

	for i, arg := range args {
		if field := convertCtyValueToZapField(fmt.Sprintf("$%d", i+1), arg); field != nil {
			fields = append(fields, *field)
		}
	}
	return fields
}

// convertCtyValueToZapField converts a cty value to a zap field
func convertCtyValueToZapField(key string, val cty.Value) *zap.Field {
	if val.IsNull() {
		field := zap.String(key, "<null>")
		return &field
	}

	switch val.Type() {
	case cty.String:
		field := zap.String(key, val.AsString())
		return &field
	case cty.Number:
		if bigFloat := val.AsBigFloat(); bigFloat.IsInt() {
			if intVal, accuracy := bigFloat.Int64(); accuracy == 0 {
				field := zap.Int64(key, intVal)
				return &field
			}
		}
		floatVal, _ := val.AsBigFloat().Float64()
		field := zap.Float64(key, floatVal)
		return &field
	case cty.Bool:
		field := zap.Bool(key, val.True())
		return &field
	default:
		if val.Type().IsListType() || val.Type().IsTupleType() || val.Type().IsSetType() {
			var elements []string
			for it := val.ElementIterator(); it.Next(); {
				_, elemVal := it.Element()
				switch {
				case elemVal.Type() == cty.String:
					elements = append(elements, fmt.Sprintf("%q", elemVal.AsString()))
				case elemVal.Type() == cty.Number:
					elements = append(elements, elemVal.AsBigFloat().String())
				case elemVal.Type() == cty.Bool:
					elements = append(elements, fmt.Sprintf("%t", elemVal.True()))
				default:
					elements = append(elements, elemVal.GoString())
				}
			}
			field := zap.String(key, fmt.Sprintf("[%s]", strings.Join(elements, ", ")))
			return &field
		}

		field := zap.String(key, val.GoString())
		return &field
	}
}

// makeNoOpLogFunc creates a no-op logging function for when no logger is
// available
func makeNoOpLogFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "message",
				Type: cty.String,
			},
		},
		VarParam: &function.Parameter{
			Name: "fields",
			Type: cty.DynamicPseudoType,
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.False, nil
		},
	})
}

// makeNoOpLogLevelFunc creates a no-op log_msg function for when no logger
// is available
func makeNoOpLogLevelFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "level",
				Type: cty.String,
			},
			{
				Name: "message",
				Type: cty.String,
			},
		},
		VarParam: &function.Parameter{
			Name: "fields",
			Type: cty.DynamicPseudoType,
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.False, nil
		},
	})
}
