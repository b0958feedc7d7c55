package config

import (
	"fmt"

	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// SendFunction returns a cty function for sending an event through a
// client from configuration expressions:
//
//	send(ctx, client.main, "reminder", { room = "project:alpha" })
//
// The ctx argument is the per-run context object, so sends can only happen
// from runtime evaluation (scheduled jobs and functions they call), never
// while the configuration itself is being built. Returns the send result
// as a string: "sent", "queued", or "dropped".
func SendFunction(config *Config) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "ctx",
				Type: cty.DynamicPseudoType,
			},
			{
				Name: "client",
				Type: cty.DynamicPseudoType,
			},
			{
				Name: "type",
				Type: cty.String,
			},
			{
				Name: "data",
				Type: cty.DynamicPseudoType,
			},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			if _, diags := GetContextFromObject(args[0]); diags.HasErrors() {
				return cty.UnknownVal(cty.String), fmt.Errorf("context error: %s", diags.Error())
			}

			client, err := GetClientFromCapsule(args[1])
			if err != nil {
				return cty.UnknownVal(cty.String), err
			}

			eventType := args[2].AsString()

			payload, err := go2cty2go.CtyToAny(args[3])
			if err != nil {
				return cty.UnknownVal(cty.String), fmt.Errorf("failed to convert data: %w", err)
			}

			result := client.Send(eventType, payload)

			return cty.StringVal(result.String()), nil
		},
	})
}
