package functions

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/userfunc"
	"github.com/zclconf/go-cty/cty/function"
)

// ExtractUserFunctions extracts function blocks from HCL bodies and
// returns them alongside the remaining non-function content. The base
// evaluation context is fetched through a getter because functions are
// extracted before constants are evaluated; by the time a function is
// called the full context exists.
func ExtractUserFunctions(bodies []hcl.Body, getBaseCtx func() *hcl.EvalContext) (map[string]function.Function, []hcl.Body, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	remainingBodies := make([]hcl.Body, 0)
	allFuncs := make(map[string]function.Function)

	for _, body := range bodies {
		funcs, remainingBody, funcDiags := userfunc.DecodeUserFunctions(body, "function", getBaseCtx)

		diags = diags.Extend(funcDiags)
		if diags.HasErrors() {
			return nil, nil, diags
		}

		remainingBodies = append(remainingBodies, remainingBody)

		for name, fn := range funcs {
			if _, exists := allFuncs[name]; exists {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate function",
					Detail:   fmt.Sprintf("Function %s is already defined", name),
				})
			}
			allFuncs[name] = fn
		}
	}

	if diags.HasErrors() {
		return nil, nil, diags
	}

	return allFuncs, remainingBodies, diags
}
