package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

type ConstBlockHandler struct {
	BlockHandlerBase

	consts hcl.Attributes
}

func NewConstBlockHandler() *ConstBlockHandler {
	return &ConstBlockHandler{
		consts: make(hcl.Attributes),
	}
}

func (b *ConstBlockHandler) Preprocess(block *hcl.Block) hcl.Diagnostics {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}

	for name, attr := range attrs {
		if existing, exists := b.consts[name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate attribute",
				Detail:   fmt.Sprintf("Attribute %s at %v is already defined at %v", name, attr.NameRange, existing.NameRange),
				Subject:  &attr.NameRange,
			})
		}
		b.consts[name] = attr
	}

	return diags
}

// FinishPreprocessing evaluates constants in dependency order so constants
// can reference each other, and installs them into the evaluation context
// before any client or schedule block is processed.
func (b *ConstBlockHandler) FinishPreprocessing(config *Config) hcl.Diagnostics {
	attrs, diags := SortAttributesByDependencies(b.consts)
	if diags.HasErrors() {
		return diags
	}

	for _, attribute := range attrs {
		value, evalDiags := attribute.Expr.Value(config.evalCtx)
		diags = diags.Extend(evalDiags)
		config.Constants[attribute.Name] = value
	}

	return diags
}
