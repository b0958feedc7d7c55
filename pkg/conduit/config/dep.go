package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/heimdalr/dag"
)

// ExtractReferencesFromAttribute returns the dotted variable references an
// attribute's expression uses, e.g. "env.HOME" or "base_url".
func ExtractReferencesFromAttribute(attr *hcl.Attribute) []string {
	var refs []string

	for _, traversal := range attr.Expr.Variables() {
		if len(traversal) > 0 {
			ref := traversal.RootName()
			for _, step := range traversal[1:] {
				if attrStep, ok := step.(hcl.TraverseAttr); ok {
					ref += "." + attrStep.Name
				}
			}
			refs = append(refs, ref)
		}
	}

	return refs
}

// SortAttributesByDependencies returns the attributes topologically sorted
// so each one is evaluated after everything it references. References to
// names outside the attribute set (like env) are ignored; cycles are
// reported as diagnostics.
func SortAttributesByDependencies(attrs hcl.Attributes) ([]*hcl.Attribute, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	graph := dag.NewDAG()

	for _, attr := range attrs {
		err := graph.AddVertexByID(attr.Name, attr)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to add attribute to dependency graph",
				Detail:   fmt.Sprintf("Error adding attribute %s: %s", attr.Name, err),
				Subject:  &attr.NameRange,
			})
		}
	}

	for name, attr := range attrs {
		for _, ref := range ExtractReferencesFromAttribute(attr) {
			if _, exists := attrs[ref]; !exists {
				continue
			}

			err := graph.AddEdge(ref, name)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Circular dependency detected",
					Detail:   fmt.Sprintf("Cannot add dependency from %s to %s: %s", ref, name, err),
					Subject:  &attr.Range,
				})
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	visitor := &attributeVertexVisitor{}
	graph.OrderedWalk(visitor)

	return visitor.attrs, diags
}

type attributeVertexVisitor struct {
	attrs []*hcl.Attribute
}

func (v *attributeVertexVisitor) Visit(vertex dag.Vertexer) {
	_, value := vertex.Vertex()
	v.attrs = append(v.attrs, value.(*hcl.Attribute))
}
