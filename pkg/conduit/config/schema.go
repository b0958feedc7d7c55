package config

import (
	"github.com/hashicorp/hcl/v2"
)

var blockSchema = []hcl.BlockHeaderSchema{
	{
		Type:       "assert",
		LabelNames: []string{"name"},
	},
	{
		Type:       "client",
		LabelNames: []string{"name"},
	},
	{
		Type:       "const",
		LabelNames: []string{},
	},
	{
		Type:       "function",
		LabelNames: []string{"name"},
	},
	{
		Type:       "schedule",
		LabelNames: []string{"name"},
	},
}

var configSchema = &hcl.BodySchema{
	Blocks: blockSchema,
}
