package config

import "github.com/hashicorp/hcl/v2"

type BlockHandler interface {
	Preprocess(block *hcl.Block) hcl.Diagnostics
	FinishPreprocessing(config *Config) hcl.Diagnostics
	Process(config *Config, block *hcl.Block) hcl.Diagnostics
	FinishProcessing(config *Config) hcl.Diagnostics
}

type BlockHandlerBase struct {
}

func (b *BlockHandlerBase) Preprocess(block *hcl.Block) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) FinishPreprocessing(config *Config) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) FinishProcessing(config *Config) hcl.Diagnostics {
	return nil
}

func GetBlockHandlers() map[string]BlockHandler {
	return map[string]BlockHandler{
		"const":    NewConstBlockHandler(),
		"client":   NewClientBlockHandler(),
		"schedule": NewScheduleBlockHandler(),
		"assert":   NewAssertBlockHandler(),
	}
}

// processOrder fixes the cross-type processing order: clients must exist
// before schedule blocks can reference them, and assertions run last so
// they can check anything the other blocks defined.
var processOrder = []string{"client", "schedule", "assert"}
