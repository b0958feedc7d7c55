// Package config builds conduit clients and scheduled event sends from
// HCL configuration files. Configurations can define constants, reusable
// functions, client blocks describing server connections, and schedule
// blocks that send events through those clients on cron expressions.
package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/robfig/cron/v3"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit"
	"github.com/meridianhq/conduit/pkg/conduit/config/functions"
)

type ConfigBuilder struct {
	logger        *zap.Logger
	sources       []any
	blockHandlers map[string]BlockHandler
}

type Config struct {
	Logger    *zap.Logger
	Functions map[string]function.Function
	Constants map[string]cty.Value
	evalCtx   *hcl.EvalContext

	ClientCapsuleType cty.Type
	CtyClientMap      map[string]cty.Value
	Clients           map[string]*conduit.Client

	Crons map[string]*cron.Cron
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		sources:       make([]any, 0),
		blockHandlers: GetBlockHandlers(),
	}
}

func (c *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	c.logger = logger
	return c
}

func (c *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	c.sources = append(c.sources, sources...)
	return c
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	if cb.logger == nil {
		cb.logger = zap.NewNop()
	}

	config := &Config{
		Logger:    cb.logger,
		Constants: make(map[string]cty.Value),
		Clients:   make(map[string]*conduit.Client),
		Crons:     make(map[string]*cron.Cron),
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	userFuncs, nonFunctionBodies, addDiags := config.ExtractUserFunctions(bodies)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Functions, addDiags = config.GetFunctions(userFuncs)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	blocks, addDiags := cb.GetBlocks(nonFunctionBodies)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	// Add environment variables to the evaluation context
	config.Constants["env"] = GetEnvObject()

	config.evalCtx = &hcl.EvalContext{
		Functions: config.Functions,
		Variables: config.Constants,
	}

	// Preprocess blocks

	for _, block := range blocks {
		if handler, ok := cb.blockHandlers[block.Type]; ok {
			diags = diags.Extend(handler.Preprocess(block))
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, handler := range cb.blockHandlers {
		diags = diags.Extend(handler.FinishPreprocessing(config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	// Process blocks. Clients are processed before schedules so schedule
	// blocks can reference client values.

	for _, blockType := range processOrder {
		handler := cb.blockHandlers[blockType]
		for _, block := range blocks {
			if block.Type == blockType {
				diags = diags.Extend(handler.Process(config, block))
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	for _, handler := range cb.blockHandlers {
		diags = diags.Extend(handler.FinishProcessing(config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Info("Config built successfully",
		zap.Int("clients", len(config.Clients)),
		zap.Int("schedules", len(config.Crons)))

	return config, diags
}

// ExtractUserFunctions wraps the functions package ExtractUserFunctions.
// The eval context getter is late-bound: it returns whatever c.evalCtx is
// when a user function is actually invoked, so function bodies can use
// constants and other functions even though extraction happens first.
func (c *Config) ExtractUserFunctions(bodies []hcl.Body) (map[string]function.Function, []hcl.Body, hcl.Diagnostics) {
	return functions.ExtractUserFunctions(bodies, func() *hcl.EvalContext {
		return c.evalCtx
	})
}

// GetFunctions wraps the functions package and adds config-specific functions
func (c *Config) GetFunctions(userFuncs map[string]function.Function) (map[string]function.Function, hcl.Diagnostics) {
	funcs := functions.GetStandardLibraryFunctions()
	diags := hcl.Diagnostics{}

	for name, fn := range functions.GetLogFunctions(c.Logger) {
		funcs[name] = fn
	}

	funcs["diff"] = functions.DiffFunc
	funcs["patch"] = functions.PatchFunc
	funcs["send"] = SendFunction(c)
	funcs["typeof"] = functions.TypeOfFunc

	for name, fn := range userFuncs {
		if _, exists := funcs[name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate function",
				Detail:   fmt.Sprintf("Function %s is reserved and can't be overridden", name),
			})
			continue
		}
		funcs[name] = fn
	}

	return funcs, diags
}

// Start connects every configured client and starts every schedule.
// Clients that cannot connect immediately are left to their reconnect
// machinery rather than failing the whole start.
func (c *Config) Start(ctx context.Context) {
	for name, client := range c.Clients {
		if err := client.Connect(ctx); err != nil {
			c.Logger.Warn("Initial connect failed, reconnect will retry",
				zap.String("client", name), zap.Error(err))
		}
	}

	for _, cronObj := range c.Crons {
		cronObj.Start()
	}
}

// Stop stops all schedules and disconnects all clients. Stopping waits
// for any in-flight scheduled jobs to finish.
func (c *Config) Stop() {
	for _, cronObj := range c.Crons {
		cronCtx := cronObj.Stop()
		<-cronCtx.Done()
	}

	for _, client := range c.Clients {
		client.Disconnect()
	}
}
