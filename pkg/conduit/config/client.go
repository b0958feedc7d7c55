package config

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// ClientDefinition is the decoded shape of a client block. Duration
// attributes are kept as expressions so they accept numbers (seconds),
// Go duration strings, or ISO 8601 durations.
type ClientDefinition struct {
	Name                 string         `hcl:",label"`
	URL                  string         `hcl:"url"`
	Token                *string        `hcl:"token,optional"`
	Rooms                []string       `hcl:"rooms,optional"`
	DialTimeout          hcl.Expression `hcl:"dial_timeout,optional"`
	HeartbeatInterval    hcl.Expression `hcl:"heartbeat_interval,optional"`
	HeartbeatTimeout     hcl.Expression `hcl:"heartbeat_timeout,optional"`
	InitialDelay         hcl.Expression `hcl:"initial_delay,optional"`
	MaxDelay             hcl.Expression `hcl:"max_delay,optional"`
	BackoffFactor        *float64       `hcl:"backoff_factor,optional"`
	MaxReconnectAttempts *int           `hcl:"max_reconnect_attempts,optional"`
	QueueCapacity        *int           `hcl:"queue_capacity,optional"`
	AutoReconnect        *bool          `hcl:"auto_reconnect,optional"`
}

type ClientBlockHandler struct {
	BlockHandlerBase
}

func NewClientBlockHandler() *ClientBlockHandler {
	return &ClientBlockHandler{}
}

// ClientCapsuleType is a cty capsule type for wrapping Client instances
var ClientCapsuleType = cty.CapsuleWithOps("client", reflect.TypeOf((*any)(nil)).Elem(), &cty.CapsuleOps{
	GoString: func(val interface{}) string {
		return fmt.Sprintf("client(%p)", val)
	},
	TypeGoString: func(_ reflect.Type) string {
		return "client"
	},
})

// NewClientCapsule creates a new cty capsule value wrapping a Client
func NewClientCapsule(client *conduit.Client) cty.Value {
	return cty.CapsuleVal(ClientCapsuleType, client)
}

// GetClientFromCapsule extracts a Client from a cty capsule value
func GetClientFromCapsule(val cty.Value) (*conduit.Client, error) {
	if val.Type() != ClientCapsuleType {
		return nil, fmt.Errorf("expected client capsule, got %s", val.Type().FriendlyName())
	}

	encapsulated := val.EncapsulatedValue()
	client, ok := encapsulated.(*conduit.Client)
	if !ok {
		return nil, fmt.Errorf("encapsulated value is not a client, got %T", encapsulated)
	}
	return client, nil
}

// GetClientFromExpression resolves a client reference like client.main.
// When the expression is absent, the client named "main" is used, or the
// only defined client when there is exactly one.
func GetClientFromExpression(config *Config, clientExpr hcl.Expression) (*conduit.Client, hcl.Diagnostics) {
	if !IsExpressionProvided(clientExpr) {
		if client, ok := config.Clients["main"]; ok {
			return client, nil
		}
		if len(config.Clients) == 1 {
			for _, client := range config.Clients {
				return client, nil
			}
		}
		return nil, hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "No client specified",
				Detail:   "No client attribute given and no single default client could be determined",
			},
		}
	}

	clientCapsule, diags := clientExpr.Value(config.evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}

	client, err := GetClientFromCapsule(clientCapsule)
	if err != nil {
		exprRange := clientExpr.Range()

		return nil, hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to get client from expression",
				Detail:   err.Error(),
				Subject:  &exprRange,
			},
		}
	}

	return client, nil
}

func (h *ClientBlockHandler) FinishPreprocessing(config *Config) hcl.Diagnostics {
	config.ClientCapsuleType = ClientCapsuleType
	config.CtyClientMap = make(map[string]cty.Value)

	return nil
}

func (h *ClientBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	clientDef := ClientDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &clientDef)
	if diags.HasErrors() {
		return diags
	}

	// Manually set the name from the block label since DecodeBody doesn't handle labels
	if len(block.Labels) > 0 {
		clientDef.Name = block.Labels[0]
	}

	if _, exists := config.Clients[clientDef.Name]; exists {
		return hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate client",
				Detail:   fmt.Sprintf("Client %q is already defined", clientDef.Name),
				Subject:  &block.DefRange,
			},
		}
	}

	addDiags := h.BuildClient(config, &clientDef, &block.DefRange)
	diags = diags.Extend(addDiags)

	return diags
}

func (h *ClientBlockHandler) BuildClient(config *Config, clientDef *ClientDefinition, defRange *hcl.Range) hcl.Diagnostics {
	var diags hcl.Diagnostics

	builder := conduit.NewClient().
		WithURL(clientDef.URL).
		WithLogger(config.Logger)

	if clientDef.Token != nil {
		builder = builder.WithToken(*clientDef.Token)
	}

	if IsExpressionProvided(clientDef.DialTimeout) {
		d, durDiags := config.ParseDuration(clientDef.DialTimeout)
		diags = diags.Extend(durDiags)
		builder = builder.WithDialTimeout(d)
	}
	if IsExpressionProvided(clientDef.HeartbeatInterval) {
		d, durDiags := config.ParseDuration(clientDef.HeartbeatInterval)
		diags = diags.Extend(durDiags)
		builder = builder.WithHeartbeatInterval(d)
	}
	if IsExpressionProvided(clientDef.HeartbeatTimeout) {
		d, durDiags := config.ParseDuration(clientDef.HeartbeatTimeout)
		diags = diags.Extend(durDiags)
		builder = builder.WithHeartbeatTimeout(d)
	}
	if IsExpressionProvided(clientDef.InitialDelay) {
		d, durDiags := config.ParseDuration(clientDef.InitialDelay)
		diags = diags.Extend(durDiags)
		builder = builder.WithInitialDelay(d)
	}
	if IsExpressionProvided(clientDef.MaxDelay) {
		d, durDiags := config.ParseDuration(clientDef.MaxDelay)
		diags = diags.Extend(durDiags)
		builder = builder.WithMaxDelay(d)
	}

	if clientDef.BackoffFactor != nil {
		builder = builder.WithBackoffFactor(*clientDef.BackoffFactor)
	}
	if clientDef.MaxReconnectAttempts != nil {
		builder = builder.WithMaxReconnectAttempts(*clientDef.MaxReconnectAttempts)
	}
	if clientDef.QueueCapacity != nil {
		builder = builder.WithQueueCapacity(*clientDef.QueueCapacity)
	}
	if clientDef.AutoReconnect != nil {
		builder = builder.WithAutoReconnect(*clientDef.AutoReconnect)
	}

	if diags.HasErrors() {
		return diags
	}

	client, err := builder.Build()
	if err != nil {
		return diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Failed to build client",
			Detail:   err.Error(),
			Subject:  defRange,
		})
	}

	// Rooms joined here are replayed when the agent connects.
	for _, room := range clientDef.Rooms {
		client.JoinRoom(room)
	}

	config.Clients[clientDef.Name] = client
	config.CtyClientMap[clientDef.Name] = NewClientCapsule(client)

	// Attributes can't be added on the fly, so the client object is rebuilt
	// for each new client.
	config.Constants["client"] = cty.ObjectVal(config.CtyClientMap)

	return diags
}
