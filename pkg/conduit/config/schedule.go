package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/robfig/cron/v3"
	"github.com/tsarna/go2cty2go"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// ScheduleDefinition is the decoded shape of a schedule block: a set of
// cron-timed event sends through one client.
//
//	schedule "pings" {
//	  client   = client.main
//	  timezone = "UTC"
//
//	  at "*/30 * * * * *" "presence" {
//	    type = "presence/ping"
//	    data = { user = env.USER }
//	  }
//	}
type ScheduleDefinition struct {
	Name     string         `hcl:",label"`
	Client   hcl.Expression `hcl:"client,optional"`
	Timezone string         `hcl:"timezone,optional"`
	At       []AtDefinition `hcl:"at,block"`
}

type AtDefinition struct {
	Schedule string         `hcl:"schedule,label"`
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Data     hcl.Expression `hcl:"data,optional"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type ScheduleBlockHandler struct {
	BlockHandlerBase
}

func NewScheduleBlockHandler() *ScheduleBlockHandler {
	return &ScheduleBlockHandler{}
}

func (h *ScheduleBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	scheduleDef := ScheduleDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &scheduleDef)
	if diags.HasErrors() {
		return diags
	}

	// Manually set the name from the block label since DecodeBody doesn't handle labels
	if len(block.Labels) > 0 {
		scheduleDef.Name = block.Labels[0]
	}

	cronObj, addDiags := h.BuildSchedule(config, block, &scheduleDef)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return diags
	}

	config.Crons[scheduleDef.Name] = cronObj

	return diags
}

func (h *ScheduleBlockHandler) BuildSchedule(config *Config, block *hcl.Block, scheduleDef *ScheduleDefinition) (*cron.Cron, hcl.Diagnostics) {
	client, diags := GetClientFromExpression(config, scheduleDef.Client)
	if diags.HasErrors() {
		return nil, diags
	}

	cronParser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	if scheduleDef.Timezone == "" {
		scheduleDef.Timezone = "Local"
	}

	location, err := time.LoadLocation(scheduleDef.Timezone)
	if err != nil {
		diags = diags.Append(
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid timezone",
				Detail:   fmt.Sprintf("Invalid timezone: %s", scheduleDef.Timezone),
				Subject:  &block.DefRange,
			},
		)
		return nil, diags
	}

	cronLogger := NewZapCronLogger(config.Logger)
	cronObj := cron.New(cron.WithLogger(cronLogger), cron.WithParser(cronParser), cron.WithLocation(location))

	for _, atBlock := range scheduleDef.At {
		if atBlock.Type == "" {
			diags = diags.Append(
				&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid at block",
					Detail:   "Schedule at block must have a non-empty event type",
					Subject:  &atBlock.DefRange,
				},
			)
			continue
		}

		job := &scheduledSend{
			config:       config,
			client:       client,
			scheduleName: scheduleDef.Name,
			atName:       atBlock.Name,
			eventType:    atBlock.Type,
			data:         atBlock.Data,
		}

		if _, err := cronObj.AddJob(atBlock.Schedule, job); err != nil {
			diags = diags.Append(
				&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid cron expression",
					Detail:   fmt.Sprintf("Failed to schedule %q: %s", atBlock.Schedule, err),
					Subject:  &atBlock.DefRange,
				},
			)
		}
	}

	return cronObj, diags
}

// scheduledSend evaluates its data expression and sends the resulting
// event each time the cron schedule fires. The expression is evaluated
// per run against a child context exposing schedule_name and at_name, so
// payloads can use functions like uuidv4() or timestamps that must differ
// between runs.
type scheduledSend struct {
	config       *Config
	client       *conduit.Client
	scheduleName string
	atName       string
	eventType    string
	data         hcl.Expression
}

func (s *scheduledSend) Run() {
	s.config.Logger.Debug("Running scheduled send",
		zap.String("schedule", s.scheduleName), zap.String("at", s.atName))

	var payload any

	if IsExpressionProvided(s.data) {
		evalCtx, diags := NewContext(context.Background()).
			WithStringAttribute("schedule_name", s.scheduleName).
			WithStringAttribute("at_name", s.atName).
			BuildEvalContext(s.config.evalCtx)
		if diags.HasErrors() {
			s.config.Logger.Error("Error building evaluation context", zap.Error(diags))
			return
		}

		value, diags := s.data.Value(evalCtx)
		if diags.HasErrors() {
			s.config.Logger.Error("Error evaluating schedule data", zap.Error(diags))
			return
		}

		converted, err := go2cty2go.CtyToAny(value)
		if err != nil {
			s.config.Logger.Error("Error converting schedule data", zap.Error(err))
			return
		}
		payload = converted
	}

	result := s.client.Send(s.eventType, payload)

	s.config.Logger.Debug("Scheduled send finished",
		zap.String("schedule", s.scheduleName), zap.String("at", s.atName),
		zap.String("type", s.eventType), zap.Stringer("result", result))
}

/// ZapCronLogger

// ZapCronLogger adapts a zap.Logger to implement the cron.Logger interface
type ZapCronLogger struct {
	logger *zap.Logger
}

// NewZapCronLogger creates a new ZapCronLogger that wraps the given zap.Logger
func NewZapCronLogger(logger *zap.Logger) *ZapCronLogger {
	return &ZapCronLogger{logger: logger}
}

// Info logs informational messages about cron's operation. Cron is chatty
// about wakeups, so these land at debug level.
func (z *ZapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debug(msg, cronFields(keysAndValues)...)
}

// Error logs error conditions from cron job scheduling or execution
func (z *ZapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append([]zap.Field{zap.Error(err)}, cronFields(keysAndValues)...)
	z.logger.Error(msg, fields...)
}

func cronFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	return fields
}
