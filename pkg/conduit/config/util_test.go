package config

import (
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

func TestConfigParseDuration(t *testing.T) {
	// Create a config instance with an evaluation context
	logger := zap.NewNop()
	config := &Config{
		Logger:  logger,
		evalCtx: &hcl.EvalContext{},
	}

	tests := []struct {
		name        string
		input       string
		expected    time.Duration
		expectError bool
	}{
		// Number inputs (treated as seconds)
		{
			name:     "integer seconds",
			input:    "45",
			expected: 45 * time.Second,
		},
		{
			name:     "float seconds",
			input:    "2.5",
			expected: time.Duration(2.5 * float64(time.Second)),
		},
		{
			name:     "zero seconds",
			input:    "0",
			expected: 0,
		},
		{
			name:        "negative seconds",
			input:       "-10",
			expectError: true,
		},

		// ISO 8601 duration strings (starting with P)
		{
			name:     "ISO 8601 45 seconds",
			input:    `"PT45S"`,
			expected: 45 * time.Second,
		},
		{
			name:     "ISO 8601 2 hours 15 minutes",
			input:    `"PT2H15M"`,
			expected: 2*time.Hour + 15*time.Minute,
		},
		{
			name:     "ISO 8601 1 day",
			input:    `"P1D"`,
			expected: 24 * time.Hour,
		},
		{
			name:        "invalid ISO 8601",
			input:       `"PZZ"`,
			expectError: true,
		},

		// Go duration strings
		{
			name:     "Go duration seconds",
			input:    `"10s"`,
			expected: 10 * time.Second,
		},
		{
			name:     "Go duration fractional hours",
			input:    `"1.5h"`,
			expected: 90 * time.Minute,
		},
		{
			name:     "Go duration mixed",
			input:    `"2h45m30s"`,
			expected: 2*time.Hour + 45*time.Minute + 30*time.Second,
		},
		{
			name:     "Go duration milliseconds",
			input:    `"250ms"`,
			expected: 250 * time.Millisecond,
		},
		{
			name:        "invalid Go duration",
			input:       `"abc"`,
			expectError: true,
		},
		{
			name:        "negative Go duration",
			input:       `"-30s"`,
			expectError: true,
		},

		// Edge cases
		{
			name:     "whitespace around string",
			input:    `"  10s  "`,
			expected: 10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Parse the HCL expression
			expr, diags := hclsyntax.ParseExpression([]byte(tt.input), "test.hcl", hcl.Pos{Line: 1, Column: 1})
			require.False(t, diags.HasErrors(), "Failed to parse HCL expression: %v", diags)

			// Test ParseDuration
			duration, parseDiags := config.ParseDuration(expr)

			if tt.expectError {
				assert.True(t, parseDiags.HasErrors(), "Expected error but got none")
			} else {
				assert.False(t, parseDiags.HasErrors(), "Unexpected error: %v", parseDiags)
				assert.Equal(t, tt.expected, duration)
			}
		})
	}
}

func TestConfigParseDurationInvalidTypes(t *testing.T) {
	logger := zap.NewNop()
	config := &Config{
		Logger:  logger,
		evalCtx: &hcl.EvalContext{},
	}

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "boolean",
			input: "true",
		},
		{
			name:  "list",
			input: "[1, 2, 3]",
		},
		{
			name:  "object",
			input: `{foo = "bar"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, diags := hclsyntax.ParseExpression([]byte(tt.input), "test.hcl", hcl.Pos{Line: 1, Column: 1})
			require.False(t, diags.HasErrors(), "Failed to parse HCL expression: %v", diags)

			_, parseDiags := config.ParseDuration(expr)
			assert.True(t, parseDiags.HasErrors(), "Expected error for invalid type")

			// Check that the error message mentions the type issue
			errorText := strings.ToLower(parseDiags.Error())
			assert.Contains(t, errorText, "type", "Error should mention type issue")
		})
	}
}

func TestConfigParseDurationWithVariables(t *testing.T) {
	// Durations can reference constants from the evaluation context
	logger := zap.NewNop()
	config := &Config{
		Logger: logger,
		evalCtx: &hcl.EvalContext{
			Variables: map[string]cty.Value{
				"heartbeat": cty.NumberIntVal(15),
			},
		},
	}

	expr, diags := hclsyntax.ParseExpression([]byte("heartbeat"), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "Failed to parse HCL expression: %v", diags)

	duration, parseDiags := config.ParseDuration(expr)
	assert.False(t, parseDiags.HasErrors(), "Unexpected error: %v", parseDiags)
	assert.Equal(t, 15*time.Second, duration)
}

func TestIsExpressionProvided(t *testing.T) {
	t.Run("nil expression", func(t *testing.T) {
		assert.False(t, IsExpressionProvided(nil))
	})

	t.Run("parsed expression", func(t *testing.T) {
		expr, diags := hclsyntax.ParseExpression([]byte("5"), "test.hcl", hcl.Pos{Line: 1, Column: 1})
		require.False(t, diags.HasErrors())
		assert.True(t, IsExpressionProvided(expr))
	})

	t.Run("absent optional attribute", func(t *testing.T) {
		// gohcl synthesizes a zero-length-range expression for optional
		// attributes that aren't in the source.
		type shape struct {
			Present hcl.Expression `hcl:"present,optional"`
			Absent  hcl.Expression `hcl:"absent,optional"`
		}

		file, diags := hclsyntax.ParseConfig([]byte("present = 5\n"), "test.hcl", hcl.Pos{Line: 1, Column: 1})
		require.False(t, diags.HasErrors(), "Failed to parse HCL config: %v", diags)

		var decoded shape
		diags = gohcl.DecodeBody(file.Body, nil, &decoded)
		require.False(t, diags.HasErrors(), "Failed to decode body: %v", diags)

		assert.True(t, IsExpressionProvided(decoded.Present))
		assert.False(t, IsExpressionProvided(decoded.Absent))
	})
}
