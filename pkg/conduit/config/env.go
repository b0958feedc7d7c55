package config

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// GetEnvObject returns a cty object containing all environment variables
// as attributes, suitable for providing to an HCL evaluation context.
// Variable names are sanitized to valid HCL attribute names.
func GetEnvObject() cty.Value {
	envMap := make(map[string]cty.Value)

	for _, envVar := range os.Environ() {
		key, value, found := strings.Cut(envVar, "=")
		if !found {
			continue
		}

		envMap[sanitizeEnvVarName(key)] = cty.StringVal(value)
	}

	return cty.ObjectVal(envMap)
}

// sanitizeEnvVarName replaces characters that are not valid in HCL
// attribute names with underscores. Attribute names must start with a
// letter or underscore and contain only letters, digits, underscores,
// and hyphens.
func sanitizeEnvVarName(name string) string {
	if name == "" {
		return "_"
	}

	var result strings.Builder
	for i, char := range name {
		switch {
		case isAlpha(char) || char == '_':
			result.WriteRune(char)
		case i > 0 && (isDigit(char) || char == '-'):
			result.WriteRune(char)
		default:
			result.WriteRune('_')
		}
	}

	return result.String()
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
