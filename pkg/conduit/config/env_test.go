package config

import (
	_ "embed"
	"testing"

	"github.com/zclconf/go-cty/cty"
)

//go:embed testdata/env.hcl
var envtest []byte

func TestEnv(t *testing.T) {
	t.Setenv("CONDUIT_DEPLOY_ENV", "staging")

	config, diags := NewConfig().WithSources(envtest).Build()
	if diags.HasErrors() {
		t.Fatalf("failed to build config: %v", diags)
	}

	gateway, ok := config.Constants["gateway"]
	if !ok {
		t.Fatal("gateway constant not defined")
	}
	if gateway.AsString() != "wss://staging.meridian.app/realtime" {
		t.Errorf("gateway = %q, want %q", gateway.AsString(), "wss://staging.meridian.app/realtime")
	}
}

func TestGetEnvObject(t *testing.T) {
	t.Setenv("CONDUIT_TEST_VALUE", "hello")

	env := GetEnvObject()
	if !env.Type().IsObjectType() {
		t.Fatalf("expected object type, got %s", env.Type().FriendlyName())
	}
	if !env.Type().HasAttribute("CONDUIT_TEST_VALUE") {
		t.Fatal("CONDUIT_TEST_VALUE not present in env object")
	}
	if got := env.GetAttr("CONDUIT_TEST_VALUE"); got != cty.StringVal("hello") {
		t.Errorf("CONDUIT_TEST_VALUE = %#v, want %q", got, "hello")
	}
}

func TestSanitizeEnvVarName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"PATH", "PATH"},
		{"MY_VAR", "MY_VAR"},
		{"my.var", "my_var"},
		{"2START", "_START"},
		{"VAR.1", "VAR_1"},
		{"A-B", "A-B"},
		{"", "_"},
	}

	for _, tt := range tests {
		if got := sanitizeEnvVarName(tt.name); got != tt.want {
			t.Errorf("sanitizeEnvVarName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
