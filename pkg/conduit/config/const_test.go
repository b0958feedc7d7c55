package config

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

//go:embed testdata/constfunc.hcl
var testdata []byte

//go:embed testdata/constfunc1.hcl
var testdata1 []byte

//go:embed testdata/constfunc2.hcl
var testdata2 []byte

//go:embed testdata/assertfail.hcl
var assertFailure []byte

func TestConstAndFuncs(t *testing.T) {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)

	_, diags := NewConfig().WithSources(testdata).WithLogger(logger).Build()
	if diags.HasErrors() {
		t.Fatal(diags)
	}
}

func TestConstAndFuncsSplit(t *testing.T) {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)

	config, diags := NewConfig().WithSources(testdata1, testdata2).WithLogger(logger).Build()
	if diags.HasErrors() {
		t.Fatal(diags)
	}

	assert.Equal(t, cty.StringVal("org:meridian"), config.Constants["org_room"])
}

func TestAssertFailure(t *testing.T) {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)

	_, diags := NewConfig().WithSources(assertFailure).WithLogger(logger).Build()
	if !diags.HasErrors() {
		t.Fatal("expected errors, didn't get any")
	}
}

func TestConstCycle(t *testing.T) {
	cyclic := []byte(`
const {
  a = b
  b = a
}
`)

	_, diags := NewConfig().WithSources(cyclic).Build()
	if !diags.HasErrors() {
		t.Fatal("expected cycle error, didn't get any")
	}
	assert.Contains(t, diags.Error(), "Circular dependency")
}

func TestConstDuplicate(t *testing.T) {
	duplicated := []byte(`
const {
  name = "one"
}

const {
  name = "two"
}
`)

	_, diags := NewConfig().WithSources(duplicated).Build()
	if !diags.HasErrors() {
		t.Fatal("expected duplicate error, didn't get any")
	}
	assert.Contains(t, diags.Error(), "Duplicate attribute")
}
