package cleantest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/cleantest/child"
	"github.com/ethereum-optimism/infra/cleantest/exitcodes"
	"github.com/ethereum-optimism/infra/cleantest/flags"
	"github.com/ethereum-optimism/infra/cleantest/registry"
	"github.com/ethereum-optimism/infra/cleantest/runner"
	"github.com/ethereum-optimism/infra/cleantest/unit"
)

const helperEnvVar = "CLEANTEST_ROOT_HELPER_PROCESS"

var discard = log.NewLogger(log.DiscardHandler())

// patched stands in for process-wide state
var patched atomic.Int32

func patch(t *unit.T) {
	if n := patched.Add(1); n != 1 {
		t.Errorf("state already patched %d times", n-1)
	}
}

func registerCases(reg *registry.Registry) error {
	return reg.RegisterCases(
		unit.Isolate(unit.CaseType{
			Name: "root.GlobalTests",
			Methods: []unit.Method{
				{Name: "TestPatch", Fn: patch},
				{Name: "TestPatchAgain", Fn: patch},
			},
		}),
		unit.CaseType{
			Name: "root.PlainTests",
			Methods: []unit.Method{
				{Name: "TestPass", Fn: func(t *unit.T) {}},
			},
		},
	)
}

// TestHelperProcess is not a real test. It plays the isolated child.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnvVar) != "1" || !child.IsChild() {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}
	os.Exit(runChild(context.Background(), registerCases, args, os.Stdout))
}

func TestRunChild(t *testing.T) {
	t.Setenv(flags.Prefix.EnvVars[0], "demo")
	patched.Store(0)
	defer patched.Store(0)

	var out bytes.Buffer
	code := runChild(context.Background(), registerCases, []string{"demo.root.GlobalTests.TestPatch"}, &out)
	require.Equal(t, exitcodes.Success, code)

	outcome, err := runner.NewOutcomeParser().Parse(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "root.GlobalTests.TestPatch", outcome.Test)
	assert.Equal(t, 1, outcome.TestsRun)
	assert.Empty(t, outcome.Errors)
	assert.Empty(t, outcome.Failures)
	assert.Equal(t, int32(1), patched.Load())
}

func TestRunChildUnknownTest(t *testing.T) {
	t.Setenv(flags.Prefix.EnvVars[0], "demo")

	var out bytes.Buffer
	code := runChild(context.Background(), registerCases, []string{"demo.root.Missing.TestGone"}, &out)
	assert.Equal(t, exitcodes.RuntimeErr, code)

	outcome, err := runner.NewOutcomeParser().Parse(out.Bytes())
	require.NoError(t, err)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0].Message, "failed to load test")
}

func TestRunChildRegistrationFailure(t *testing.T) {
	broken := func(*registry.Registry) error { return errors.New("duplicate case") }

	var out bytes.Buffer
	code := runChild(context.Background(), broken, []string{"demo.root.GlobalTests.TestPatch"}, &out)
	assert.Equal(t, exitcodes.RuntimeErr, code)

	outcome, err := runner.NewOutcomeParser().Parse(out.Bytes())
	require.NoError(t, err)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0].Message, "duplicate case")
}

func TestNewRegistryAppliesManifest(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "isolation.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`isolated:
  types: [root.PlainTests]
  tests: [root.Unknown.TestNothing]
`), 0o644))

	reg, err := NewRegistry(registry.Config{Log: discard, Prefix: "demo", ManifestFile: manifest}, registerCases)
	require.NoError(t, err)

	test, err := reg.Lookup("demo.root.PlainTests.TestPass")
	require.NoError(t, err)
	assert.True(t, reg.Marks().IsMarked(test))
	assert.Equal(t, []string{"root.Unknown.TestNothing"}, reg.CheckManifest())
}

func TestNewRegistryErrors(t *testing.T) {
	_, err := NewRegistry(registry.Config{Log: discard, ManifestFile: filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	assert.ErrorContains(t, err, "failed to create registry")

	_, err = NewRegistry(registry.Config{Log: discard}, func(*registry.Registry) error { return errors.New("boom") })
	assert.ErrorContains(t, err, "failed to register tests: boom")
}
