package cleantest

import (
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/cleantest/flags"
)

func newCLIContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("cleantest", flag.ContinueOnError)
	for _, f := range flags.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(newCLIContext(t), log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	// Taken from the module path in ./go.mod
	assert.Equal(t, "cleantest", cfg.Prefix)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Zero(t, cfg.Timeout)
	assert.Empty(t, cfg.Run)
	assert.Empty(t, cfg.ChildCommand)
	assert.Empty(t, cfg.ManifestFile)
	assert.Empty(t, cfg.OutputDir)
	assert.False(t, cfg.ShowProgress)
	assert.Equal(t, 30*time.Second, cfg.ProgressInterval)
	assert.Empty(t, cfg.MetricsAddr())
}

func TestNewConfigFromFlags(t *testing.T) {
	ctx := newCLIContext(t,
		"--prefix=demo",
		"--concurrency=3",
		"--timeout=5s",
		"--manifest=isolation.yaml",
		"--child-command=go",
		"--child-command=run",
		"--run=demo.pkg.Case.TestA",
		"--run=demo.pkg.Case.TestB",
		"--show-progress",
		"--progress-interval=2s",
		"--output-dir=out",
		"--healthz.addr=127.0.0.1:8080",
		"--metrics.enabled",
		"--metrics.port=7301",
	)
	cfg, err := NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Prefix)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, filepath.IsAbs(cfg.ManifestFile))
	assert.Equal(t, "isolation.yaml", filepath.Base(cfg.ManifestFile))
	assert.Equal(t, []string{"go", "run"}, cfg.ChildCommand)
	assert.Equal(t, []string{"demo.pkg.Case.TestA", "demo.pkg.Case.TestB"}, cfg.Run)
	assert.True(t, cfg.ShowProgress)
	assert.Equal(t, 2*time.Second, cfg.ProgressInterval)
	assert.True(t, filepath.IsAbs(cfg.OutputDir))
	assert.Equal(t, "127.0.0.1:8080", cfg.HealthzAddr)
	assert.Equal(t, "0.0.0.0:7301", cfg.MetricsAddr())
}

func TestNewConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "zero concurrency", args: []string{"--concurrency=0"}},
		{name: "negative concurrency", args: []string{"--concurrency=-2"}},
		{name: "negative timeout", args: []string{"--timeout=-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(newCLIContext(t, tt.args...), log.NewLogger(log.DiscardHandler()))
			assert.Error(t, err)
		})
	}
}
