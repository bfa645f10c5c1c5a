package cleantest

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/cleantest/flags"
	"github.com/ethereum-optimism/infra/cleantest/suite"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Prefix           string        // Module prefix of qualified test names
	Concurrency      int           // Maximum number of isolated children at once
	Timeout          time.Duration // Per-child timeout, 0 disables it
	ManifestFile     string        // Optional YAML isolation manifest
	ChildCommand     []string      // Program started for each isolated test, empty means the current executable
	Run              []string      // Qualified names to run, empty means every registered test
	ShowProgress     bool          // Whether to log periodic progress updates
	ProgressInterval time.Duration // Interval between progress updates when ShowProgress is 'true'
	OutputDir        string        // Directory keeping raw child output, empty disables it
	HealthzAddr      string        // Listen address of the healthz server, empty disables it
	MetricsConfig    opmetrics.CLIConfig
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	prefix := ctx.String(flags.Prefix.Name)
	if prefix == "" {
		var err error
		prefix, err = suite.ModulePrefix(".")
		if err != nil {
			return nil, fmt.Errorf("no --%s given and no default available: %w", flags.Prefix.Name, err)
		}
	}

	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}
	timeout := ctx.Duration(flags.Timeout.Name)
	if timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", timeout)
	}

	childCommand := ctx.StringSlice(flags.ChildCommand.Name)
	if len(childCommand) > 0 && childCommand[0] == "" {
		return nil, errors.New("child command cannot start with an empty program")
	}

	manifest := ctx.String(flags.Manifest.Name)
	if manifest != "" {
		abs, err := filepath.Abs(manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for manifest '%s': %w", manifest, err)
		}
		manifest = abs
	}

	outputDir := ctx.String(flags.OutputDir.Name)
	if outputDir != "" {
		abs, err := filepath.Abs(outputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for output directory '%s': %w", outputDir, err)
		}
		outputDir = abs
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		Prefix:           prefix,
		Concurrency:      concurrency,
		Timeout:          timeout,
		ManifestFile:     manifest,
		ChildCommand:     childCommand,
		Run:              ctx.StringSlice(flags.Run.Name),
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		OutputDir:        outputDir,
		HealthzAddr:      ctx.String(flags.HealthzAddr.Name),
		MetricsConfig:    metricsCfg,
		Log:              log,
	}, nil
}

// MetricsAddr returns the listen address of the metrics server, or "" when
// metrics are disabled.
func (c *Config) MetricsAddr() string {
	if !c.MetricsConfig.Enabled {
		return ""
	}
	return net.JoinHostPort(c.MetricsConfig.ListenAddr, strconv.Itoa(c.MetricsConfig.ListenPort))
}
