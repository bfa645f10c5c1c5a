package cleantest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/cleantest/child"
	"github.com/ethereum-optimism/infra/cleantest/flags"
	"github.com/ethereum-optimism/infra/cleantest/registry"
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

// RegisterFunc adds the tests of a harness binary to the registry. It is
// called once in the coordinating process and once in every child, so it
// must register the same tests each time.
type RegisterFunc func(reg *registry.Registry) error

// Main is the entry point of a harness binary. In a child process it runs
// the single test named on the command line and exits; otherwise it parses
// flags and runs the selected tests.
func Main(name, version string, register RegisterFunc) {
	if child.IsChild() {
		os.Exit(runChild(context.Background(), register, os.Args[1:], os.Stdout))
	}

	app := cli.NewApp()
	app.Version = version
	app.Name = name
	app.Usage = "Run tests, isolating the ones that touch process-global state"
	app.Description = fmt.Sprintf("%s runs ordinary tests in-process and every isolated test in a fresh child process", name)
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		return run(ctx, closeApp, register)
	})
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), ExitCode(err)))
		}
	}

	shutdown, err := setupTelemetry(app.Name, app.Version)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// setupTelemetry only exports traces when an OTLP endpoint is configured.
func setupTelemetry(name, version string) (func(), error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" && os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" {
		return func() {}, nil
	}
	return otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(name),
		otelconfig.WithServiceVersion(version),
		otelconfig.WithMetricsEnabled(false),
	)
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc, register RegisterFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()

	cfg, err := NewConfig(ctx, logger)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	reg, err := NewRegistry(registry.Config{
		Log:          cfg.Log,
		Prefix:       cfg.Prefix,
		ManifestFile: cfg.ManifestFile,
	}, register)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	a, err := New(cfg, reg, closeApp)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create app: %w", err))
	}
	return a, nil
}

// NewRegistry creates a registry and fills it through register.
func NewRegistry(cfg registry.Config, register RegisterFunc) (*registry.Registry, error) {
	reg, err := registry.NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	if register != nil {
		if err := register(reg); err != nil {
			return nil, fmt.Errorf("failed to register tests: %w", err)
		}
	}
	reg.CheckManifest()
	return reg, nil
}

// runChild is the whole life of an isolated child. Logs go to stderr so the
// outcome stays the last line the parent decodes.
func runChild(ctx context.Context, register RegisterFunc, args []string, out io.Writer) int {
	logger := oplog.NewLogger(os.Stderr, oplog.DefaultCLIConfig())

	var resolver child.Resolver
	reg, err := NewRegistry(registry.Config{
		Log:    logger,
		Prefix: os.Getenv(flags.Prefix.EnvVars[0]),
	}, register)
	if err != nil {
		resolver = brokenResolver{err: err}
	} else {
		resolver = reg
	}
	return child.Run(ctx, resolver, args, out, logger)
}

// brokenResolver fails every lookup with the error that kept the registry
// from being built.
type brokenResolver struct {
	err error
}

func (b brokenResolver) Lookup(string) (types.Test, error) {
	return nil, b.err
}
