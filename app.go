package cleantest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/cleantest/flags"
	"github.com/ethereum-optimism/infra/cleantest/registry"
	"github.com/ethereum-optimism/infra/cleantest/runner"
	"github.com/ethereum-optimism/infra/cleantest/service"
	"github.com/ethereum-optimism/infra/cleantest/suite"
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// app implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &app{}

// TestRunner runs a selection of tests and returns the aggregate result.
// An empty selection means every registered test.
type TestRunner interface {
	RunTests(ctx context.Context, names []string) (*types.Result, error)
}

// loaderRunner builds a suite per call from a loader
type loaderRunner struct {
	loader *suite.Loader
}

func (r *loaderRunner) RunTests(ctx context.Context, names []string) (*types.Result, error) {
	var s *suite.Suite
	if len(names) == 0 {
		s = r.loader.LoadAll()
	} else {
		s = r.loader.LoadNames(names...)
	}
	return s.Run(ctx, nil)
}

// app runs the registered tests once and then asks the CLI to shut down.
type app struct {
	config  *Config
	runID   string
	runner  TestRunner
	service *service.Service

	result  atomic.Pointer[types.Result]
	running atomic.Bool

	shutdownCallback func(error)
}

// New creates the application lifecycle around a populated registry.
func New(config *Config, reg *registry.Registry, shutdownCallback func(error)) (*app, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	runID := uuid.New().String()
	opts := []suite.Option{
		suite.WithConcurrency(config.Concurrency),
		suite.WithLogger(config.Log),
		suite.WithTimeout(config.Timeout),
		suite.WithRunID(runID),
		suite.WithEnvProvider(childEnv(reg.Prefix())),
	}
	if len(config.ChildCommand) > 0 {
		opts = append(opts, suite.WithCommand(config.ChildCommand...))
	}
	if config.ShowProgress {
		opts = append(opts, suite.WithProgress(runner.NewConsoleProgressIndicator(config.Log, config.ProgressInterval)))
	}
	if config.OutputDir != "" {
		store, err := runner.NewFileOutputStore(config.OutputDir, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to create output store: %w", err)
		}
		config.Log.Info("Storing child output", "dir", store.RunDir())
		opts = append(opts, suite.WithOutputStore(store))
	}

	config.Log.Debug("Creating cleantest app",
		"prefix", reg.Prefix(),
		"tests", len(reg.IDs()),
		"concurrency", config.Concurrency,
		"timeout", config.Timeout,
		"runID", runID)

	a := &app{
		config:           config,
		runID:            runID,
		runner:           &loaderRunner{loader: suite.NewLoader(reg, opts...)},
		shutdownCallback: shutdownCallback,
	}
	a.service = service.New(service.Config{
		HealthzAddr: config.HealthzAddr,
		MetricsAddr: config.MetricsAddr(),
		Status:      a.status,
		Log:         config.Log,
	})
	return a, nil
}

// childEnv passes the prefix down so that a child resolves the same names
// whether it came from a flag or the environment.
func childEnv(prefix string) func() []string {
	return func() []string {
		return append(os.Environ(), fmt.Sprintf("%s=%s", flags.Prefix.EnvVars[0], prefix))
	}
}

// Start runs the tests once. A run with failures or errors returns a
// TestFailureError; a run that could not complete returns a RuntimeError.
// Start implements the cliapp.Lifecycle interface.
func (a *app) Start(ctx context.Context) error {
	a.running.Store(true)
	a.service.Start(ctx)

	if err := a.runTests(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if result := a.result.Load(); !result.WasSuccessful() {
		a.config.Log.Warn("Test run completed with failures, returning exit code 1")
		return NewTestFailureError(result.String())
	}

	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

func (a *app) runTests(ctx context.Context) error {
	a.config.Log.Info("Running tests...", "runID", a.runID, "selected", len(a.config.Run))
	result, err := a.runner.RunTests(ctx, a.config.Run)
	if err != nil {
		return NewRuntimeError(err)
	}
	a.result.Store(result)

	for _, r := range result.Failures {
		a.config.Log.Warn("Test failed", "test", r.Test, "message", r.Message)
	}
	for _, r := range result.Errors {
		a.config.Log.Error("Test errored", "test", r.Test, "message", r.Message)
	}
	for _, r := range result.UnexpectedSuccesses {
		a.config.Log.Warn("Test unexpectedly succeeded", "test", r.Test)
	}
	a.config.Log.Info("Test run completed", "runID", a.runID, "status", result.Status(), "result", result.String())
	return nil
}

// status is served on the healthz endpoint
func (a *app) status() service.RunStatus {
	s := service.RunStatus{RunID: a.runID}
	if result := a.result.Load(); result != nil {
		s.Finished = true
		s.Successful = result.WasSuccessful()
		s.Result = result.String()
	}
	return s
}

// Stop implements the cliapp.Lifecycle interface.
func (a *app) Stop(ctx context.Context) error {
	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)
	a.service.Shutdown()
	a.config.Log.Info("cleantest stopped")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (a *app) Stopped() bool {
	return !a.running.Load()
}
