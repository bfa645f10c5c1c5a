package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/cleantest/metrics"
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CmdBuilder creates the command for one child. The returned func releases
// anything the builder allocated.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// TestExecutor runs a single isolated test and returns its outcome.
type TestExecutor interface {
	Execute(ctx context.Context, test types.Test) (*types.Outcome, error)
}

var _ TestExecutor = (*IsolatedExecutor)(nil)

// ExecutorConfig holds the collaborators of an IsolatedExecutor
type ExecutorConfig struct {
	// Prefix is prepended to every test ID handed to a child
	Prefix string
	// Command is the child program and any leading arguments. Empty means
	// the current executable.
	Command []string
	// Timeout kills a child that runs longer. Zero disables it.
	Timeout time.Duration
	// EnvProvider supplies the child environment, os.Environ by default
	EnvProvider func() []string
	CmdBuilder  CmdBuilder
	Parser      OutputParser
	// OutputStore is optional
	OutputStore OutputStore
	// MaxOutputBytes bounds the in-memory tail of child output
	MaxOutputBytes int
	RunID          string
	Log            log.Logger
}

// IsolatedExecutor runs each test in a freshly started child process.
type IsolatedExecutor struct {
	prefix         string
	command        []string
	timeout        time.Duration
	envProvider    func() []string
	cmdBuilder     CmdBuilder
	parser         OutputParser
	outputStore    OutputStore
	maxOutputBytes int
	runID          string
	log            log.Logger
	tracer         trace.Tracer
}

// DefaultCmdBuilder builds a plain exec.CommandContext command.
func DefaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	return exec.CommandContext(ctx, name, arg...), func() {}
}

// NewIsolatedExecutor creates an executor from cfg, filling in defaults.
func NewIsolatedExecutor(cfg ExecutorConfig) (*IsolatedExecutor, error) {
	command := slices.Clone(cfg.Command)
	if len(command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current executable: %w", err)
		}
		command = []string{self}
	}
	if command[0] == "" {
		return nil, fmt.Errorf("child command cannot be empty")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", cfg.Timeout)
	}
	if cfg.EnvProvider == nil {
		cfg.EnvProvider = os.Environ
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = DefaultCmdBuilder
	}
	if cfg.Parser == nil {
		cfg.Parser = NewOutcomeParser()
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}

	return &IsolatedExecutor{
		prefix:         cfg.Prefix,
		command:        command,
		timeout:        cfg.Timeout,
		envProvider:    cfg.EnvProvider,
		cmdBuilder:     cfg.CmdBuilder,
		parser:         cfg.Parser,
		outputStore:    cfg.OutputStore,
		maxOutputBytes: cfg.MaxOutputBytes,
		runID:          cfg.RunID,
		log:            cfg.Log.New("component", "isolated-executor"),
		tracer:         otel.Tracer("cleantest isolated executor"),
	}, nil
}

// Execute runs test in a child process. Tests that a child could not locate
// by name run in-process instead. The returned error is reserved for
// failures to start a child at all; everything that happens to a started
// child is reported through the outcome.
func (e *IsolatedExecutor) Execute(ctx context.Context, test types.Test) (*types.Outcome, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if test == nil {
		return nil, fmt.Errorf("test cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !types.Addressable(test) {
		e.log.Debug("Running test in-process", "test", test.ID(), "type", test.TypeName())
		result := types.NewResult()
		test.Run(ctx, result)
		return result.Outcome(test.ID()), nil
	}

	name := types.QualifiedName(e.prefix, test)
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("isolated %s", name),
		trace.WithAttributes(attribute.String("test", test.ID())))
	defer span.End()

	outcome, err := e.runChild(ctx, test, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("status", string(outcome.Status())))
	return outcome, nil
}

func (e *IsolatedExecutor) runChild(ctx context.Context, test types.Test, name string) (*types.Outcome, error) {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(slices.Clone(e.command[1:]), name)
	cmd, cleanup := e.cmdBuilder(runCtx, e.command[0], args...)
	defer cleanup()

	cmd.Env = append(e.envProvider(), fmt.Sprintf("%s=%s", ChildEnvVar, ChildEnvValue))
	if e.timeout > 0 {
		cmd.WaitDelay = time.Second
	}

	// One writer for both streams keeps the output interleaved in write order
	output := newTailBuffer(e.maxOutputBytes)
	cmd.Stdout = output
	cmd.Stderr = output

	e.log.Debug("Launching child", "test", name, "command", e.command[0])
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		metrics.RecordLaunchFailure(e.runID, runErr)
		return nil, fmt.Errorf("failed to launch child for %s: %w", name, runErr)
	}
	if runErr != nil && ctx.Err() != nil {
		// The run itself was cancelled; this child's result is moot
		return nil, ctx.Err()
	}
	timedOut := e.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)

	outcome, parseErr := e.parser.Parse(output.Bytes())
	switch {
	case parseErr != nil:
		metrics.RecordUndecodableOutcome(e.runID)
		outcome = types.ErrorOutcome(test.ID(), describeFailure(runErr, timedOut, e.timeout), outputSnippet(output))
		e.log.Warn("Child produced no outcome", "test", name, "error", runErr, "timedOut", timedOut, "outputBytes", output.TotalBytes())
	case runErr != nil:
		e.log.Debug("Child exited non-zero but reported an outcome", "test", name, "error", runErr)
	}

	if e.outputStore != nil {
		if err := e.outputStore.Store(name, outcome.Status(), output.Bytes()); err != nil {
			e.log.Warn("Failed to store child output", "test", name, "error", err)
		}
	}

	metrics.RecordIsolatedTest(e.runID, outcome.Status(), duration)
	e.log.Debug("Child finished", "test", name, "status", outcome.Status(), "duration", duration)
	return outcome, nil
}

func describeFailure(runErr error, timedOut bool, timeout time.Duration) string {
	switch {
	case timedOut:
		return fmt.Sprintf("child process killed after timeout of %s without reporting an outcome", timeout)
	case runErr != nil:
		return fmt.Sprintf("child process failed without reporting an outcome: %v", runErr)
	default:
		return "child process exited without reporting an outcome"
	}
}

// outputSnippet is the ANSI-free end of a child's output, noting how much
// came before it.
func outputSnippet(output *tailBuffer) string {
	total := output.TotalBytes()
	if total == 0 {
		return ""
	}
	tail := output.Tail(outputSnippetBytes)
	snippet := stripansi.Strip(string(tail))
	if omitted := total - int64(len(tail)); omitted > 0 {
		snippet = fmt.Sprintf("[%d earlier bytes omitted]\n%s", omitted, snippet)
	}
	return snippet
}
