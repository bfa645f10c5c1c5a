// Package child implements the entry point of an isolated child process.
//
// A child receives exactly one argument, the qualified name of a test, runs
// that single test in-process and writes its outcome as the final line of
// its output. Test failures are carried in the outcome; the exit code only
// reports whether the child managed to run the test at all.
package child

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ethereum-optimism/infra/cleantest/exitcodes"
	"github.com/ethereum-optimism/infra/cleantest/runner"
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
)

// Resolver finds a test by its qualified name
type Resolver interface {
	Lookup(name string) (types.Test, error)
}

// IsChild reports whether the current process was started as an isolated child.
func IsChild() bool {
	return os.Getenv(runner.ChildEnvVar) == runner.ChildEnvValue
}

// Run executes the test named by the single element of args and writes the
// outcome to out. It always tries to write an outcome, even when the
// arguments are wrong or the test cannot be found.
func Run(ctx context.Context, resolver Resolver, args []string, out io.Writer, logger log.Logger) int {
	if logger == nil {
		logger = log.Root()
	}
	logger = logger.New("component", "child")

	if len(args) != 1 {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		err := fmt.Errorf("expected exactly one test name, got %d arguments", len(args))
		logger.Error("Invalid child invocation", "args", args, "err", err)
		writeOutcome(out, types.ErrorOutcome(name, err.Error(), ""), logger)
		return exitcodes.RuntimeErr
	}

	name := args[0]
	test, err := resolver.Lookup(name)
	if err != nil {
		logger.Error("Failed to resolve test", "test", name, "err", err)
		writeOutcome(out, types.ErrorOutcome(name, fmt.Sprintf("failed to load test: %v", err), ""), logger)
		return exitcodes.RuntimeErr
	}

	logger.Debug("Running isolated test", "test", test.ID())
	result := types.NewResult()
	test.Run(ctx, result)

	outcome := result.Outcome(test.ID())
	if !writeOutcome(out, outcome, logger) {
		return exitcodes.RuntimeErr
	}
	logger.Debug("Isolated test finished", "test", test.ID(), "status", outcome.Status())
	return exitcodes.Success
}

func writeOutcome(out io.Writer, outcome *types.Outcome, logger log.Logger) bool {
	data, err := runner.EncodeOutcome(outcome)
	if err != nil {
		logger.Error("Failed to encode outcome", "err", err)
		return false
	}
	// Start on a fresh line in case earlier output left one open
	if _, err := out.Write(append([]byte{'\n'}, data...)); err != nil {
		logger.Error("Failed to write outcome", "err", err)
		return false
	}
	return true
}
