// Package suite binds a module prefix to the classifier and scheduler so a
// nested collection of tests can be run in a single call.
package suite

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum-optimism/infra/cleantest/runner"
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

// Suite is a collection of tests bound to a module prefix.
type Suite struct {
	prefix      string
	nodes       []types.Node
	concurrency int
	marks       *types.Marks
	log         log.Logger
	command     []string
	timeout     time.Duration
	cmdBuilder  runner.CmdBuilder
	envProvider func() []string
	progress    runner.ProgressIndicator
	outputStore runner.OutputStore
	runID       string
}

// Option configures a Suite
type Option func(*Suite)

// WithConcurrency sets the number of child processes run at once.
func WithConcurrency(n int) Option {
	return func(s *Suite) { s.concurrency = n }
}

// WithMarks sets the side table consulted during classification.
func WithMarks(marks *types.Marks) Option {
	return func(s *Suite) { s.marks = marks }
}

func WithLogger(logger log.Logger) Option {
	return func(s *Suite) { s.log = logger }
}

// WithCommand sets the child program and any leading arguments.
func WithCommand(command ...string) Option {
	return func(s *Suite) { s.command = slices.Clone(command) }
}

// WithTimeout kills children that run longer than d. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Suite) { s.timeout = d }
}

func WithCmdBuilder(b runner.CmdBuilder) Option {
	return func(s *Suite) { s.cmdBuilder = b }
}

func WithEnvProvider(p func() []string) Option {
	return func(s *Suite) { s.envProvider = p }
}

func WithProgress(p runner.ProgressIndicator) Option {
	return func(s *Suite) { s.progress = p }
}

func WithOutputStore(store runner.OutputStore) Option {
	return func(s *Suite) { s.outputStore = store }
}

// WithRunID labels metrics of this suite's runs.
func WithRunID(id string) Option {
	return func(s *Suite) { s.runID = id }
}

// New creates an empty suite bound to prefix.
func New(prefix string, opts ...Option) *Suite {
	s := &Suite{
		prefix:      prefix,
		concurrency: runner.DefaultConcurrency,
		timeout:     runner.DefaultTestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.Root()
	}
	if s.runID == "" {
		s.runID = uuid.New().String()
	}
	return s
}

// Add appends nodes to the suite.
func (s *Suite) Add(nodes ...types.Node) {
	s.nodes = append(s.nodes, nodes...)
}

// Len returns the number of tests in the suite.
func (s *Suite) Len() int {
	return s.root().Len()
}

func (s *Suite) Prefix() string {
	return s.prefix
}

func (s *Suite) RunID() string {
	return s.runID
}

func (s *Suite) root() types.Node {
	return types.Group(s.prefix, s.nodes...)
}

// Run classifies the suite and runs it into result, allocating one when nil.
// The returned result is always the one tests were recorded in; the error is
// only set when a child could not be started or ctx was cancelled.
func (s *Suite) Run(ctx context.Context, result *types.Result) (*types.Result, error) {
	if result == nil {
		result = types.NewResult()
	}

	executor, err := runner.NewIsolatedExecutor(runner.ExecutorConfig{
		Prefix:      s.prefix,
		Command:     s.command,
		Timeout:     s.timeout,
		EnvProvider: s.envProvider,
		CmdBuilder:  s.cmdBuilder,
		OutputStore: s.outputStore,
		RunID:       s.runID,
		Log:         s.log,
	})
	if err != nil {
		return result, fmt.Errorf("failed to create executor: %w", err)
	}
	scheduler, err := runner.NewScheduler(runner.SchedulerConfig{
		Executor:    executor,
		Concurrency: s.concurrency,
		Progress:    s.progress,
		RunID:       s.runID,
		Log:         s.log,
	})
	if err != nil {
		return result, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ordinary, isolated := runner.NewClassifier(s.marks, s.log).Classify(s.root())
	s.log.Info("Running suite", "prefix", s.prefix, "runID", s.runID, "ordinary", len(ordinary), "isolated", len(isolated), "concurrency", scheduler.Concurrency())
	return scheduler.Run(ctx, ordinary, isolated, result)
}
