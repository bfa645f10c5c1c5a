package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/infra/cleantest/metrics"
	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SchedulerConfig holds the collaborators of a Scheduler
type SchedulerConfig struct {
	Executor    TestExecutor
	Concurrency int
	Progress    ProgressIndicator
	RunID       string
	Log         log.Logger
}

// Scheduler runs ordinary tests inline and isolated tests through a bounded
// pool of workers, folding everything into one aggregate result.
type Scheduler struct {
	executor    TestExecutor
	concurrency int
	progress    ProgressIndicator
	runID       string
	log         log.Logger
	tracer      trace.Tracer
}

// NewScheduler creates a scheduler. Concurrency defaults to DefaultConcurrency
// and is capped at MaxReasonableConcurrency.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative: %d", cfg.Concurrency)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Concurrency = MaxReasonableConcurrency
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}

	return &Scheduler{
		executor:    cfg.Executor,
		concurrency: cfg.Concurrency,
		progress:    cfg.Progress,
		runID:       cfg.RunID,
		log:         cfg.Log.New("component", "scheduler"),
		tracer:      otel.Tracer("cleantest scheduler"),
	}, nil
}

// Concurrency returns the configured number of workers.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Run executes ordinary tests one at a time against into, then dispatches
// isolated tests to the pool and merges one outcome per isolated test. It
// blocks until every dispatched test has finished and returns into, which is
// allocated when nil.
//
// The only error is a child that could not be started, or cancellation of
// ctx. Pending work is abandoned in that case, but outcomes that completed
// are still merged.
func (s *Scheduler) Run(ctx context.Context, ordinary, isolated []types.Test, into *types.Result) (*types.Result, error) {
	if into == nil {
		into = types.NewResult()
	}

	ctx, span := s.tracer.Start(ctx, "cleantest run", trace.WithAttributes(
		attribute.Int("ordinary", len(ordinary)),
		attribute.Int("isolated", len(isolated)),
	))
	defer span.End()

	start := time.Now()
	s.progress.StartRun(len(ordinary), len(isolated))
	defer s.progress.CompleteRun()

	s.runOrdinary(ctx, ordinary, into)
	err := s.runIsolated(ctx, isolated, into)

	duration := time.Since(start)
	metrics.RecordRun(s.runID, into.Status(), len(ordinary), len(isolated), duration)
	s.log.Info("Run finished", "ordinary", len(ordinary), "isolated", len(isolated), "result", into.String(), "duration", duration)
	if err != nil {
		span.RecordError(err)
		return into, err
	}
	return into, nil
}

func (s *Scheduler) runOrdinary(ctx context.Context, tests []types.Test, into *types.Result) {
	for _, test := range tests {
		s.progress.StartTest(test.ID())
		sink := &statusSink{Sink: into}
		test.Run(ctx, sink)
		s.progress.UpdateTest(test.ID(), sink.status())
	}
}

func (s *Scheduler) runIsolated(ctx context.Context, tests []types.Test, into *types.Result) error {
	if len(tests) == 0 {
		return nil
	}
	workers := min(s.concurrency, len(tests))
	s.log.Debug("Dispatching isolated tests", "tests", len(tests), "workers", workers)

	// Each task owns one slot, so workers never touch the aggregate
	outcomes := make([]*types.Outcome, len(tests))
	var completed atomic.Int32
	p := pool.New().
		WithErrors().
		WithFirstError().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError()
	for i, test := range tests {
		p.Go(func(ctx context.Context) error {
			s.progress.StartTest(test.ID())
			outcome, err := s.executor.Execute(ctx, test)
			if err != nil {
				return fmt.Errorf("failed to run isolated test %s: %w", test.ID(), err)
			}
			outcomes[i] = outcome
			s.progress.UpdateTest(test.ID(), outcome.Status())
			s.log.Debug("Isolated test completed", "test", test.ID(), "status", outcome.Status(),
				"completed", completed.Add(1), "total", len(tests))
			return nil
		})
	}
	err := p.Wait()

	merged := 0
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		into.Merge(outcome)
		merged++
	}
	if err != nil {
		s.log.Error("Isolated run aborted", "error", err, "merged", merged, "total", len(tests))
		return err
	}
	return nil
}

// statusSink forwards to the aggregate while remembering the status of the
// one test it is handed to.
type statusSink struct {
	types.Sink
	failed  bool
	errored bool
	skipped bool
}

func (s *statusSink) AddFailure(t types.Test, message, stack string) {
	s.failed = true
	s.Sink.AddFailure(t, message, stack)
}

func (s *statusSink) AddError(t types.Test, message, stack string) {
	s.errored = true
	s.Sink.AddError(t, message, stack)
}

func (s *statusSink) AddSkip(t types.Test, reason string) {
	s.skipped = true
	s.Sink.AddSkip(t, reason)
}

func (s *statusSink) AddUnexpectedSuccess(t types.Test) {
	s.failed = true
	s.Sink.AddUnexpectedSuccess(t)
}

func (s *statusSink) status() types.TestStatus {
	switch {
	case s.errored:
		return types.TestStatusError
	case s.failed:
		return types.TestStatusFail
	case s.skipped:
		return types.TestStatusSkip
	default:
		return types.TestStatusPass
	}
}
