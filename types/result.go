package types

import (
	"fmt"
	"slices"
	"sync"
)

var _ Sink = (*Result)(nil)

// Result is the aggregate of a whole run. It is created once by the caller,
// written by in-process tests through the Sink methods and by isolated tests
// through Merge, and read once the run has returned.
type Result struct {
	mu sync.Mutex

	TestsRun            int
	Failures            []Record
	Errors              []Record
	Skipped             []Record
	ExpectedFailures    []Record
	UnexpectedSuccesses []Record
}

// NewResult creates an empty aggregate result.
func NewResult() *Result {
	return &Result{}
}

func (r *Result) StartTest(Test) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TestsRun++
}

func (r *Result) StopTest(Test) {}

func (r *Result) AddSuccess(Test) {}

func (r *Result) AddFailure(t Test, message, trace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Record{Test: t.ID(), Message: message, Trace: trace})
}

func (r *Result) AddError(t Test, message, trace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, Record{Test: t.ID(), Message: message, Trace: trace})
}

func (r *Result) AddSkip(t Test, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, Record{Test: t.ID(), Message: reason})
}

func (r *Result) AddExpectedFailure(t Test, message, trace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ExpectedFailures = append(r.ExpectedFailures, Record{Test: t.ID(), Message: message, Trace: trace})
}

func (r *Result) AddUnexpectedSuccess(t Test) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UnexpectedSuccesses = append(r.UnexpectedSuccesses, Record{Test: t.ID()})
}

// Merge folds one outcome into the aggregate. All lists and the run counter
// are updated under a single lock so concurrent merges never interleave.
func (r *Result) Merge(o *Outcome) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, o.Failures...)
	r.Errors = append(r.Errors, o.Errors...)
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.ExpectedFailures = append(r.ExpectedFailures, o.ExpectedFailures...)
	r.UnexpectedSuccesses = append(r.UnexpectedSuccesses, o.UnexpectedSuccesses...)
	r.TestsRun += o.TestsRun
}

// Outcome snapshots the aggregate as an outcome attributed to test.
func (r *Result) Outcome(test string) *Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := NewOutcome(test)
	o.TestsRun = r.TestsRun
	o.Failures = slices.Clone(r.Failures)
	o.Errors = slices.Clone(r.Errors)
	o.Skipped = slices.Clone(r.Skipped)
	o.ExpectedFailures = slices.Clone(r.ExpectedFailures)
	o.UnexpectedSuccesses = slices.Clone(r.UnexpectedSuccesses)
	return o
}

// WasSuccessful reports whether the run had no failures, errors or
// unexpected successes.
func (r *Result) WasSuccessful() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures) == 0 && len(r.Errors) == 0 && len(r.UnexpectedSuccesses) == 0
}

// Status collapses the aggregate into a single status.
func (r *Result) Status() TestStatus {
	return r.Outcome("").Status()
}

func (r *Result) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("ran %d tests: %d failures, %d errors, %d skipped, %d expected failures, %d unexpected successes",
		r.TestsRun, len(r.Failures), len(r.Errors), len(r.Skipped), len(r.ExpectedFailures), len(r.UnexpectedSuccesses))
}
