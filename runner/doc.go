// Package runner provides the components that execute a classified set of tests.
//
// The main components are:
//   - Classifier: Splits a nested test collection into ordinary and isolated tests
//   - IsolatedExecutor: Runs one isolated test in a fresh child process
//   - OutcomeParser: Recovers the authoritative outcome from a child's combined output
//   - Scheduler: Runs ordinary tests inline and isolated tests through a bounded pool
//   - OutputStore: Keeps each child's raw output on disk for debugging
//
// Failures of a single child never abort the run; only a child that cannot be
// started at all is reported as a run-level error.
package runner
