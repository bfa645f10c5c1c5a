package runner

import "time"

// Execution constants
const (
	// DefaultConcurrency is the number of child processes allowed to run at once
	DefaultConcurrency = 8

	// DefaultTestTimeout of zero disables the per-test timeout
	DefaultTestTimeout time.Duration = 0

	// ChildEnvVar is set in the environment of every child process
	ChildEnvVar = "CLEANTEST_CHILD"
	// ChildEnvValue is the value ChildEnvVar carries
	ChildEnvValue = "1"

	// MaxReasonableConcurrency caps configured concurrency to avoid resource exhaustion
	MaxReasonableConcurrency = 256

	// outputSnippetBytes is how much of a child's output goes into an error record
	outputSnippetBytes = 4 * 1024
)
