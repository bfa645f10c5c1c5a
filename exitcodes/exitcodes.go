// Package exitcodes defines the standard exit codes used by cleantest.
package exitcodes

// Exit code constants used by cleantest, both by the coordinating process
// and by isolated children:
//
// * Success (0): The run completed and every test passed, or a child
// completed its test whatever the test's outcome
// * TestFailure (1): One or more tests failed or errored
// * RuntimeErr (2): Configuration errors, launch failures, or a child that
// could not resolve or run its test
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
