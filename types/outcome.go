package types

import (
	"errors"
	"fmt"
)

// TestStatus represents the overall state of one test or one outcome
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// Outcome wire format identifiers. A payload is only honoured when both match.
const (
	OutcomeSchema  = "cleantest/outcome"
	OutcomeVersion = 1
)

var (
	ErrSchemaMismatch     = errors.New("payload is not a cleantest outcome")
	ErrUnsupportedVersion = errors.New("unsupported outcome version")
)

// Record is a single failure, error, skip or expected-failure entry.
type Record struct {
	Test    string `json:"test"`
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Outcome is the result of running exactly one test, in a form that can
// cross a process boundary.
type Outcome struct {
	Schema              string   `json:"schema"`
	Version             int      `json:"version"`
	Test                string   `json:"test"`
	TestsRun            int      `json:"tests_run"`
	Failures            []Record `json:"failures,omitempty"`
	Errors              []Record `json:"errors,omitempty"`
	Skipped             []Record `json:"skipped,omitempty"`
	ExpectedFailures    []Record `json:"expected_failures,omitempty"`
	UnexpectedSuccesses []Record `json:"unexpected_successes,omitempty"`
}

// NewOutcome creates an empty outcome for the named test.
func NewOutcome(test string) *Outcome {
	return &Outcome{
		Schema:  OutcomeSchema,
		Version: OutcomeVersion,
		Test:    test,
	}
}

// ErrorOutcome creates an outcome holding a single error attributed to test.
func ErrorOutcome(test, message, trace string) *Outcome {
	o := NewOutcome(test)
	o.TestsRun = 1
	o.Errors = []Record{{Test: test, Message: message, Trace: trace}}
	return o
}

// Validate checks the schema tag and version.
func (o *Outcome) Validate() error {
	if o.Schema != OutcomeSchema {
		return ErrSchemaMismatch
	}
	if o.Version < 1 || o.Version > OutcomeVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, o.Version)
	}
	if o.TestsRun < 0 {
		return fmt.Errorf("negative tests_run %d", o.TestsRun)
	}
	return nil
}

// Status collapses the outcome into a single status.
func (o *Outcome) Status() TestStatus {
	switch {
	case len(o.Errors) > 0:
		return TestStatusError
	case len(o.Failures) > 0 || len(o.UnexpectedSuccesses) > 0:
		return TestStatusFail
	case o.TestsRun > 0 && len(o.Skipped) == o.TestsRun:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}
