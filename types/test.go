// Package types contains shared types used across the cleantest harness
package types

import (
	"context"
	"strings"
)

// Test is a single runnable unit with a stable identifier.
type Test interface {
	// ID returns the qualified identifier, "<Qualified.Type.Name>.<method>".
	ID() string
	// TypeName returns the qualified name of the type defining the test.
	TypeName() string
	// Run executes the test and reports its outcome to sink.
	Run(ctx context.Context, sink Sink)
}

// Synthetic is implemented by tests that only exist inside the current
// process, such as placeholders for load-time errors. A child process can
// never resolve them, so they always run in-process.
type Synthetic interface {
	Synthetic() bool
}

// Sink receives the outcome of running tests in-process.
type Sink interface {
	StartTest(t Test)
	StopTest(t Test)
	AddSuccess(t Test)
	AddFailure(t Test, message, trace string)
	AddError(t Test, message, trace string)
	AddSkip(t Test, reason string)
	AddExpectedFailure(t Test, message, trace string)
	AddUnexpectedSuccess(t Test)
}

// Addressable reports whether t can be located by name from a fresh process.
func Addressable(t Test) bool {
	if t == nil || t.ID() == "" {
		return false
	}
	if s, ok := t.(Synthetic); ok && s.Synthetic() {
		return false
	}
	return true
}

// QualifiedName joins a module prefix and a test ID into the name handed to a
// child process. An empty prefix yields the bare ID.
func QualifiedName(prefix string, t Test) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return t.ID()
	}
	return prefix + "." + t.ID()
}

// SplitID splits "<Type.Name>.<method>" into its type and method parts.
// Method names never contain dots, so the last dot is the separator.
func SplitID(id string) (typeName string, method string) {
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return "", id
	}
	return id[:idx], id[idx+1:]
}
