package unit

import (
	"context"

	"github.com/ethereum-optimism/infra/cleantest/types"
)

var (
	_ types.Test      = (*LoadError)(nil)
	_ types.Synthetic = (*LoadError)(nil)
)

// LoadError stands in for a test that could not be resolved. It reports a
// single error when run and always runs in the coordinating process, since a
// child could not resolve the name either.
type LoadError struct {
	Name  string
	Err   error
	Trace string
}

// NewLoadError creates a synthetic test reporting err under name.
func NewLoadError(name string, err error) *LoadError {
	return &LoadError{Name: name, Err: err}
}

func (l *LoadError) ID() string {
	return l.Name
}

func (l *LoadError) TypeName() string {
	return "cleantest.LoadError"
}

func (l *LoadError) Synthetic() bool {
	return true
}

func (l *LoadError) Run(_ context.Context, sink types.Sink) {
	sink.StartTest(l)
	defer sink.StopTest(l)
	msg := "failed to load test"
	if l.Err != nil {
		msg = l.Err.Error()
	}
	sink.AddError(l, msg, l.Trace)
}
