package cleantest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/cleantest/exitcodes"
)

func TestTypedErrors(t *testing.T) {
	base := errors.New("manifest not found")
	runtimeErr := fmt.Errorf("failed to start: %w", NewRuntimeError(base))
	failureErr := fmt.Errorf("failed to start: %w", NewTestFailureError("ran 3 tests: 1 failures"))

	assert.True(t, IsRuntimeError(runtimeErr))
	assert.False(t, IsTestFailureError(runtimeErr))
	assert.ErrorIs(t, runtimeErr, base)
	assert.Equal(t, "failed to start: runtime error: manifest not found", runtimeErr.Error())

	assert.True(t, IsTestFailureError(failureErr))
	assert.False(t, IsRuntimeError(failureErr))
	assert.Equal(t, "failed to start: test failure: ran 3 tests: 1 failures", failureErr.Error())

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcodes.Success},
		{name: "runtime", err: NewRuntimeError(errors.New("boom")), want: exitcodes.RuntimeErr},
		{name: "wrapped runtime", err: fmt.Errorf("outer: %w", NewRuntimeError(errors.New("boom"))), want: exitcodes.RuntimeErr},
		{name: "test failure", err: NewTestFailureError("failed"), want: exitcodes.TestFailure},
		{name: "untyped", err: errors.New("unknown"), want: exitcodes.TestFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
