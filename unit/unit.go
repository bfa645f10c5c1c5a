// Package unit is a small in-process test engine. Test cases are declared as
// case types holding methods, mirroring xUnit-style suites, and every method
// becomes a types.Test that can run in-process or be resolved by name inside
// a child process.
package unit

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/ethereum-optimism/infra/cleantest/types"
)

// Method is a single test method of a case type.
type Method struct {
	Name string
	Fn   func(t *T)

	// Isolated requests a fresh process for this method only.
	Isolated bool
	// ExpectFailure inverts the pass/fail sense of the method.
	ExpectFailure bool
}

// CaseType groups related test methods under a qualified type name.
type CaseType struct {
	Name     string
	Isolated bool
	SetUp    func(t *T)
	TearDown func(t *T)
	Methods  []Method
}

// Isolate marks the whole case type as requiring fresh processes.
func Isolate(ct CaseType) CaseType {
	ct.Isolated = true
	return ct
}

// IsolateMethod marks a single method as requiring a fresh process.
func IsolateMethod(m Method) Method {
	m.Isolated = true
	return m
}

// Tests returns one test per method, in declaration order.
func (ct CaseType) Tests() []types.Test {
	tests := make([]types.Test, 0, len(ct.Methods))
	for i := range ct.Methods {
		tests = append(tests, &methodTest{caseType: ct, method: ct.Methods[i]})
	}
	return tests
}

// Node builds the collection for this case type. The group carries the
// type-level tag; leaves carry method-level tags.
func (ct CaseType) Node() types.Node {
	tests := ct.Tests()
	children := make([]types.Node, 0, len(tests))
	for i, t := range tests {
		leaf := types.Leaf(t)
		if ct.Methods[i].Isolated {
			leaf = types.Mark(leaf)
		}
		children = append(children, leaf)
	}
	group := types.Group(ct.Name, children...)
	if ct.Isolated {
		group = types.Mark(group)
	}
	return group
}

// Validate checks that the case type can be registered.
func (ct CaseType) Validate() error {
	if ct.Name == "" {
		return fmt.Errorf("case type name cannot be empty")
	}
	seen := make(map[string]bool, len(ct.Methods))
	for _, m := range ct.Methods {
		if m.Name == "" {
			return fmt.Errorf("case type %s has a method without a name", ct.Name)
		}
		if strings.Contains(m.Name, ".") {
			return fmt.Errorf("method %s.%s cannot contain '.'", ct.Name, m.Name)
		}
		if m.Fn == nil {
			return fmt.Errorf("method %s.%s has no body", ct.Name, m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate method %s.%s", ct.Name, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

var _ types.Test = (*methodTest)(nil)

type methodTest struct {
	caseType CaseType
	method   Method
}

func (m *methodTest) ID() string {
	return m.caseType.Name + "." + m.method.Name
}

func (m *methodTest) TypeName() string {
	return m.caseType.Name
}

func (m *methodTest) String() string {
	return m.ID()
}

func (m *methodTest) Run(ctx context.Context, sink types.Sink) {
	sink.StartTest(m)
	defer sink.StopTest(m)

	t := newT(ctx, m.ID())
	t.run(func(t *T) {
		if m.caseType.SetUp != nil {
			m.caseType.SetUp(t)
		}
		if m.caseType.TearDown != nil {
			defer m.caseType.TearDown(t)
		}
		m.method.Fn(t)
	})

	report(m, m.method.ExpectFailure, t, sink)
}

// report translates the final state of t into sink calls.
func report(test types.Test, expectFailure bool, t *T, sink types.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A failure recorded before a skip still fails the test
	switch {
	case t.panicked:
		if expectFailure {
			sink.AddExpectedFailure(test, t.panicMessage, t.trace)
		} else {
			sink.AddError(test, t.panicMessage, t.trace)
		}
	case t.failed:
		msg := strings.Join(t.messages, "\n")
		if expectFailure {
			sink.AddExpectedFailure(test, msg, "")
		} else {
			sink.AddFailure(test, msg, "")
		}
	case t.skipped:
		sink.AddSkip(test, t.skipReason)
	case expectFailure:
		sink.AddUnexpectedSuccess(test)
	default:
		sink.AddSuccess(test)
	}
}

// T is handed to every test method.
type T struct {
	ctx  context.Context
	name string

	mu           sync.Mutex
	failed       bool
	skipped      bool
	skipReason   string
	panicked     bool
	panicMessage string
	trace        string
	messages     []string
	logs         []string
}

func newT(ctx context.Context, name string) *T {
	if ctx == nil {
		ctx = context.Background()
	}
	return &T{ctx: ctx, name: name}
}

// run executes fn on its own goroutine so that FailNow and SkipNow can stop
// the body with runtime.Goexit without unwinding the caller.
func (t *T) run(fn func(t *T)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.mu.Lock()
				t.panicked = true
				t.panicMessage = fmt.Sprintf("panic: %v", r)
				t.trace = string(debug.Stack())
				t.mu.Unlock()
			}
		}()
		fn(t)
	}()
	<-done
}

// Name returns the test ID.
func (t *T) Name() string {
	return t.name
}

// Context returns the context the test was started with.
func (t *T) Context() context.Context {
	return t.ctx
}

func (t *T) Log(args ...any) {
	t.log(fmt.Sprintln(args...))
}

func (t *T) Logf(format string, args ...any) {
	t.log(fmt.Sprintf(format, args...))
}

func (t *T) log(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, strings.TrimSuffix(s, "\n"))
}

// Logs returns everything logged so far.
func (t *T) Logs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.logs...)
}

// Fail marks the test as failed and continues.
func (t *T) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
}

// Failed reports whether the test has failed.
func (t *T) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed || t.panicked
}

func (t *T) Error(args ...any) {
	t.fail(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (t *T) Errorf(format string, args ...any) {
	t.fail(fmt.Sprintf(format, args...))
}

func (t *T) fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
	t.messages = append(t.messages, msg)
}

// FailNow marks the test as failed and stops it.
func (t *T) FailNow() {
	t.Fail()
	runtime.Goexit()
}

func (t *T) Fatal(args ...any) {
	t.Error(args...)
	runtime.Goexit()
}

func (t *T) Fatalf(format string, args ...any) {
	t.Errorf(format, args...)
	runtime.Goexit()
}

// SkipNow marks the test as skipped and stops it.
func (t *T) SkipNow() {
	t.mu.Lock()
	t.skipped = true
	t.mu.Unlock()
	runtime.Goexit()
}

func (t *T) Skip(args ...any) {
	t.mu.Lock()
	t.skipReason = strings.TrimSuffix(fmt.Sprintln(args...), "\n")
	t.mu.Unlock()
	t.SkipNow()
}

func (t *T) Skipf(format string, args ...any) {
	t.mu.Lock()
	t.skipReason = fmt.Sprintf(format, args...)
	t.mu.Unlock()
	t.SkipNow()
}
