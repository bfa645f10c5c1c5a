package runner

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler collects log records
type captureHandler struct {
	records chan slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *captureHandler) WithGroup(string) slog.Handler            { return h }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	select {
	case h.records <- r:
	default:
	}
	return nil
}

func TestConsoleProgressIndicator(t *testing.T) {
	handler := &captureHandler{records: make(chan slog.Record, 1024)}
	p := NewConsoleProgressIndicator(log.NewLogger(handler), 10*time.Millisecond)

	p.StartRun(1, 2)
	p.StartTest("pkg.Case.TestA")
	p.UpdateTest("pkg.Case.TestA", types.TestStatusPass)
	p.StartTest("pkg.Case.TestB")

	deadline := time.After(5 * time.Second)
	for gotUpdate := false; !gotUpdate; {
		select {
		case r := <-handler.records:
			gotUpdate = r.Message == "Progress update"
		case <-deadline:
			require.FailNow(t, "no progress update logged")
		}
	}

	p.UpdateTest("pkg.Case.TestB", types.TestStatusError)
	p.CompleteRun()
	// A second completion must not close the stop channel twice
	assert.NotPanics(t, p.CompleteRun)
}

func TestNoOpProgressIndicator(t *testing.T) {
	p := NewNoOpProgressIndicator()
	assert.NotPanics(t, func() {
		p.StartRun(1, 1)
		p.StartTest("x")
		p.UpdateTest("x", types.TestStatusPass)
		p.CompleteRun()
	})
}

func TestFormatRunningTests(t *testing.T) {
	assert.Empty(t, formatRunningTests(nil, 3))

	now := time.Now()
	running := map[string]time.Time{
		"a": now.Add(-3 * time.Second),
		"b": now.Add(-5 * time.Second),
		"c": now.Add(-1 * time.Second),
		"d": now,
	}
	got := formatRunningTests(running, 2)
	parts := strings.Split(got, ", ")
	require.Len(t, parts, 3)
	assert.True(t, strings.HasPrefix(parts[0], "b ("))
	assert.True(t, strings.HasPrefix(parts[1], "a ("))
	assert.Equal(t, "+2 more", parts[2])
}
