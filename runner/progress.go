package runner

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
)

// ProgressIndicator receives updates while a run is in flight
type ProgressIndicator interface {
	StartRun(ordinary, isolated int)
	StartTest(testName string)
	UpdateTest(testName string, status types.TestStatus)
	CompleteRun()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(ordinary, isolated int)                     {}
func (n *noOpProgressIndicator) StartTest(testName string)                           {}
func (n *noOpProgressIndicator) UpdateTest(testName string, status types.TestStatus) {}
func (n *noOpProgressIndicator) CompleteRun()                                        {}

// consoleProgressIndicator logs a progress line on every tick
type consoleProgressIndicator struct {
	logger   log.Logger
	interval time.Duration
	mu       sync.RWMutex

	ticker *time.Ticker
	stopCh chan struct{}

	completedTests int
	totalTests     int
	statusCounts   map[types.TestStatus]int
	runStartTime   time.Time

	// test name -> start time
	runningTests map[string]time.Time
}

// NewConsoleProgressIndicator creates a progress indicator that logs updates
// every updateInterval while a run is in progress
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval <= 0 {
		updateInterval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Root()
	}
	return &consoleProgressIndicator{
		logger:       logger.New("component", "progress"),
		interval:     updateInterval,
		statusCounts: make(map[types.TestStatus]int),
		runningTests: make(map[string]time.Time),
	}
}

func (c *consoleProgressIndicator) StartRun(ordinary, isolated int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalTests = ordinary + isolated
	c.completedTests = 0
	c.statusCounts = make(map[types.TestStatus]int)
	c.runningTests = make(map[string]time.Time)
	c.runStartTime = time.Now()

	if c.stopCh == nil {
		c.ticker = time.NewTicker(c.interval)
		c.stopCh = make(chan struct{})
		go c.progressReporter(c.ticker, c.stopCh)
	}

	c.logger.Info("Starting run", "ordinary", ordinary, "isolated", isolated)
}

func (c *consoleProgressIndicator) StartTest(testName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningTests[testName] = time.Now()
	c.logger.Debug("Test started", "test", testName, "runningTests", len(c.runningTests))
}

func (c *consoleProgressIndicator) UpdateTest(testName string, status types.TestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.runningTests, testName)
	c.completedTests++
	c.statusCounts[status]++
	c.logger.Debug("Test completed", "test", testName, "status", status, "completed", c.completedTests, "total", c.totalTests)
}

func (c *consoleProgressIndicator) CompleteRun() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh != nil {
		c.ticker.Stop()
		close(c.stopCh)
		c.stopCh = nil
	}

	duration := time.Since(c.runStartTime).Truncate(time.Millisecond)
	c.logger.Info("Completed run",
		"completed", c.completedTests,
		"total", c.totalTests,
		"passed", c.statusCounts[types.TestStatusPass],
		"failed", c.statusCounts[types.TestStatusFail],
		"errored", c.statusCounts[types.TestStatusError],
		"skipped", c.statusCounts[types.TestStatusSkip],
		"duration", duration)
}

func (c *consoleProgressIndicator) progressReporter(ticker *time.Ticker, stopCh chan struct{}) {
	for {
		select {
		case <-ticker.C:
			c.reportProgress()
		case <-stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	done := 0.0
	if c.totalTests > 0 {
		done = 100 * float64(c.completedTests) / float64(c.totalTests)
	}
	c.logger.Info("Progress update",
		"completed", c.completedTests,
		"total", c.totalTests,
		"done", fmt.Sprintf("%.1f%%", done),
		"failing", c.statusCounts[types.TestStatusFail]+c.statusCounts[types.TestStatusError],
		"inFlight", len(c.runningTests),
		"slowest", formatRunningTests(c.runningTests, 3),
		"elapsed", time.Since(c.runStartTime).Truncate(time.Second))
}

// formatRunningTests lists up to limit in-flight tests, slowest first.
func formatRunningTests(runningTests map[string]time.Time, limit int) string {
	names := slices.Collect(maps.Keys(runningTests))
	// Earliest start first, name as tie-break so the output is stable
	slices.SortFunc(names, func(a, b string) int {
		if c := runningTests[a].Compare(runningTests[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	now := time.Now()
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		if i == limit {
			fmt.Fprintf(&b, "+%d more", len(names)-limit)
			break
		}
		fmt.Fprintf(&b, "%s (%v)", name, now.Sub(runningTests[name]).Truncate(time.Second))
	}
	return b.String()
}
