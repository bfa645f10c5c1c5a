package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "cleantest"
)

var (
	Debug                bool = true
	validStatuses             = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip, types.TestStatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	isolatedTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "isolated_tests_total",
		Help:      "Count of isolated tests executed in child processes, by outcome status",
	}, []string{
		"run_id",
		"status",
	})

	childDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "child_duration_seconds",
		Help:      "Wall-clock duration of isolated child processes",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{
		"run_id",
	})

	undecodableOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "undecodable_outcomes_total",
		Help:      "Count of child processes that produced no well-formed outcome",
	}, []string{
		"run_id",
	})

	launchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "launch_failures_total",
		Help:      "Count of child processes that could not be started",
	}, []string{
		"run_id",
	})

	runTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_total",
		Help:      "Number of tests run, by run and kind",
	}, []string{
		"run_id",
		"kind",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a run",
	}, []string{
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordIsolatedTest records one finished child process.
func RecordIsolatedTest(runID string, status types.TestStatus, duration time.Duration) {
	if !isValidStatus(status) {
		log.Error("RecordIsolatedTest - invalid status", "status", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "isolated_tests_total",
			"run_id", runID,
			"status", status,
			"duration", duration)
	}
	isolatedTestsTotal.WithLabelValues(runID, string(status)).Inc()
	childDuration.WithLabelValues(runID).Observe(duration.Seconds())
}

func RecordUndecodableOutcome(runID string) {
	undecodableOutcomes.WithLabelValues(runID).Inc()
}

func RecordLaunchFailure(runID string, err error) {
	launchFailures.WithLabelValues(runID).Inc()
	RecordErrorDetails("launch", err)
}

// RecordRun records the totals of a finished run.
func RecordRun(runID string, result types.TestStatus, ordinary, isolated int, duration time.Duration) {
	runResults.WithLabelValues(runID, string(result)).Set(1)
	runTestsTotal.WithLabelValues(runID, "ordinary").Add(float64(ordinary))
	runTestsTotal.WithLabelValues(runID, "isolated").Add(float64(isolated))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidStatus(status types.TestStatus) bool {
	return slices.Contains(validStatuses, status)
}
