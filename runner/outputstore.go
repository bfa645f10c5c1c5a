package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum-optimism/infra/cleantest/types"
	"github.com/google/uuid"
)

// RunDirectoryPrefix is prepended to the run ID to name a run's directory
const RunDirectoryPrefix = "run-"

// OutputStore keeps the raw combined output of each child
type OutputStore interface {
	Store(testName string, status types.TestStatus, output []byte) error
}

var _ OutputStore = (*FileOutputStore)(nil)

// FileOutputStore writes each child's output to
// <baseDir>/run-<runID>/{passed,failed}/<test>.log
type FileOutputStore struct {
	runID     string
	runDir    string
	passedDir string
	failedDir string
}

// NewFileOutputStore creates the directories for one run. An empty runID
// gets a fresh random one.
func NewFileOutputStore(baseDir, runID string) (*FileOutputStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	s := &FileOutputStore{
		runID:     runID,
		runDir:    runDir,
		passedDir: filepath.Join(runDir, "passed"),
		failedDir: filepath.Join(runDir, "failed"),
	}
	for _, dir := range []string{s.passedDir, s.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *FileOutputStore) RunID() string {
	return s.runID
}

func (s *FileOutputStore) RunDir() string {
	return s.runDir
}

// Store writes output under a name derived from testName. Passing and
// skipped tests go to passed/, everything else to failed/.
func (s *FileOutputStore) Store(testName string, status types.TestStatus, output []byte) error {
	dir := s.failedDir
	if status == types.TestStatusPass || status == types.TestStatusSkip {
		dir = s.passedDir
	}
	path := filepath.Join(dir, safeFilename(testName)+".log")
	if err := os.WriteFile(path, output, 0644); err != nil {
		return fmt.Errorf("failed to write output for %s: %w", testName, err)
	}
	return nil
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return replacer.Replace(s)
}
