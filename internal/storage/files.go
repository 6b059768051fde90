package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileManager owns the on-disk artifacts the server produces: generated job
// report PDFs live under <base>/reports. Processed file bytes never touch
// disk; they are streamed from Drive straight into the pipeline.
type FileManager struct {
	baseDir   string
	reportDir string
}

func NewFileManager(baseDir string) (*FileManager, error) {
	fm := &FileManager{
		baseDir:   baseDir,
		reportDir: filepath.Join(baseDir, "reports"),
	}

	dirs := []string{fm.baseDir, fm.reportDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fm, nil
}

// NewReportPath returns a fresh path for a job report. A random component is
// included so regenerating a report never serves a stale download.
func (fm *FileManager) NewReportPath(jobID int64) string {
	return filepath.Join(fm.reportDir, fmt.Sprintf("job-%d-%s.pdf", jobID, uuid.NewString()))
}

// RemoveReport deletes a previously generated report, ignoring files that
// are already gone.
func (fm *FileManager) RemoveReport(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove report %s: %w", path, err)
	}
	return nil
}
