package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
)

// Ensure FileReportStore implements ReportStore
var _ ports.ReportStore = (*FileReportStore)(nil)

// FileReportStore writes run summaries as indented JSON.
type FileReportStore struct {
	path string
}

func NewFileReportStore(path string) *FileReportStore {
	return &FileReportStore{path: path}
}

// Save replaces the report file atomically: write to a temp file then rename.
func (s *FileReportStore) Save(summary models.RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmpFile := s.path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if err := os.Rename(tmpFile, s.path); err != nil {
		return fmt.Errorf("failed to replace report file: %w", err)
	}
	return nil
}

// LoadReport reads a summary previously written by Save.
func LoadReport(path string) (models.RunSummary, error) {
	var summary models.RunSummary
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, err
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("failed to decode report: %w", err)
	}
	return summary, nil
}
