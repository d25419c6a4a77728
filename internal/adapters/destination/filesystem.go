package destination

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
)

// Ensure FileSystemWriter implements SampleWriter
var _ ports.SampleWriter = (*FileSystemWriter)(nil)

// FileSystemWriter writes each sample to its own text file under the output tree.
type FileSystemWriter struct{}

func NewFileSystemWriter() *FileSystemWriter {
	return &FileSystemWriter{}
}

// SanitizeModel keeps the last "/"-separated segment of a model identifier.
func SanitizeModel(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		return model[i+1:]
	}
	return model
}

// SamplePath returns outputDir/language/topic/provider/model/stance/sample_index.txt
// with the model identifier sanitized.
func SamplePath(outputDir, language, topic, provider, model, stance string, index int) string {
	return filepath.Join(
		outputDir, language, topic, provider, SanitizeModel(model), stance,
		fmt.Sprintf("sample_%d.txt", index),
	)
}

// Write creates any missing directories, overwrites the sample file with text
// and returns its path.
func (w *FileSystemWriter) Write(outputDir, language, topic, provider, model, stance string, index int, text string) (string, error) {
	path := SamplePath(outputDir, language, topic, provider, model, stance, index)

	// MkdirAll tolerates a concurrent writer creating the same parents.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create sample directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write sample %s: %w", path, err)
	}
	return path, nil
}
