package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFormat is returned when a catalog lacks its top-level metadata or prompts key.
var ErrInvalidFormat = errors.New("invalid catalog format")

// Ensure FileCatalog implements CatalogSource
var _ ports.CatalogSource = (*FileCatalog)(nil)

// FileCatalog loads a prompt catalog from a JSON or YAML file.
type FileCatalog struct {
	path string
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

func (c *FileCatalog) Load() (*models.Catalog, error) {
	return LoadCatalog(c.path)
}

type decodeFunc func(data []byte, v any) error

// LoadCatalog reads path and decodes it. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var decode decodeFunc = json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decode = yaml.Unmarshal
	}

	return parseCatalog(data, decode)
}

func parseCatalog(data []byte, decode decodeFunc) (*models.Catalog, error) {
	var raw any
	if err := decode(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	top, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidFormat)
	}
	for _, key := range []string{"metadata", "prompts"} {
		if _, ok := top[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q key", ErrInvalidFormat, key)
		}
	}

	var catalog models.Catalog
	if err := decode(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog prompts: %w", err)
	}
	return &catalog, nil
}
