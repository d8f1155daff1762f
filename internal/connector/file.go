package connector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// FileConnector reads secret values from a YAML file. Top-level keys are
// secret names; a value may be a scalar or a flat map of scalars.
type FileConnector struct {
	path   string
	data   map[string]any
	loaded loadedSet
}

// NewFileConnector builds a file-backed connector. The path is resolved
// against baseDir when relative.
func NewFileConnector(path, baseDir string) (*FileConnector, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("file connector path is required")
	}
	if baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return &FileConnector{path: filepath.Clean(path)}, nil
}

// Load parses the file on first use and verifies every requested name exists.
func (c *FileConnector) Load(_ context.Context, names []string) error {
	if c.data == nil {
		raw, err := os.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("read secrets file %q: %w", c.path, err)
		}
		data := make(map[string]any)
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parse secrets file %q: %w", c.path, err)
		}
		c.data = data
	}
	for _, name := range names {
		value, ok := c.data[name]
		if !ok {
			return fmt.Errorf("secret %q not found in %s", name, c.path)
		}
		c.loaded.put(name, value)
	}
	return nil
}

// Get returns a loaded file value.
func (c *FileConnector) Get(name string) (any, error) {
	return c.loaded.get(name)
}
