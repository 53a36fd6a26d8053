package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// maxYAMLFileSize is the maximum size of a policy or holiday file (1 MB).
// Prevents memory exhaustion from oversized or hostile files; a policy with
// hundreds of vendors is well under 100 KB.
const maxYAMLFileSize = 1 << 20 // 1 MB

// YAMLStore provides guarded YAML file I/O for type T. JSON documents are
// accepted as well since YAML is a superset.
type YAMLStore[T any] struct {
	path         string
	allowMissing bool // If true, missing file returns zero value instead of error
}

// NewYAMLStore creates a new YAML store for type T.
//
// Parameters:
//   - path: the YAML (or JSON) file
//   - allowMissing: If true, Load() returns zero value for missing files instead of error.
func NewYAMLStore[T any](path string, allowMissing bool) *YAMLStore[T] {
	return &YAMLStore[T]{
		path:         path,
		allowMissing: allowMissing,
	}
}

// Path returns the full file path.
func (s *YAMLStore[T]) Path() string {
	return s.path
}

// ReadBytes returns the raw file content after the size check. A missing file
// yields nil, nil when allowMissing is set.
func (s *YAMLStore[T]) ReadBytes() ([]byte, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.allowMissing {
			return nil, nil
		}
		return nil, err
	}
	if info.Size() > maxYAMLFileSize {
		return nil, fmt.Errorf("%s exceeds maximum size (%d bytes > %d byte limit)", filepath.Base(s.path), info.Size(), maxYAMLFileSize)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.allowMissing {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Load reads and unmarshals the file into type T.
func (s *YAMLStore[T]) Load() (T, error) {
	var result T

	data, err := s.ReadBytes()
	if err != nil || data == nil {
		return result, err
	}

	if err := yaml.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("invalid %s: %w", filepath.Base(s.path), err)
	}

	return result, nil
}

// Save marshals and writes type T to the file, creating parent directories.
func (s *YAMLStore[T]) Save(data T) error {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(s.path), err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, bytes, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(s.path), err)
	}

	return nil
}
