package core

import (
	"fmt"

	"github.com/EmundoT/vendor-qc/internal/archive"
)

//go:generate mockgen -source=locator.go -destination=locator_mock_test.go -package=core

// ArchiveLocator resolves a regex template to a concrete archive file.
type ArchiveLocator interface {
	// Resolve substitutes subs into template, walks root and returns the first archive
	// container whose normalized full path matches from the start. ok is false when nothing
	// matches or root does not exist.
	Resolve(root, template string, subs map[string]string) (path string, ok bool, err error)
}

// Compile-time interface satisfaction check for FSLocator.
var _ ArchiveLocator = (*FSLocator)(nil)

// FSLocator implements ArchiveLocator over a FileSystem.
// First match wins; ambiguity is not detected at this layer.
type FSLocator struct {
	fs       FileSystem
	patterns *PatternCache
}

// NewFSLocator creates a locator. A nil cache gets a private one.
func NewFSLocator(fs FileSystem, patterns *PatternCache) *FSLocator {
	if fs == nil {
		fs = NewOSFileSystem()
	}
	if patterns == nil {
		patterns = NewPatternCache()
	}
	return &FSLocator{fs: fs, patterns: patterns}
}

// Resolve implements ArchiveLocator.
func (l *FSLocator) Resolve(root, template string, subs map[string]string) (string, bool, error) {
	re, err := l.patterns.Compile(template, subs)
	if err != nil {
		return "", false, fmt.Errorf("compile archive pattern %q: %w", template, err)
	}

	var found string
	walkErr := l.fs.WalkFiles(root, func(path string) bool {
		if !archive.IsContainerName(path) {
			return true
		}
		normalized := NormalizePath(path)
		if loc := re.FindStringIndex(normalized); loc != nil && loc[0] == 0 {
			found = normalized
			return false
		}
		return true
	})
	if walkErr != nil {
		return "", false, fmt.Errorf("walk %s: %w", root, walkErr)
	}
	return found, found != "", nil
}
