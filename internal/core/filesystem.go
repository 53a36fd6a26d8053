package core

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystem abstracts the read-only file system operations used for archive
// discovery and package checks.
type FileSystem interface {
	// ReadDir lists the names of the direct entries of path, sorted. Directories carry a trailing "/".
	ReadDir(path string) ([]string, error)
	Stat(path string) (os.FileInfo, error)
	// WalkFiles visits every regular file under root in lexical order until fn returns false.
	// A missing root is not an error.
	WalkFiles(root string, fn func(path string) bool) error
}

// OSFileSystem implements FileSystem using standard os package.
type OSFileSystem struct{}

// NewOSFileSystem creates a new OSFileSystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// ReadDir lists directory contents.
func (fs *OSFileSystem) ReadDir(path string) ([]string, error) {
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var items []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		items = append(items, name)
	}

	sort.Strings(items)
	return items, nil
}

// Stat returns file info.
func (fs *OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// WalkFiles walks root with filepath.WalkDir. Unreadable subdirectories are skipped.
func (fs *OSFileSystem) WalkFiles(root string, fn func(path string) bool) error {
	if _, err := os.Stat(root); err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !fn(path) {
			return errStopWalk
		}
		return nil
	})
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

var errStopWalk = errors.New("stop walk")

// NormalizePath converts OS separators to "/" for regex matching.
func NormalizePath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

// isNotExist reports whether err means the path is missing.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
