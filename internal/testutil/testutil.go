// Package testutil holds shared fixtures and assertions for vendor-qc tests.
package testutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// ============================================================================
// Pointer Helpers
// ============================================================================

// IntPtr creates a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// BoolPtr creates a pointer to a bool.
func BoolPtr(b bool) *bool {
	return &b
}

// ============================================================================
// File Fixtures
// ============================================================================

// WriteFile writes content under dir, creating parent directories, and returns the full path.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", full, err)
	}
	return full
}

// ============================================================================
// Error Assertions
// ============================================================================

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: expected no error, got: %v", msg, err)
	}
}

// AssertEqual fails the test if got != want using reflect.DeepEqual.
func AssertEqual[T any](t *testing.T, got, want T, msg string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s: got %+v, want %+v", msg, got, want)
	}
}
