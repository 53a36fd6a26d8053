package core

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/types"
)

// ============================================================================
// MockFileSystem
// ============================================================================

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	ReadDirFunc   func(path string) ([]string, error)
	StatFunc      func(path string) (os.FileInfo, error)
	WalkFilesFunc func(root string, fn func(path string) bool) error

	// Call tracking
	ReadDirCalls []string
}

// ReadDir implements FileSystem
func (m *MockFileSystem) ReadDir(path string) ([]string, error) {
	m.ReadDirCalls = append(m.ReadDirCalls, path)
	if m.ReadDirFunc != nil {
		return m.ReadDirFunc(path)
	}
	return nil, os.ErrNotExist
}

// Stat implements FileSystem
func (m *MockFileSystem) Stat(path string) (os.FileInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(path)
	}
	return nil, os.ErrNotExist
}

// WalkFiles implements FileSystem
func (m *MockFileSystem) WalkFiles(root string, fn func(path string) bool) error {
	if m.WalkFilesFunc != nil {
		return m.WalkFilesFunc(root, fn)
	}
	return nil
}

// ============================================================================
// MockPolicyStore
// ============================================================================

// MockPolicyStore implements PolicyStoreInterface over a fixed policy map
type MockPolicyStore struct {
	Policies map[string]types.VendorPolicy
	Default  string
	LoadErr  error

	PolicyCalls []string
}

// Load implements PolicyStoreInterface
func (m *MockPolicyStore) Load() error { return m.LoadErr }

// Validate implements PolicyStoreInterface
func (m *MockPolicyStore) Validate(vendorKey string) (bool, string) {
	if _, ok := m.Policies[vendorKey]; ok {
		return true, "Configuration is valid"
	}
	return false, "Vendor '" + vendorKey + "' not found in configuration"
}

// Policy implements PolicyStoreInterface
func (m *MockPolicyStore) Policy(vendorKey string) (types.VendorPolicy, PolicyLookup) {
	m.PolicyCalls = append(m.PolicyCalls, vendorKey)
	if p, ok := m.Policies[vendorKey]; ok {
		return p, PolicyFound
	}
	if m.Default != "" {
		return m.Policies[m.Default], PolicyFellBackToDefault
	}
	return types.VendorPolicy{}, PolicyNotFound
}

// Vendors implements PolicyStoreInterface
func (m *MockPolicyStore) Vendors() []string { return sortedKeys(m.Policies) }

// Paths implements PolicyStoreInterface
func (m *MockPolicyStore) Paths() types.PathsConfig { return types.PathsConfig{} }

// Invalidate implements PolicyStoreInterface
func (m *MockPolicyStore) Invalidate() {}

// Path implements PolicyStoreInterface
func (m *MockPolicyStore) Path() string { return "mock-policy.yml" }

// ============================================================================
// MockValidationEngine
// ============================================================================

// MockValidationEngine implements ValidationEngineInterface for testing
type MockValidationEngine struct {
	ValidateFunc func(ctx context.Context, policy types.VendorPolicy, in ValidationInput) *types.ValidationResult

	mu    sync.Mutex
	Calls []ValidationInput
}

// Validate implements ValidationEngineInterface
func (m *MockValidationEngine) Validate(ctx context.Context, policy types.VendorPolicy, in ValidationInput) *types.ValidationResult {
	m.mu.Lock()
	m.Calls = append(m.Calls, in)
	m.mu.Unlock()
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, policy, in)
	}
	res := types.NewValidationResult(policy.VendorKey, in.ToolNumber, in.ToolColumn, in.Technology, 0)
	res.Success = true
	return res
}

// ============================================================================
// MockComparer
// ============================================================================

// MockComparer implements ArchiveComparer with a canned result
type MockComparer struct {
	Result archive.CompareResult
	Calls  [][]string
}

// Compare implements ArchiveComparer
func (m *MockComparer) Compare(sourcePath, targetPath, extension string) archive.CompareResult {
	m.Calls = append(m.Calls, []string{sourcePath, targetPath, extension})
	return m.Result
}

// ============================================================================
// recordingMetrics
// ============================================================================

// recordingMetrics implements MetricsRecorder and keeps every observation
type recordingMetrics struct {
	mu          sync.Mutex
	checkpoints []string
	validations []string
	batches     []int
}

func (r *recordingMetrics) ObserveCheckpoint(checkpoint string, executed, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if executed {
		r.checkpoints = append(r.checkpoints, checkpoint)
	}
}

func (r *recordingMetrics) ObserveValidation(vendor string, _ *ValidationOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations = append(r.validations, vendor)
}

func (r *recordingMetrics) ObserveBatch(rows int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, rows)
}

// ============================================================================
// Test Helper Functions
// ============================================================================

// date builds a UTC midnight time for yyyy-mm-dd.
func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// scenarioPolicy is the vendor policy used by the end-to-end validation scenarios.
func scenarioPolicy() types.VendorPolicy {
	return types.VendorPolicy{
		VendorKey:            "acme",
		SourceArchiveRegex:   `.*/source/{tool_number}_.*\.tar\.gz$`,
		TargetArchiveRegex:   `.*/target/{tool_number}_.*\.tar\.gz$`,
		ConsistencyEnabled:   true,
		ConsistencyExtension: ".rctl",
		RequiredPatterns:     []string{`Report_{tool_number}\.xlsx$`, `Summary_{tool_number}\.pdf$`, `Config_{tool_number}\.aaa$`},
		BypassThreshold:      5,
		BypassSuffixes:       []string{`.aaa$`},
	}
}

func assertNoError(t interface{ Fatalf(string, ...interface{}) }, err error, msg string) {
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

func assertEqual(t interface{ Errorf(string, ...interface{}) }, got, want interface{}, msg string) {
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}
