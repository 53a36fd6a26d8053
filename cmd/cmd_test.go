package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmundoT/vendor-qc/internal/core"
	"github.com/EmundoT/vendor-qc/internal/testutil"
	"github.com/EmundoT/vendor-qc/internal/types"
	"github.com/EmundoT/vendor-qc/internal/version"
)

const fixturePolicy = `paths:
  source_root: {root}/source
  target_root: {root}/target
vendors:
  acme:
    archive_config:
      source_archive_regex: '{source_root}/{tool_number}_.*\.tar\.gz$'
      target_archive_regex: '{target_root}/{tool_column}/{tool_number}_.*\.tar\.gz$'
      consistency_check:
        enabled: true
        file_extension: .rctl
    required_patterns:
      - 'Report_{tool_number}\.xlsx$'
      - 'Summary_{tool_number}\.pdf$'
    bypass_rules:
      technology_threshold: 5
      bypass_patterns: []
`

const fixtureRows = `Tool_Number,Tool Column,Customer schedule,Responsible User,Vendor,technology,Project Start Date
T1,Line7,2025-03-05,kim,acme,3,2025-02-20
T2,Line8,2025-03-06,lee,acme,3,2025-02-20
`

// fixture is a delivery tree where T1 is complete and T2 was never delivered.
type fixture struct {
	dir      string
	policy   string
	rows     string
	settings string
	source   string
	target   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	files := testutil.Files(map[string]string{
		"docs/Report_T1.xlsx": "report",
		"docs/Summary_T1.pdf": "summary",
		"T1.rctl":             "rev 4",
	})
	f := &fixture{
		dir:      dir,
		policy:   testutil.WriteFile(t, dir, "policy.yml", strings.ReplaceAll(fixturePolicy, "{root}", dir)),
		rows:     testutil.WriteFile(t, dir, "deliveries.csv", fixtureRows),
		settings: testutil.WriteFile(t, dir, "settings.yml", "{}\n"),
		source:   filepath.Join(dir, "source", "T1_v1.tar.gz"),
		target:   filepath.Join(dir, "target", "Line7", "T1_v1.tar.gz"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.source), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.target), 0o755))
	testutil.WriteTarGz(t, f.source, files...)
	testutil.WriteTarGz(t, f.target, files...)
	return f
}

// execute runs the CLI the way Execute does and captures both streams.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(args)
	err = reportError(root, root.Execute())
	return out.String(), errOut.String(), err
}

func (f *fixture) run(t *testing.T, extra ...string) (string, string, error) {
	t.Helper()
	args := append([]string{"run", f.rows, "--config", f.policy, "--settings", f.settings, "--as-of", "2025-03-03"}, extra...)
	return execute(t, args...)
}

type failureEnvelope struct {
	Success bool               `json:"success"`
	Data    core.FailureReport `json:"data"`
}

// =============================================================================
// run
// =============================================================================

func TestRun_JSONReport(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run(t, "--json", "--details")
	require.NoError(t, err)

	var resp failureEnvelope
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "2025-03-03", resp.Data.AsOf)
	assert.Equal(t, 2, resp.Data.Summary.TotalTools)
	assert.Equal(t, 1, resp.Data.Summary.Successes)
	assert.Equal(t, types.BatchResultFail, resp.Data.Summary.Result)

	readiness := resp.Data.Failures[core.CheckpointPackageReadiness]
	require.Len(t, readiness, 1)
	assert.Equal(t, "T2", readiness[0].ToolNumber)
	assert.Equal(t, core.ErrPackageNotFoundMsg, readiness[0].FailReason)

	final := resp.Data.Failures[core.CheckpointFinalReport]
	require.Len(t, final, 1)
	assert.Equal(t, "T2", final[0].ToolNumber)
	assert.Contains(t, final[0].FailReason, "Archives not found")

	require.Contains(t, resp.Data.Details, "T1")
	assert.True(t, resp.Data.Details["T1"].Success)
	assert.Equal(t, 2, resp.Data.Details["T1"].Statistics.PassCount)
}

func TestRun_TextReport(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run(t)
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Vendor QC Report ===")
	assert.Contains(t, stdout, "Result: FAIL (1 passed, 1 failed)")
	assert.Contains(t, stdout, "lee")
}

func TestRun_FailOnFindings(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run(t, "--quiet", "--fail-on-findings")
	require.Error(t, err)
	assert.Equal(t, core.ExitValidationFailed, core.CLIExitCodeForError(err))
	assert.Equal(t, "FAIL (1 passed, 1 failed)\n", stdout)
}

func TestRun_AllPassing(t *testing.T) {
	f := newFixture(t)
	rows := testutil.WriteFile(t, f.dir, "only-t1.csv",
		"Tool_Number,Tool Column,Customer schedule,Responsible User,Vendor,technology\nT1,Line7,2025-03-05,kim,acme,3\n")

	stdout, _, err := execute(t, "run", rows, "--config", f.policy, "--settings", f.settings,
		"--as-of", "2025-03-03", "--quiet", "--fail-on-findings")
	require.NoError(t, err)
	assert.Equal(t, "PASS (1 passed, 0 failed)\n", stdout)
}

func TestRun_WindowExcludesLaterRows(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run(t, "--json")
	require.NoError(t, err)
	var resp failureEnvelope
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 2, resp.Data.Summary.TotalTools)

	stdout, _, err = execute(t, "run", f.rows, "--config", f.policy, "--settings", f.settings,
		"--as-of", "2025-06-01", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 0, resp.Data.Summary.TotalTools)
}

func TestRun_NotifyStdoutSink(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run(t, "--quiet", "--notify", "--yes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2, stdout)
	assert.Equal(t, "FAIL (1 passed, 1 failed)", lines[0])

	var n struct {
		User  string `json:"user"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &n))
	assert.Equal(t, "lee", n.User)
	assert.Equal(t, 2, n.Count)
}

func TestRun_NotifyJSONModeUsesStderr(t *testing.T) {
	f := newFixture(t)

	stdout, stderr, err := f.run(t, "--json", "--notify", "--yes")
	require.NoError(t, err)

	var resp failureEnvelope
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout must hold only the report")
	assert.Contains(t, stderr, `"user":"lee"`)
}

func TestRun_NotifyWithoutConfirmation(t *testing.T) {
	f := newFixture(t)

	stdout, stderr, err := f.run(t, "--notify")
	require.NoError(t, err)
	assert.NotContains(t, stdout, `"user":"lee"`)
	assert.Contains(t, stderr, "Use --yes to auto-approve")
}

func TestRun_MetricsFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "metrics", "vendorqc.prom")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	_, _, err := f.run(t, "--quiet", "--metrics-file", path, "--workers", "2")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vendorqc_checkpoint_runs_total")
}

func TestRun_Errors(t *testing.T) {
	f := newFixture(t)
	badRows := testutil.WriteFile(t, f.dir, "bad.csv", "Tool_Number,Vendor\nT1,acme\n")
	badPolicy := testutil.WriteFile(t, f.dir, "bad.yml", "vendors:\n  acme: {}\n")

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "missing config flag",
			args:     []string{"run", f.rows, "--settings", f.settings},
			wantCode: core.ExitInvalidArguments,
			wantMsg:  "--config is required",
		},
		{
			name:     "no input",
			args:     []string{"run", "--config", f.policy},
			wantCode: core.ExitInvalidArguments,
			wantMsg:  "accepts 1 arg(s)",
		},
		{
			name:     "bad as-of",
			args:     []string{"run", f.rows, "--config", f.policy, "--settings", f.settings, "--as-of", "March"},
			wantCode: core.ExitInvalidArguments,
			wantMsg:  "invalid --as-of",
		},
		{
			name:     "invalid policy",
			args:     []string{"run", f.rows, "--config", badPolicy, "--settings", f.settings},
			wantCode: core.ExitConfigError,
			wantMsg:  "Configuration missing required 'paths' section",
		},
		{
			name:     "missing columns",
			args:     []string{"run", badRows, "--config", f.policy, "--settings", f.settings},
			wantCode: core.ExitInvalidArguments,
			wantMsg:  "Missing required columns",
		},
		{
			name:     "unknown flag",
			args:     []string{"run", f.rows, "--bogus"},
			wantCode: core.ExitInvalidArguments,
			wantMsg:  "unknown flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, core.CLIExitCodeForError(err))
			assert.Contains(t, stderr, tt.wantMsg)
		})
	}
}

func TestRun_JSONErrorEnvelope(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := execute(t, "run", f.rows, "--config", filepath.Join(f.dir, "absent.yml"),
		"--settings", f.settings, "--json")
	require.Error(t, err)
	assert.Equal(t, core.ExitConfigError, core.CLIExitCodeForError(err))

	var resp core.CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrCodeConfigError, resp.Error.Code)
}

// =============================================================================
// compare
// =============================================================================

func TestCompare(t *testing.T) {
	f := newFixture(t)
	other := testutil.WriteTarGz(t, filepath.Join(f.dir, "other.tar.gz"),
		testutil.ArchiveFile{Name: "T1.rctl", Body: "rev 5"})

	stdout, _, err := execute(t, "compare", f.source, f.target, "--ext", "rctl", "--settings", f.settings)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Files are identical")

	stdout, _, err = execute(t, "compare", f.source, other, "--ext", ".RCTL", "-v", "--settings", f.settings)
	require.Error(t, err)
	assert.Equal(t, core.ExitGeneralError, core.CLIExitCodeForError(err))
	assert.Contains(t, stdout, "Files differ")
	assert.Contains(t, stdout, "source: T1.rctl (5 bytes)")

	stdout, _, err = execute(t, "compare", f.source, other, "--ext", ".rctl", "--json", "--settings", f.settings)
	require.Error(t, err)
	var resp struct {
		Data struct {
			Success bool   `json:"success"`
			Diff    string `json:"diff"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.False(t, resp.Data.Success)
	assert.NotEmpty(t, resp.Data.Diff)
}

func TestCompare_RequiresExtension(t *testing.T) {
	f := newFixture(t)

	_, _, err := execute(t, "compare", f.source, f.target, "--settings", f.settings)
	require.Error(t, err)
	assert.Equal(t, core.ExitInvalidArguments, core.CLIExitCodeForError(err))
}

// =============================================================================
// inspect
// =============================================================================

func TestInspect(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := execute(t, "inspect", f.source, "--settings", f.settings)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 files")
	assert.Contains(t, stdout, "docs/Report_T1.xlsx")

	stdout, _, err = execute(t, "inspect", f.source, "--name", `^Summary_`, "--quiet", "--settings", f.settings)
	require.NoError(t, err)
	assert.Equal(t, "docs/Summary_T1.pdf\n", stdout)

	stdout, _, err = execute(t, "inspect", f.source, "--content", `rev \d`, "--json", "--settings", f.settings)
	require.NoError(t, err)
	var resp struct {
		Data inspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 3, resp.Data.Info.FileCount)
	require.Len(t, resp.Data.Matches, 1)
	assert.Equal(t, "T1.rctl", resp.Data.Matches[0].Entry.Path)
	assert.Equal(t, 1, resp.Data.Matches[0].Lines[0].Number)
}

func TestInspect_Errors(t *testing.T) {
	f := newFixture(t)

	_, _, err := execute(t, "inspect", f.source, "--path", "(", "--settings", f.settings)
	require.Error(t, err)
	assert.Equal(t, core.ExitInvalidArguments, core.CLIExitCodeForError(err))

	stdout, _, err := execute(t, "inspect", filepath.Join(f.dir, "missing.tar.gz"), "--json", "--settings", f.settings)
	require.Error(t, err)
	assert.Contains(t, stdout, core.ErrCodeArchiveNotFound)
}

// =============================================================================
// config
// =============================================================================

func TestConfigValidate(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := execute(t, "config", "validate", "--config", f.policy)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid: 1 vendors")

	stdout, _, err = execute(t, "config", "validate", "--config", f.policy, "--vendor", "ACME", "--json")
	require.NoError(t, err)
	var resp struct {
		Data configValidation `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotNil(t, resp.Data.Vendor)
	assert.Equal(t, "acme", resp.Data.Vendor.VendorKey)

	_, stderr, err := execute(t, "config", "validate", "--config", f.policy, "--vendor", "globex")
	require.Error(t, err)
	assert.Equal(t, core.ExitConfigError, core.CLIExitCodeForError(err))
	assert.Contains(t, stderr, "Vendor 'globex' not found in configuration")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "policy.yml")

	_, _, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	_, _, err = execute(t, "config", "validate", "--config", path, "--vendor", "acme")
	require.NoError(t, err, "the example policy must validate")

	_, _, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Equal(t, core.ExitInvalidArguments, core.CLIExitCodeForError(err))

	_, _, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
}

// =============================================================================
// completion and version
// =============================================================================

func TestCompletion(t *testing.T) {
	for _, shell := range supportedShells {
		t.Run(shell, func(t *testing.T) {
			stdout, _, err := execute(t, "completion", shell)
			require.NoError(t, err)
			assert.Contains(t, stdout, "vendor-qc")
		})
	}

	_, _, err := execute(t, "completion", "tcsh")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedShell))
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vendor-qc "+version.GetFullVersion()+"\n", stdout)
}
