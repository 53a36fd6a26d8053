package core

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/EmundoT/vendor-qc/internal/types"
)

func readinessRow() types.DeliveryRow {
	return types.DeliveryRow{
		ToolNumber:       "T100",
		ToolColumn:       "Line7",
		Vendor:           "ACME",
		ResponsibleUser:  "kim",
		CustomerSchedule: date(2025, time.February, 3),
		ProjectStartDate: date(2025, time.January, 6),
	}
}

// =============================================================================
// DateOnly / DaysBetween
// =============================================================================

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, time.March, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, time.March, 4, 0, 1, 0, 0, time.UTC)

	assertEqual(t, DaysBetween(a, b), 3, "forward")
	assertEqual(t, DaysBetween(b, a), -3, "backward")
	assertEqual(t, DaysBetween(a, a), 0, "same day")
}

// =============================================================================
// Package Readiness
// =============================================================================

func TestPackageReadiness_TriggerBoundary(t *testing.T) {
	def := PackageReadinessCheckpoint(&MockFileSystem{}, types.PathsConfig{}, PackageReadinessSettings{OffsetDays: 3})
	row := readinessRow()

	tests := []struct {
		name  string
		today time.Time
		want  bool
	}{
		{"two days after start", date(2025, time.January, 8), false},
		{"exactly three days after start", date(2025, time.January, 9), true},
		{"later the same day", time.Date(2025, time.January, 9, 17, 30, 0, 0, time.UTC), true},
		{"well past start", date(2025, time.February, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, def.Trigger(row, tt.today), tt.want, "trigger")
		})
	}

	row.ProjectStartDate = time.Time{}
	if def.Trigger(row, date(2030, time.January, 1)) {
		t.Error("rows without a start date must not trigger")
	}
}

func TestPackageReadiness_Validate(t *testing.T) {
	tests := []struct {
		name         string
		entries      []string
		err          error
		wantFailures int
		wantErr      bool
	}{
		{"matching file", []string{"notes.txt", "T100_package.zip"}, nil, 0, false},
		{"matching directory", []string{"T100/"}, nil, 0, false},
		{"no match", []string{"T101_package.zip", "other/"}, nil, 1, false},
		{"empty directory", nil, nil, 1, false},
		{"missing directory", nil, os.ErrNotExist, 1, false},
		{"unreadable directory", nil, os.ErrPermission, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &MockFileSystem{ReadDirFunc: func(string) ([]string, error) { return tt.entries, tt.err }}
			def := PackageReadinessCheckpoint(fs, types.PathsConfig{TargetRoot: "/deliveries"}, PackageReadinessSettings{})

			out, err := def.Validate(context.Background(), readinessRow(), date(2025, time.January, 10))

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			assertNoError(t, err, "validate")
			assertEqual(t, len(out.Failures), tt.wantFailures, "failures")
			if tt.wantFailures > 0 {
				f := out.Failures[0]
				assertEqual(t, f.FailReason, ErrPackageNotFoundMsg, "reason")
				assertEqual(t, f.Checkpoint, CheckpointPackageReadiness, "checkpoint")
				assertEqual(t, f.ResponsibleUser, "kim", "responsible user")
			}
			if len(fs.ReadDirCalls) != 1 || fs.ReadDirCalls[0] != "/deliveries/Line7" {
				t.Errorf("expected default template path, got %v", fs.ReadDirCalls)
			}
		})
	}
}

func TestPackageReadiness_CustomTemplate(t *testing.T) {
	fs := &MockFileSystem{ReadDirFunc: func(string) ([]string, error) { return []string{"T100.zip"}, nil }}
	def := PackageReadinessCheckpoint(fs, types.PathsConfig{TargetRoot: "/out"}, PackageReadinessSettings{
		TargetPathTemplate: "{target_root}/packages/{tool_number}",
	})

	_, err := def.Validate(context.Background(), readinessRow(), date(2025, time.January, 10))
	assertNoError(t, err, "validate")
	assertEqual(t, fs.ReadDirCalls[0], "/out/packages/T100", "resolved directory")
}

// =============================================================================
// Final Report
// =============================================================================

func TestFinalReport_Trigger(t *testing.T) {
	def := FinalReportCheckpoint(&MockPolicyStore{}, &MockValidationEngine{}, FinalReportSettings{WindowDays: 5}, nil)
	row := readinessRow() // schedule 2025-02-03

	assertEqual(t, def.Trigger(row, date(2025, time.January, 28)), false, "six days out")
	assertEqual(t, def.Trigger(row, date(2025, time.January, 29)), true, "five days out")
	assertEqual(t, def.Trigger(row, date(2025, time.February, 10)), true, "past schedule")

	row.CustomerSchedule = time.Time{}
	assertEqual(t, def.Trigger(row, date(2025, time.January, 29)), false, "no schedule")
}

func TestFinalReport_MissingVendor(t *testing.T) {
	engine := &MockValidationEngine{}
	def := FinalReportCheckpoint(&MockPolicyStore{}, engine, FinalReportSettings{}, nil)
	row := readinessRow()
	row.Vendor = "   "

	out, err := def.Validate(context.Background(), row, date(2025, time.February, 1))
	assertNoError(t, err, "validate")

	if len(out.Failures) != 1 || out.Failures[0].FailReason != ErrMissingVendorMsg {
		t.Fatalf("expected missing vendor failure, got %+v", out.Failures)
	}
	assertEqual(t, len(engine.Calls), 0, "engine calls")
}

func TestFinalReport_UnknownVendor(t *testing.T) {
	engine := &MockValidationEngine{}
	def := FinalReportCheckpoint(&MockPolicyStore{}, engine, FinalReportSettings{}, nil)
	row := readinessRow()
	row.Vendor = "Globex"

	out, err := def.Validate(context.Background(), row, date(2025, time.February, 1))
	assertNoError(t, err, "validate")

	assertEqual(t, out.Failures[0].FailReason, "No validation rule found for vendor: globex", "reason")
	assertEqual(t, out.Failures[0].Vendor, "Globex", "failure keeps the original vendor")
	if out.Validation != nil {
		t.Error("no validation result expected for unknown vendor")
	}
}

func TestFinalReport_DefaultVendorFallback(t *testing.T) {
	policies := &MockPolicyStore{
		Policies: map[string]types.VendorPolicy{"generic": {VendorKey: "generic"}},
		Default:  "generic",
	}
	engine := &MockValidationEngine{}
	metrics := &recordingMetrics{}
	def := FinalReportCheckpoint(policies, engine, FinalReportSettings{}, metrics)
	row := readinessRow()
	row.Vendor = "Initech"

	out, err := def.Validate(context.Background(), row, date(2025, time.February, 1))
	assertNoError(t, err, "validate")

	assertEqual(t, len(out.Failures), 0, "failures")
	assertEqual(t, len(engine.Calls), 1, "engine calls")
	if len(metrics.validations) != 1 || metrics.validations[0] != "generic" {
		t.Errorf("metrics should be observed under the resolved policy, got %v", metrics.validations)
	}
}

func TestFinalReport_FailedValidation(t *testing.T) {
	policies := &MockPolicyStore{Policies: map[string]types.VendorPolicy{"acme": scenarioPolicy()}}
	engine := &MockValidationEngine{
		ValidateFunc: func(_ context.Context, policy types.VendorPolicy, in ValidationInput) *types.ValidationResult {
			res := types.NewValidationResult(policy.VendorKey, in.ToolNumber, in.ToolColumn, in.Technology, 3)
			res.Steps.Discovery = types.StepOutcome{Status: types.StepFail, Message: "Archives not found - Source: none, Target: none"}
			return res
		},
	}
	def := FinalReportCheckpoint(policies, engine, FinalReportSettings{}, nil)
	row := readinessRow()
	row.Technology = 4

	out, err := def.Validate(context.Background(), row, date(2025, time.February, 1))
	assertNoError(t, err, "validate")

	if out.Validation == nil {
		t.Fatal("validation result should be attached")
	}
	if len(out.Failures) != 1 {
		t.Fatalf("expected one failure, got %d", len(out.Failures))
	}
	reason := out.Failures[0].FailReason
	if !strings.HasPrefix(reason, "Validation failed - archive_discovery: Archives not found") {
		t.Errorf("unexpected reason: %s", reason)
	}
	assertEqual(t, engine.Calls[0], ValidationInput{ToolNumber: "T100", ToolColumn: "Line7", Technology: 4}, "engine input")
	assertEqual(t, policies.PolicyCalls[0], "acme", "vendor key is lower-cased")
}
