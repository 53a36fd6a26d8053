package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/types"
)

func sampleReport() *types.BatchReport {
	failure := types.FailureRecord{
		ToolNumber:      "T2",
		Project:         "Line7",
		Vendor:          "acme",
		FailReason:      ErrPackageNotFoundMsg,
		ResponsibleUser: "kim",
		Checkpoint:      CheckpointPackageReadiness,
	}
	validation := validationWith(2, 0, 1)
	results := []types.RowRunResult{
		{
			Row:            types.DeliveryRow{ToolNumber: "T1", Vendor: "acme"},
			ExecutedCount:  2,
			OverallSuccess: true,
			Checkpoints: []types.CheckpointRunResult{
				{Checkpoint: CheckpointPackageReadiness, Executed: true, Success: true},
				{Checkpoint: CheckpointFinalReport, Executed: true, Success: true, Validation: validation},
			},
		},
		{
			Row:           types.DeliveryRow{ToolNumber: "T2", Vendor: "acme"},
			ExecutedCount: 1,
			Checkpoints: []types.CheckpointRunResult{
				{Checkpoint: CheckpointPackageReadiness, Executed: true, Failures: []types.FailureRecord{failure}},
				{Checkpoint: CheckpointFinalReport, Success: true},
			},
			TotalFailureCount: 1,
		},
	}
	report := Aggregate(results, []string{CheckpointPackageReadiness, CheckpointFinalReport})
	report.RunID = "run-1"
	report.AsOf = date(2025, time.March, 3)
	report.Duration = 1500 * time.Millisecond
	return report
}

func TestFormatBatchReport(t *testing.T) {
	out := FormatBatchReport(sampleReport())

	for _, want := range []string{
		"=== Vendor QC Report ===",
		"As of: 2025-03-03",
		"Package Readiness",
		"FAIL (2 executed, 1 failure)",
		"Final Report",
		"PASS (1 executed)",
		"Failures:",
		"Package not found",
		"kim",
		"Vendors:",
		"Result: FAIL (1 passed, 1 failed)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestFormatBatchReport_NoFailures(t *testing.T) {
	report := Aggregate(nil, []string{CheckpointFinalReport})
	out := FormatBatchReport(report)

	if strings.Contains(out, "Failures:") {
		t.Error("failures table should be omitted when there are none")
	}
	if !strings.Contains(out, "Result: PASS (0 passed, 0 failed)") {
		t.Errorf("unexpected verdict:\n%s", out)
	}
}

func TestNewFailureReport(t *testing.T) {
	report := sampleReport()

	plain := NewFailureReport(report, false)
	assertEqual(t, plain.AsOf, "2025-03-03", "as of")
	if plain.Details != nil {
		t.Error("details should be omitted unless requested")
	}

	detailed := NewFailureReport(report, true)
	if detailed.Details["T1"] == nil {
		t.Error("expected validation details for T1")
	}
	if _, ok := detailed.Details["T2"]; ok {
		t.Error("rows without a validation should not appear in details")
	}

	var buf bytes.Buffer
	assertNoError(t, WriteCLISuccess(&buf, plain), "write json")
	var decoded struct {
		Success bool `json:"success"`
		Data    struct {
			Failures map[string][]types.FailureRecord `json:"failures"`
		} `json:"data"`
	}
	assertNoError(t, json.Unmarshal(buf.Bytes(), &decoded), "decode")
	assertEqual(t, decoded.Success, true, "success")
	assertEqual(t, len(decoded.Data.Failures[CheckpointPackageReadiness]), 1, "decoded failures")
	if _, ok := decoded.Data.Failures[CheckpointFinalReport]; !ok {
		t.Error("checkpoints without failures must still be present")
	}
}

func TestFormatEntriesTable(t *testing.T) {
	out := FormatEntriesTable([]archive.Entry{
		{Path: "docs/Report_T1.xlsx", Name: "Report_T1.xlsx", Size: 2048},
		{Path: "T1.rctl", Name: "T1.rctl", Size: 10},
	})

	for _, want := range []string{"docs/Report_T1.xlsx", "2.0 KiB", "10 B", "2 ENTRIES"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatValidationResult(t *testing.T) {
	res := validationWith(1, 1, 0)
	res.Steps.Discovery = types.StepOutcome{Status: types.StepPass, Message: "Archives found - Source: a, Target: b"}
	res.PatternResults = []types.PatternResult{
		{ResolvedPattern: `Report_T\.xlsx$`, Status: types.PatternPass, FileCount: 1},
		{ResolvedPattern: `Config_T\.aaa$`, Status: types.PatternBypassed, BypassReason: "Technology 7 > 5"},
	}

	out := FormatValidationResult(res)
	for _, want := range []string{"archive_discovery", "Archives found", "Technology 7 > 5", "BYPASSED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCheckLine(t *testing.T) {
	got := formatCheckLine("Final Report", "PASS", "")
	want := "  Final Report " + strings.Repeat(".", 12) + " PASS\n"
	assertEqual(t, got, want, "short name")

	got = formatCheckLine(strings.Repeat("x", 30), "FAIL", "why")
	if !strings.Contains(got, " ... FAIL (why)") {
		t.Errorf("long names keep a minimum of three dots, got %q", got)
	}
}

func TestPluralize(t *testing.T) {
	assertEqual(t, pluralize(1, "failure"), "1 failure", "singular")
	assertEqual(t, pluralize(3, "failure"), "3 failures", "plural")
	assertEqual(t, pluralize(0, "entry"), "0 entries", "y plural")
}
