package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/types"
)

// FailureReport is the JSON document printed by `run --json`.
type FailureReport struct {
	RunID    string                             `json:"run_id"`
	AsOf     string                             `json:"as_of"`
	Failures map[string][]types.FailureRecord   `json:"failures"`
	Summary  types.BatchSummary                 `json:"summary"`
	Vendors  map[string]*types.VendorStatistics `json:"vendor_statistics,omitempty"`
	Details  map[string]*types.ValidationResult `json:"detailed_results,omitempty"`
}

// NewFailureReport projects a batch report onto the failure document.
// Details, keyed by tool number, are included when withDetails is set.
func NewFailureReport(r *types.BatchReport, withDetails bool) FailureReport {
	out := FailureReport{
		RunID:    r.RunID,
		AsOf:     r.AsOf.Format(time.DateOnly),
		Failures: r.Failures,
		Summary:  r.Summary,
		Vendors:  r.Vendors,
	}
	if withDetails {
		out.Details = map[string]*types.ValidationResult{}
		for _, row := range r.Rows {
			for _, c := range row.Checkpoints {
				if c.Validation != nil {
					out.Details[row.Row.ToolNumber] = c.Validation
				}
			}
		}
	}
	return out
}

// FormatBatchReport renders a human-readable batch summary.
func FormatBatchReport(r *types.BatchReport) string {
	var b strings.Builder
	b.WriteString("=== Vendor QC Report ===\n\n")
	fmt.Fprintf(&b, "As of: %s   Rows: %d   Run: %s   Took: %s\n\n",
		r.AsOf.Format(time.DateOnly), r.Summary.TotalTools, r.RunID, r.Duration.Round(time.Millisecond))

	for _, name := range r.Checkpoints {
		failures := r.Failures[name]
		status := "PASS"
		detail := fmt.Sprintf("%d executed", executedCount(r, name))
		if len(failures) > 0 {
			status = "FAIL"
			detail = fmt.Sprintf("%s, %s", detail, pluralize(len(failures), "failure"))
		}
		b.WriteString(formatCheckLine(name, status, detail))
	}

	if failures := r.AllFailures(); len(failures) > 0 {
		b.WriteString("\nFailures:\n")
		b.WriteString(failureTable(failures))
		b.WriteString("\n")
	}

	if len(r.Vendors) > 0 {
		b.WriteString("\nVendors:\n")
		b.WriteString(vendorTable(r.Vendors))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nResult: %s (%d passed, %d failed)\n", r.Summary.Result, r.Summary.Successes, r.Summary.Failures)
	return b.String()
}

func executedCount(r *types.BatchReport, checkpoint string) int {
	n := 0
	for _, row := range r.Rows {
		for _, c := range row.Checkpoints {
			if c.Checkpoint == checkpoint && c.Executed {
				n++
			}
		}
	}
	return n
}

func failureTable(failures []types.FailureRecord) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Checkpoint", "Tool", "Project", "Vendor", "Responsible", "Reason"})
	for _, f := range failures {
		tbl.AppendRow(table.Row{f.Checkpoint, f.ToolNumber, f.Project, f.Vendor, f.ResponsibleUser, f.FailReason})
	}
	return tbl.Render()
}

func vendorTable(vendors map[string]*types.VendorStatistics) string {
	names := make([]string, 0, len(vendors))
	for v := range vendors {
		names = append(names, v)
	}
	sort.Strings(names)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Vendor", "Tools", "Passed", "Failed", "Validated", "Patterns", "Bypassed", "Pass rate", "Common failures"})
	for _, name := range names {
		v := vendors[name]
		tbl.AppendRow(table.Row{
			v.Vendor,
			v.TotalTools,
			v.Successes,
			v.Failures,
			v.ValidatedTools,
			fmt.Sprintf("%d/%d", v.Patterns.Passed, v.Patterns.Checked),
			v.Patterns.Bypassed,
			fmt.Sprintf("%.1f%%", v.Patterns.AveragePassingRate),
			commonFailures(v.CommonFailures),
		})
	}
	return tbl.Render()
}

// commonFailures lists patterns by descending failure count.
func commonFailures(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s (%d)", k, m[k])
	}
	return strings.Join(parts, ", ")
}

// FormatEntriesTable renders archive entries with human-readable sizes.
func FormatEntriesTable(entries []archive.Entry) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Path", "Size"})
	var total int64
	for _, e := range entries {
		tbl.AppendRow(table.Row{e.Path, humanize.IBytes(uint64(e.Size))})
		total += e.Size
	}
	tbl.AppendFooter(table.Row{pluralize(len(entries), "entry"), humanize.IBytes(uint64(total))})
	return tbl.Render()
}

// FormatArchiveInfo renders archive totals.
func FormatArchiveInfo(info archive.Info) string {
	return fmt.Sprintf("%s: %s files, %s uncompressed, %s on disk\n",
		info.Path,
		humanize.Comma(int64(info.FileCount)),
		humanize.IBytes(uint64(info.TotalSize)),
		humanize.IBytes(uint64(info.ArchiveSize)))
}

// FormatValidationResult renders the step outcomes and pattern results of one validation.
func FormatValidationResult(res *types.ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s / %s (%s)\n", res.ToolNumber, res.ToolColumn, res.Vendor)
	for _, s := range res.Steps.Ordered() {
		b.WriteString(formatCheckLine(s.Name, string(s.Outcome.Status), s.Outcome.Message))
	}
	if len(res.PatternResults) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Pattern", "Status", "Files", "Note"})
		for _, p := range res.PatternResults {
			note := p.BypassReason
			if p.Error != "" {
				note = p.Error
			}
			tbl.AppendRow(table.Row{p.ResolvedPattern, p.Status, p.FileCount, note})
		}
		b.WriteString(tbl.Render())
		b.WriteString("\n")
	}
	return b.String()
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	return tbl
}

// formatCheckLine produces a dotted-line format: "  Name ........... STATUS (detail)".
func formatCheckLine(name, status, detail string) string {
	dots := 24 - len(name)
	if dots < 3 {
		dots = 3
	}
	line := fmt.Sprintf("  %s %s %s", name, strings.Repeat(".", dots), status)
	if detail != "" {
		line += " (" + detail + ")"
	}
	return line + "\n"
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
