package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EmundoT/vendor-qc/internal/types"
)

// Built-in checkpoint names.
const (
	CheckpointPackageReadiness = "Package Readiness"
	CheckpointFinalReport      = "Final Report"
)

// CheckpointOutput is what a checkpoint's Validate produces.
type CheckpointOutput struct {
	Failures   []types.FailureRecord
	Validation *types.ValidationResult
}

// CheckpointDefinition is a named, time-triggered rule evaluated per delivery row.
// Lower priorities run first.
type CheckpointDefinition struct {
	Name     string
	Priority int
	Trigger  func(row types.DeliveryRow, today time.Time) bool
	Validate func(ctx context.Context, row types.DeliveryRow, today time.Time) (CheckpointOutput, error)
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// PackageReadinessCheckpoint fails unless the tool's target directory holds at least
// one direct entry whose name contains the tool number. It triggers once
// cfg.OffsetDays have passed since the Project Start Date.
func PackageReadinessCheckpoint(fs FileSystem, paths types.PathsConfig, cfg PackageReadinessSettings) CheckpointDefinition {
	template := cfg.TargetPathTemplate
	if template == "" {
		template = DefaultTargetPathTemplate
	}

	return CheckpointDefinition{
		Name:     CheckpointPackageReadiness,
		Priority: 1,
		Trigger: func(row types.DeliveryRow, today time.Time) bool {
			if row.ProjectStartDate.IsZero() {
				return false
			}
			due := DateOnly(row.ProjectStartDate).AddDate(0, 0, cfg.OffsetDays)
			return !DateOnly(today).Before(due)
		},
		Validate: func(_ context.Context, row types.DeliveryRow, _ time.Time) (CheckpointOutput, error) {
			dir := Substitute(template, map[string]string{
				PlaceholderTargetRoot: paths.TargetRoot,
				PlaceholderSourceRoot: paths.SourceRoot,
				PlaceholderToolColumn: row.ToolColumn,
				PlaceholderToolNumber: row.ToolNumber,
			})

			names, err := fs.ReadDir(dir)
			if err != nil && !isNotExist(err) {
				return CheckpointOutput{}, fmt.Errorf("list %s: %w", dir, err)
			}
			for _, name := range names {
				if strings.Contains(strings.TrimSuffix(name, "/"), row.ToolNumber) {
					return CheckpointOutput{}, nil
				}
			}
			return CheckpointOutput{
				Failures: []types.FailureRecord{types.NewFailureRecord(row, CheckpointPackageReadiness, ErrPackageNotFoundMsg)},
			}, nil
		},
	}
}

// FinalReportCheckpoint runs the vendor validation once the customer schedule is
// within cfg.WindowDays. Missing and unknown vendors fail without running the engine.
func FinalReportCheckpoint(
	policies PolicyStoreInterface,
	engine ValidationEngineInterface,
	cfg FinalReportSettings,
	metrics MetricsRecorder,
) CheckpointDefinition {
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	return CheckpointDefinition{
		Name:     CheckpointFinalReport,
		Priority: 2,
		Trigger: func(row types.DeliveryRow, today time.Time) bool {
			if row.CustomerSchedule.IsZero() {
				return false
			}
			return DaysBetween(today, row.CustomerSchedule) <= cfg.WindowDays
		},
		Validate: func(ctx context.Context, row types.DeliveryRow, _ time.Time) (CheckpointOutput, error) {
			fail := func(reason string) CheckpointOutput {
				return CheckpointOutput{Failures: []types.FailureRecord{types.NewFailureRecord(row, CheckpointFinalReport, reason)}}
			}

			vendor := strings.ToLower(strings.TrimSpace(row.Vendor))
			if vendor == "" {
				return fail(ErrMissingVendorMsg), nil
			}

			policy, lookup := policies.Policy(vendor)
			if lookup == PolicyNotFound {
				return fail(fmt.Sprintf(ErrNoRuleForVendorMsg, vendor)), nil
			}

			result := engine.Validate(ctx, policy, ValidationInput{
				ToolNumber: row.ToolNumber,
				ToolColumn: row.ToolColumn,
				Technology: row.Technology,
			})
			metrics.ObserveValidation(policy.VendorKey, &ValidationOutcome{
				Success:  result.Success,
				Passed:   result.Statistics.PassCount,
				Failed:   result.Statistics.FailCount,
				Bypassed: result.Statistics.BypassedCount,
			})

			out := CheckpointOutput{Validation: result}
			if !result.Success {
				out.Failures = fail(FormatValidationFailure(result)).Failures
			}
			return out, nil
		},
	}
}

// FormatValidationFailure renders an unsuccessful result as a single failure reason:
// "Validation failed - <step>: <message>, ... (Pass rate: xx.x%)".
func FormatValidationFailure(result *types.ValidationResult) string {
	var failed []string
	for _, s := range result.Steps.Ordered() {
		if s.Outcome.Status == types.StepFail || s.Outcome.Status == types.StepError {
			msg := s.Outcome.Message
			if msg == "" {
				msg = "Failed"
			}
			failed = append(failed, fmt.Sprintf("%s: %s", s.Name, msg))
		}
	}

	reason := ErrValidationFailedMsg
	if len(failed) > 0 {
		reason += " - " + strings.Join(failed, ", ")
	}
	if result.Statistics.TotalPatterns > 0 {
		reason += fmt.Sprintf(" (Pass rate: %.1f%%)", result.Statistics.PassingRate)
	}
	return reason
}
