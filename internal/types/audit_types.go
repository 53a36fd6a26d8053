package types

import "time"

// CheckpointRunResult is the outcome of one checkpoint for one row.
type CheckpointRunResult struct {
	Checkpoint string            `json:"checkpoint"`
	ToolNumber string            `json:"tool_number"`
	Executed   bool              `json:"executed"`
	Success    bool              `json:"success"`
	Failures   []FailureRecord   `json:"failures"`
	Elapsed    time.Duration     `json:"elapsed_ns"`
	Validation *ValidationResult `json:"detailed_result,omitempty"`
}

// RowRunResult aggregates every checkpoint evaluated for one row.
type RowRunResult struct {
	Row               DeliveryRow           `json:"row"`
	AsOf              time.Time             `json:"execution_timestamp"`
	Checkpoints       []CheckpointRunResult `json:"checkpoints"`
	ExecutedCount     int                   `json:"executed_checkpoints"`
	OverallSuccess    bool                  `json:"overall_success"`
	TotalFailureCount int                   `json:"total_failures"`
}

// Failures returns every failure in checkpoint order.
func (r RowRunResult) Failures() []FailureRecord {
	var out []FailureRecord
	for _, c := range r.Checkpoints {
		out = append(out, c.Failures...)
	}
	return out
}

// PatternStatistics totals pattern outcomes across validations.
type PatternStatistics struct {
	Checked            int     `json:"total_patterns_checked"`
	Passed             int     `json:"total_patterns_passed"`
	Failed             int     `json:"total_patterns_failed"`
	Bypassed           int     `json:"total_patterns_bypassed"`
	AveragePassingRate float64 `json:"average_passing_rate"`
}

// VendorStatistics aggregates results for one vendor key.
type VendorStatistics struct {
	Vendor         string            `json:"vendor"`
	TotalTools     int               `json:"total_tools"`
	Successes      int               `json:"successes"`
	Failures       int               `json:"failures"`
	ValidatedTools int               `json:"enhanced_validations"`
	Patterns       PatternStatistics `json:"pattern_statistics"`
	CommonFailures map[string]int    `json:"common_failures"`
}

// BatchSummary holds batch-wide counters.
type BatchSummary struct {
	Result             string            `json:"result"` // "PASS" or "FAIL"
	TotalTools         int               `json:"total_tools"`
	Successes          int               `json:"total_successes"`
	Failures           int               `json:"total_failures"`
	FailureRecords     int               `json:"failure_records"`
	ExecutedCheckpoint int               `json:"executed_checkpoints"`
	Patterns           PatternStatistics `json:"pattern_statistics"`
}

// BatchReport is the result of evaluating every row of a batch.
type BatchReport struct {
	SchemaVersion string                       `json:"schema_version"`
	RunID         string                       `json:"run_id"`
	AsOf          time.Time                    `json:"as_of"`
	StartedAt     time.Time                    `json:"started_at"`
	Duration      time.Duration                `json:"duration_ns"`
	Checkpoints   []string                     `json:"checkpoints"`
	Rows          []RowRunResult               `json:"tool_results"`
	Vendors       map[string]*VendorStatistics `json:"vendor_statistics"`
	Failures      map[string][]FailureRecord   `json:"failures"`
	Summary       BatchSummary                 `json:"summary"`
}

// AllFailures flattens Failures in checkpoint order.
func (b *BatchReport) AllFailures() []FailureRecord {
	var out []FailureRecord
	for _, name := range b.Checkpoints {
		out = append(out, b.Failures[name]...)
	}
	return out
}

// Batch result constants for BatchSummary.Result.
const (
	BatchResultPass = "PASS"
	BatchResultFail = "FAIL"
)
