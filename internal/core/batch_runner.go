package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EmundoT/vendor-qc/internal/types"
)

// ReportSchemaVersion is the version of the BatchReport JSON layout.
const ReportSchemaVersion = "1.0"

// UnknownVendor is the statistics key for rows without a vendor.
const UnknownVendor = "Unknown"

// BatchRunnerInterface evaluates a batch of delivery rows.
type BatchRunnerInterface interface {
	Run(ctx context.Context, rows []types.DeliveryRow, asOf time.Time) *types.BatchReport
}

// Compile-time interface satisfaction check.
var _ BatchRunnerInterface = (*BatchRunner)(nil)

// BatchRunner runs the checkpoint registry over every row and aggregates the results.
type BatchRunner struct {
	registry CheckpointRegistryInterface
	executor *ParallelExecutor
	logger   *slog.Logger
	metrics  MetricsRecorder
	progress ProgressTracker
	now      func() time.Time
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithProgress reports one increment per finished row.
func WithProgress(p ProgressTracker) BatchOption {
	return func(b *BatchRunner) {
		if p != nil {
			b.progress = p
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) BatchOption {
	return func(b *BatchRunner) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithClock overrides the wall clock used for StartedAt and Duration.
func WithClock(now func() time.Time) BatchOption {
	return func(b *BatchRunner) { b.now = now }
}

// NewBatchRunner creates a batch runner.
func NewBatchRunner(registry CheckpointRegistryInterface, executor *ParallelExecutor, logger *slog.Logger, opts ...BatchOption) *BatchRunner {
	if executor == nil {
		executor = NewParallelExecutor(0)
	}
	if logger == nil {
		logger = DiscardLogger()
	}
	b := &BatchRunner{
		registry: registry,
		executor: executor,
		logger:   logger,
		metrics:  NoopMetrics{},
		progress: noopProgress{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run evaluates every row against every checkpoint as of asOf (date precision).
// Row results keep input order.
func (b *BatchRunner) Run(ctx context.Context, rows []types.DeliveryRow, asOf time.Time) *types.BatchReport {
	started := b.now()
	today := DateOnly(asOf)
	names := b.registry.Names()

	b.logger.Info("batch started", "rows", len(rows), "as_of", today.Format(time.DateOnly), "checkpoints", len(names))
	b.progress.SetTotal(len(rows))

	results := b.executor.ExecuteRows(ctx, rows, today, b.registry.RunAll, func(r types.RowRunResult) {
		b.progress.Increment(r.Row.ToolNumber)
	})

	report := Aggregate(results, names)
	report.SchemaVersion = ReportSchemaVersion
	report.RunID = uuid.NewString()
	report.AsOf = today
	report.StartedAt = started
	report.Duration = b.now().Sub(started)

	if err := ctx.Err(); err != nil {
		b.progress.Fail(err)
	} else {
		b.progress.Complete()
	}
	b.metrics.ObserveBatch(len(rows), report.Duration)

	b.logger.Info("batch finished",
		"run_id", report.RunID,
		"result", report.Summary.Result,
		"successes", report.Summary.Successes,
		"failures", report.Summary.Failures,
		"duration", report.Duration)
	return report
}

// Aggregate builds a report (without run metadata) from ordered row results.
// Failures has one key per checkpoint name, even when empty.
func Aggregate(results []types.RowRunResult, checkpoints []string) *types.BatchReport {
	report := &types.BatchReport{
		Checkpoints: append([]string(nil), checkpoints...),
		Rows:        results,
		Vendors:     map[string]*types.VendorStatistics{},
		Failures:    make(map[string][]types.FailureRecord, len(checkpoints)),
	}
	for _, name := range checkpoints {
		report.Failures[name] = []types.FailureRecord{}
	}

	sum := &report.Summary
	sum.TotalTools = len(results)

	for _, r := range results {
		vendor := strings.TrimSpace(r.Row.Vendor)
		if vendor == "" {
			vendor = UnknownVendor
		}
		vs, ok := report.Vendors[vendor]
		if !ok {
			vs = &types.VendorStatistics{Vendor: vendor, CommonFailures: map[string]int{}}
			report.Vendors[vendor] = vs
		}
		vs.TotalTools++

		if r.OverallSuccess {
			sum.Successes++
			vs.Successes++
		} else {
			sum.Failures++
			vs.Failures++
		}
		sum.ExecutedCheckpoint += r.ExecutedCount

		validated := false
		for _, c := range r.Checkpoints {
			if _, known := report.Failures[c.Checkpoint]; !known {
				report.Checkpoints = append(report.Checkpoints, c.Checkpoint)
				report.Failures[c.Checkpoint] = []types.FailureRecord{}
			}
			report.Failures[c.Checkpoint] = append(report.Failures[c.Checkpoint], c.Failures...)
			sum.FailureRecords += len(c.Failures)

			v := c.Validation
			if v == nil {
				continue
			}
			validated = true
			addPatternStats(&vs.Patterns, v.Statistics)
			addPatternStats(&sum.Patterns, v.Statistics)
			for _, p := range v.PatternResults {
				if p.Status == types.PatternFail {
					vs.CommonFailures[p.Pattern]++
				}
			}
		}
		if validated {
			vs.ValidatedTools++
		}
	}

	for _, vs := range report.Vendors {
		finishPatternStats(&vs.Patterns)
	}
	finishPatternStats(&sum.Patterns)

	sum.Result = types.BatchResultPass
	if sum.Failures > 0 {
		sum.Result = types.BatchResultFail
	}
	return report
}

func addPatternStats(p *types.PatternStatistics, s types.ValidationStatistics) {
	p.Checked += s.CheckedPatterns
	p.Passed += s.PassCount
	p.Failed += s.FailCount
	p.Bypassed += s.BypassedCount
}

func finishPatternStats(p *types.PatternStatistics) {
	if p.Checked > 0 {
		p.AveragePassingRate = float64(p.Passed) / float64(p.Checked) * 100
	}
}
