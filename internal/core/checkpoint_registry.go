package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EmundoT/vendor-qc/internal/types"
)

// CheckpointCancelled labels failures for rows never evaluated because the batch was cancelled.
const CheckpointCancelled = "Cancelled"

const tracerName = "github.com/EmundoT/vendor-qc/internal/core"

// CheckpointRegistryInterface defines the contract for ordering and running checkpoints.
type CheckpointRegistryInterface interface {
	Register(def CheckpointDefinition) error
	Unregister(name string) bool
	List() []CheckpointDefinition
	Names() []string
	Clear()
	Run(ctx context.Context, def CheckpointDefinition, row types.DeliveryRow, today time.Time) types.CheckpointRunResult
	RunAll(ctx context.Context, row types.DeliveryRow, today time.Time) types.RowRunResult
}

// Compile-time interface satisfaction check.
var _ CheckpointRegistryInterface = (*CheckpointRegistry)(nil)

// CheckpointRegistry keeps checkpoints sorted by ascending priority.
// Equal priorities keep registration order.
type CheckpointRegistry struct {
	mu      sync.RWMutex
	defs    []CheckpointDefinition
	logger  *slog.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// NewCheckpointRegistry creates an empty registry.
func NewCheckpointRegistry(logger *slog.Logger, metrics MetricsRecorder) *CheckpointRegistry {
	if logger == nil {
		logger = DiscardLogger()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &CheckpointRegistry{
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// DefaultCheckpointDeps are the collaborators of the built-in checkpoints.
type DefaultCheckpointDeps struct {
	FileSystem FileSystem
	Policies   PolicyStoreInterface
	Engine     ValidationEngineInterface
	Settings   CheckpointSettings
	Metrics    MetricsRecorder
}

// RegisterDefaults registers Package Readiness and Final Report.
func (r *CheckpointRegistry) RegisterDefaults(deps DefaultCheckpointDeps) error {
	fs := deps.FileSystem
	if fs == nil {
		fs = NewOSFileSystem()
	}
	if err := r.Register(PackageReadinessCheckpoint(fs, deps.Policies.Paths(), deps.Settings.PackageReadiness)); err != nil {
		return err
	}
	return r.Register(FinalReportCheckpoint(deps.Policies, deps.Engine, deps.Settings.FinalReport, deps.Metrics))
}

// Register inserts def after every checkpoint whose priority is <= def.Priority.
func (r *CheckpointRegistry) Register(def CheckpointDefinition) error {
	if def.Name == "" {
		return errors.New("checkpoint name must not be empty")
	}
	if def.Trigger == nil || def.Validate == nil {
		return fmt.Errorf("checkpoint %q: trigger and validate are required", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.defs {
		if d.Name == def.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateCheckpoint, def.Name)
		}
	}

	i := sort.Search(len(r.defs), func(i int) bool { return r.defs[i].Priority > def.Priority })
	r.defs = append(r.defs, CheckpointDefinition{})
	copy(r.defs[i+1:], r.defs[i:])
	r.defs[i] = def
	return nil
}

// Unregister removes the named checkpoint. It reports whether one was removed.
func (r *CheckpointRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, d := range r.defs {
		if d.Name == name {
			r.defs = append(r.defs[:i], r.defs[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the registered checkpoints in run order.
func (r *CheckpointRegistry) List() []CheckpointDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CheckpointDefinition(nil), r.defs...)
}

// Names returns the checkpoint names in run order.
func (r *CheckpointRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Clear removes every checkpoint.
func (r *CheckpointRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = nil
}

// Run evaluates one checkpoint for one row. A checkpoint whose trigger is false
// is reported as not executed and successful. Errors and panics from the trigger
// or validation become a single failure record.
func (r *CheckpointRegistry) Run(ctx context.Context, def CheckpointDefinition, row types.DeliveryRow, today time.Time) (res types.CheckpointRunResult) {
	ctx, span := r.tracer.Start(ctx, "checkpoint.run", trace.WithAttributes(
		attribute.String("checkpoint.name", def.Name),
		attribute.String("tool.number", row.ToolNumber),
		attribute.String("tool.vendor", row.Vendor),
	))
	start := time.Now()

	res = types.CheckpointRunResult{
		Checkpoint: def.Name,
		ToolNumber: row.ToolNumber,
		Success:    true,
		Failures:   []types.FailureRecord{},
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = r.execError(def, row, res.Executed, fmt.Errorf("panic: %v", rec))
		}
		res.Elapsed = time.Since(start)
		r.metrics.ObserveCheckpoint(def.Name, res.Executed, res.Success, res.Elapsed)

		span.SetAttributes(
			attribute.Bool("checkpoint.executed", res.Executed),
			attribute.Int("checkpoint.failures", len(res.Failures)),
		)
		if !res.Success {
			span.SetStatus(codes.Error, "checkpoint failed")
		}
		span.End()
	}()

	if !def.Trigger(row, today) {
		r.logger.Debug("checkpoint not triggered", "checkpoint", def.Name, "tool", row.ToolNumber)
		return res
	}
	res.Executed = true

	out, err := def.Validate(ctx, row, today)
	if err != nil {
		span.RecordError(err)
		return r.execError(def, row, true, err)
	}

	if out.Failures != nil {
		res.Failures = out.Failures
	}
	res.Validation = out.Validation
	res.Success = len(res.Failures) == 0

	r.logger.Debug("checkpoint evaluated",
		"checkpoint", def.Name,
		"tool", row.ToolNumber,
		"success", res.Success,
		"failures", len(res.Failures))
	return res
}

func (r *CheckpointRegistry) execError(def CheckpointDefinition, row types.DeliveryRow, executed bool, err error) types.CheckpointRunResult {
	r.logger.Error("checkpoint execution error", "checkpoint", def.Name, "tool", row.ToolNumber, "error", err)
	reason := fmt.Sprintf(ErrCheckpointExecMsg, def.Name, err)
	return types.CheckpointRunResult{
		Checkpoint: def.Name,
		ToolNumber: row.ToolNumber,
		Executed:   executed,
		Success:    false,
		Failures:   []types.FailureRecord{types.NewFailureRecord(row, def.Name, reason)},
	}
}

// RunAll evaluates every registered checkpoint for row, in priority order.
func (r *CheckpointRegistry) RunAll(ctx context.Context, row types.DeliveryRow, today time.Time) types.RowRunResult {
	defs := r.List()

	out := types.RowRunResult{
		Row:            row,
		AsOf:           today,
		Checkpoints:    make([]types.CheckpointRunResult, 0, len(defs)),
		OverallSuccess: true,
	}
	for _, def := range defs {
		res := r.Run(ctx, def, row, today)
		out.Checkpoints = append(out.Checkpoints, res)
		if res.Executed {
			out.ExecutedCount++
		}
		if !res.Success {
			out.OverallSuccess = false
		}
		out.TotalFailureCount += len(res.Failures)
	}
	return out
}
