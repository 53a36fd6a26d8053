package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/types"
)

// ValidationInput identifies the delivery being validated.
type ValidationInput struct {
	ToolNumber string
	ToolColumn string
	Technology int
}

// ArchiveComparer compares the unique entry with an extension in two archives.
type ArchiveComparer interface {
	Compare(sourcePath, targetPath, extension string) archive.CompareResult
}

// ValidationEngineInterface defines the contract for the five-step delivery validation.
type ValidationEngineInterface interface {
	// Validate runs discovery, target existence, consistency, bypass resolution and
	// pattern validation in that order. It never returns an error: every problem is
	// recorded in the result's step outcomes.
	Validate(ctx context.Context, policy types.VendorPolicy, in ValidationInput) *types.ValidationResult
}

// Compile-time interface satisfaction check for ValidationEngine.
var _ ValidationEngineInterface = (*ValidationEngine)(nil)

// ValidationEngine executes the validation protocol for one vendor policy.
type ValidationEngine struct {
	locator    ArchiveLocator
	comparer   ArchiveComparer
	patterns   *PatternCache
	paths      types.PathsConfig
	logger     *slog.Logger
	readerOpts []archive.Option
}

// NewValidationEngine creates an engine with injected collaborators. paths supplies
// the {source_root} and {target_root} substitutions and the discovery walk roots.
func NewValidationEngine(
	locator ArchiveLocator,
	comparer ArchiveComparer,
	patterns *PatternCache,
	paths types.PathsConfig,
	logger *slog.Logger,
	readerOpts ...archive.Option,
) *ValidationEngine {
	if patterns == nil {
		patterns = NewPatternCache()
	}
	if logger == nil {
		logger = DiscardLogger()
	}
	return &ValidationEngine{
		locator:    locator,
		comparer:   comparer,
		patterns:   patterns,
		paths:      paths,
		logger:     logger,
		readerOpts: readerOpts,
	}
}

// Validate implements ValidationEngineInterface.
func (e *ValidationEngine) Validate(ctx context.Context, policy types.VendorPolicy, in ValidationInput) *types.ValidationResult {
	res := types.NewValidationResult(policy.VendorKey, in.ToolNumber, in.ToolColumn, in.Technology, len(policy.RequiredPatterns))
	log := e.logger.With("tool", in.ToolNumber, "vendor", policy.VendorKey)

	// Step 1: archive discovery.
	var sourceArchive, targetArchive string
	res.Steps.Discovery = e.runStep(ctx, log, types.StepNameDiscovery, func() (types.StepOutcome, error) {
		var err error
		sourceArchive, targetArchive, err = e.discover(policy, in, res)
		if err != nil {
			return types.StepOutcome{}, err
		}
		if sourceArchive == "" || targetArchive == "" {
			return types.StepOutcome{
				Status:  types.StepFail,
				Message: fmt.Sprintf("Archives not found - Source: %s, Target: %s", orNone(sourceArchive), orNone(targetArchive)),
			}, nil
		}
		return types.StepOutcome{
			Status:  types.StepPass,
			Message: fmt.Sprintf("Archives found - Source: %s, Target: %s", filepath.Base(sourceArchive), filepath.Base(targetArchive)),
		}, nil
	})
	if res.Steps.Discovery.Status != types.StepPass {
		return finish(res)
	}

	// Step 2: target existence is implied by discovery
	res.Steps.TargetExists = types.StepOutcome{
		Status:  types.StepPass,
		Message: fmt.Sprintf("Target archive exists: %s", targetArchive),
	}
	log.Debug("validation step", "step", types.StepNameTargetExists, "status", res.Steps.TargetExists.Status)

	// Step 3: consistency
	res.Steps.Consistency = e.runStep(ctx, log, types.StepNameConsistency, func() (types.StepOutcome, error) {
		return e.checkConsistency(policy, sourceArchive, targetArchive), nil
	})
	if s := res.Steps.Consistency.Status; s != types.StepPass && s != types.StepSkipped {
		return finish(res)
	}

	// Step 4: bypass resolution.
	var checked, bypassed []string
	res.Steps.Bypass = e.runStep(ctx, log, types.StepNameBypass, func() (types.StepOutcome, error) {
		checked, bypassed = PartitionPatterns(policy, in.ToolNumber, in.Technology)
		return types.StepOutcome{
			Status:  types.StepPass,
			Message: fmt.Sprintf("Bypassed %d patterns based on technology value %d", len(bypassed), in.Technology),
		}, nil
	})
	if res.Steps.Bypass.Status != types.StepPass {
		return finish(res)
	}

	// Step 5: pattern validation
	res.Steps.PatternValidation = e.runStep(ctx, log, types.StepNamePatternValidation, func() (types.StepOutcome, error) {
		return e.validatePatterns(ctx, policy, in, targetArchive, checked, bypassed, res)
	})
	if res.Steps.PatternValidation.Status == types.StepError {
		failAllPatterns(res, policy, in, checked, bypassed, res.Steps.PatternValidation.Message)
	}

	return finish(res)
}

// runStep executes fn, turning errors, panics and context cancellation into an ERROR outcome.
func (e *ValidationEngine) runStep(ctx context.Context, log *slog.Logger, name string, fn func() (types.StepOutcome, error)) (out types.StepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = errorOutcome(name, fmt.Errorf("panic: %v", r))
		}
		log.Debug("validation step", "step", name, "status", out.Status)
	}()

	if err := ctx.Err(); err != nil {
		return errorOutcome(name, err)
	}
	o, err := fn()
	if err != nil {
		return errorOutcome(name, err)
	}
	return o
}

func errorOutcome(step string, err error) types.StepOutcome {
	stepErr := &ValidationStepError{Step: step, Err: err}
	return types.StepOutcome{Status: types.StepError, Message: stepErr.Error()}
}

func (e *ValidationEngine) discover(policy types.VendorPolicy, in ValidationInput, res *types.ValidationResult) (string, string, error) {
	subs := map[string]string{
		PlaceholderToolNumber: in.ToolNumber,
		PlaceholderToolColumn: in.ToolColumn,
		PlaceholderSourceRoot: e.paths.SourceRoot,
		PlaceholderTargetRoot: e.paths.TargetRoot,
	}

	source, ok, err := e.locator.Resolve(e.paths.SourceRoot, policy.SourceArchiveRegex, subs)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve source archive for vendor %s: %w", policy.VendorKey, err)
	}
	if ok {
		res.Paths.SourceArchive = &source
	}

	target, ok, err := e.locator.Resolve(e.paths.TargetRoot, policy.TargetArchiveRegex, subs)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve target archive for vendor %s: %w", policy.VendorKey, err)
	}
	if ok {
		res.Paths.TargetArchive = &target
	}

	return source, target, nil
}

func (e *ValidationEngine) checkConsistency(policy types.VendorPolicy, source, target string) types.StepOutcome {
	if !policy.ConsistencyEnabled {
		return types.StepOutcome{Status: types.StepSkipped, Message: "File consistency check disabled"}
	}

	ext := strings.TrimPrefix(archive.NormalizeExtension(policy.ConsistencyExtension), ".")
	cmp := e.comparer.Compare(source, target, policy.ConsistencyExtension)
	if cmp.Success {
		return types.StepOutcome{
			Status:  types.StepPass,
			Message: fmt.Sprintf(".%s files are identical between source and target", ext),
		}
	}
	return types.StepOutcome{
		Status:  types.StepFail,
		Message: fmt.Sprintf(".%s file consistency check failed: %s", ext, cmp.Message),
	}
}

// PartitionPatterns splits the policy's required patterns into checked and bypassed.
// A pattern is bypassed iff technology exceeds the threshold and the pattern, after
// {tool_number} substitution, ends with one of the bypass suffixes. Both slices keep
// the configured order and together always hold every required pattern.
func PartitionPatterns(policy types.VendorPolicy, toolNumber string, technology int) (checked, bypassed []string) {
	subs := map[string]string{PlaceholderToolNumber: toolNumber}
	for _, p := range policy.RequiredPatterns {
		if technology > policy.BypassThreshold && hasAnySuffix(Substitute(p, subs), policy.BypassSuffixes) {
			bypassed = append(bypassed, p)
			continue
		}
		checked = append(checked, p)
	}
	return checked, bypassed
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if suf != "" && strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func (e *ValidationEngine) validatePatterns(
	ctx context.Context,
	policy types.VendorPolicy,
	in ValidationInput,
	targetArchive string,
	checked, bypassed []string,
	res *types.ValidationResult,
) (types.StepOutcome, error) {
	reader, err := archive.Open(targetArchive, e.readerOpts...)
	if err != nil {
		return types.StepOutcome{}, err
	}
	entries, err := archive.Collect(reader.Entries())
	if err != nil {
		return types.StepOutcome{}, err
	}

	subs := map[string]string{PlaceholderToolNumber: in.ToolNumber}
	results := make([]types.PatternResult, 0, len(checked)+len(bypassed))
	var pass, fail int

	for _, p := range checked {
		if err := ctx.Err(); err != nil {
			return types.StepOutcome{}, err
		}
		pr := types.PatternResult{Pattern: p, ResolvedPattern: Substitute(p, subs), Matches: []string{}}

		re, err := e.patterns.Compile(p, subs)
		if err != nil {
			pr.Status = types.PatternFail
			pr.Error = err.Error()
			fail++
			results = append(results, pr)
			continue
		}

		for _, entry := range entries {
			if entry.Size > 0 && re.MatchString(entry.Path) {
				pr.Matches = append(pr.Matches, entry.Path)
			}
		}
		pr.FileCount = len(pr.Matches)
		if pr.FileCount > 0 {
			pr.Status = types.PatternPass
			pass++
		} else {
			pr.Status = types.PatternFail
			fail++
		}
		results = append(results, pr)
	}

	res.PatternResults = append(results, bypassedResults(policy, in, bypassed)...)
	res.Statistics = computeStatistics(pass, fail, len(bypassed), len(policy.RequiredPatterns))

	status := types.StepPass
	if fail > 0 {
		status = types.StepFail
	}
	return types.StepOutcome{
		Status:  status,
		Message: fmt.Sprintf("Pattern validation: %d/%d patterns passed", pass, len(checked)),
	}, nil
}

// failAllPatterns records every checked pattern as FAIL with msg after an archive read error.
func failAllPatterns(res *types.ValidationResult, policy types.VendorPolicy, in ValidationInput, checked, bypassed []string, msg string) {
	subs := map[string]string{PlaceholderToolNumber: in.ToolNumber}
	results := make([]types.PatternResult, 0, len(checked)+len(bypassed))
	for _, p := range checked {
		results = append(results, types.PatternResult{
			Pattern:         p,
			ResolvedPattern: Substitute(p, subs),
			Status:          types.PatternFail,
			Matches:         []string{},
			Error:           msg,
		})
	}
	res.PatternResults = append(results, bypassedResults(policy, in, bypassed)...)
	res.Statistics = computeStatistics(0, len(checked), len(bypassed), len(policy.RequiredPatterns))
}

func bypassedResults(policy types.VendorPolicy, in ValidationInput, bypassed []string) []types.PatternResult {
	subs := map[string]string{PlaceholderToolNumber: in.ToolNumber}
	out := make([]types.PatternResult, 0, len(bypassed))
	for _, p := range bypassed {
		out = append(out, types.PatternResult{
			Pattern:         p,
			ResolvedPattern: Substitute(p, subs),
			Status:          types.PatternBypassed,
			Matches:         []string{},
			BypassReason:    fmt.Sprintf("Technology %d > %d", in.Technology, policy.BypassThreshold),
		})
	}
	return out
}

// computeStatistics derives the pattern statistics. The passing rate is 100.0 when
// nothing was checked.
func computeStatistics(pass, fail, bypassed, total int) types.ValidationStatistics {
	checked := pass + fail
	rate := 100.0
	if checked > 0 {
		rate = float64(pass) / float64(checked) * 100
	}
	return types.ValidationStatistics{
		PassCount:       pass,
		FailCount:       fail,
		BypassedCount:   bypassed,
		CheckedPatterns: checked,
		TotalPatterns:   total,
		PassingRate:     rate,
	}
}

func finish(res *types.ValidationResult) *types.ValidationResult {
	s := res.Steps
	res.Success = s.Discovery.Status == types.StepPass &&
		s.TargetExists.Status == types.StepPass &&
		(s.Consistency.Status == types.StepPass || s.Consistency.Status == types.StepSkipped) &&
		s.PatternValidation.Status == types.StepPass &&
		res.Statistics.FailCount == 0
	return res
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
