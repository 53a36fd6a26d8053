package types

// StepStatus is the outcome of one validation step.
type StepStatus string

// Step status constants.
const (
	StepPending StepStatus = "PENDING"
	StepPass    StepStatus = "PASS"
	StepFail    StepStatus = "FAIL"
	StepSkipped StepStatus = "SKIPPED"
	StepError   StepStatus = "ERROR"
)

// PatternStatus is the outcome of one required pattern.
type PatternStatus string

// Pattern status constants.
const (
	PatternPass     PatternStatus = "PASS"
	PatternFail     PatternStatus = "FAIL"
	PatternBypassed PatternStatus = "BYPASSED"
)

// Validation step names, in execution order.
const (
	StepNameDiscovery         = "archive_discovery"
	StepNameTargetExists      = "target_exists"
	StepNameConsistency       = "file_consistency"
	StepNameBypass            = "bypass_applied"
	StepNamePatternValidation = "pattern_validation"
)

// StepOutcome records the status and message of a step.
type StepOutcome struct {
	Status  StepStatus `json:"status"`
	Message string     `json:"message"`
}

// ValidationSteps holds the five step outcomes.
type ValidationSteps struct {
	Discovery         StepOutcome `json:"archive_discovery"`
	TargetExists      StepOutcome `json:"target_exists"`
	Consistency       StepOutcome `json:"file_consistency"`
	PatternValidation StepOutcome `json:"pattern_validation"`
	Bypass            StepOutcome `json:"bypass_applied"`
}

// Ordered returns the steps as (name, outcome) pairs in execution order.
func (s ValidationSteps) Ordered() []NamedStep {
	return []NamedStep{
		{StepNameDiscovery, s.Discovery},
		{StepNameTargetExists, s.TargetExists},
		{StepNameConsistency, s.Consistency},
		{StepNameBypass, s.Bypass},
		{StepNamePatternValidation, s.PatternValidation},
	}
}

// NamedStep pairs a step name with its outcome.
type NamedStep struct {
	Name    string
	Outcome StepOutcome
}

// ArchivePaths are the resolved source and target archives. Nil means unresolved.
type ArchivePaths struct {
	SourceArchive *string `json:"source_archive"`
	TargetArchive *string `json:"target_archive"`
}

// PatternResult is the outcome for one required pattern.
type PatternResult struct {
	Pattern         string        `json:"pattern"`
	ResolvedPattern string        `json:"formatted_pattern"`
	Status          PatternStatus `json:"status"`
	Matches         []string      `json:"files"`
	FileCount       int           `json:"file_count"`
	BypassReason    string        `json:"bypass_reason,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// ValidationStatistics aggregates pattern outcomes.
type ValidationStatistics struct {
	PassCount       int     `json:"pass_count"`
	FailCount       int     `json:"fail_count"`
	BypassedCount   int     `json:"bypassed_count"`
	CheckedPatterns int     `json:"checked_patterns"`
	TotalPatterns   int     `json:"total_patterns"`
	PassingRate     float64 `json:"passing_rate"`
}

// ValidationResult is the full record of one five-step validation.
type ValidationResult struct {
	Success        bool                 `json:"success"`
	Vendor         string               `json:"vendor"`
	ToolNumber     string               `json:"tool_number"`
	ToolColumn     string               `json:"tool_column"`
	Technology     int                  `json:"technology_value"`
	Paths          ArchivePaths         `json:"paths"`
	Steps          ValidationSteps      `json:"steps"`
	Statistics     ValidationStatistics `json:"statistics"`
	PatternResults []PatternResult      `json:"pattern_results"`
}

// NewValidationResult returns a result with every step PENDING.
func NewValidationResult(vendor, toolNumber, toolColumn string, technology, totalPatterns int) *ValidationResult {
	pending := StepOutcome{Status: StepPending}
	return &ValidationResult{
		Vendor:     vendor,
		ToolNumber: toolNumber,
		ToolColumn: toolColumn,
		Technology: technology,
		Steps: ValidationSteps{
			Discovery:         pending,
			TargetExists:      pending,
			Consistency:       pending,
			PatternValidation: pending,
			Bypass:            pending,
		},
		Statistics:     ValidationStatistics{TotalPatterns: totalPatterns},
		PatternResults: []PatternResult{},
	}
}
