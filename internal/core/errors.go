package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
// These can be used with errors.Is() for error type checking.
var (
	// ErrUnknownVendor indicates a vendor key has no policy section and no default applies.
	ErrUnknownVendor = errors.New("unknown vendor")

	// ErrDuplicateCheckpoint indicates a checkpoint with the same name is already registered.
	ErrDuplicateCheckpoint = errors.New("checkpoint already registered")

	// ErrPolicyNotLoaded indicates the policy store was used before a successful Load.
	ErrPolicyNotLoaded = errors.New("policy document not loaded")
)

// Error message templates for formatted errors and failure reasons.
const (
	// ErrMissingVendorMsg is the failure reason for rows without a vendor key.
	ErrMissingVendorMsg = "Unsupported vendor or missing vendor information"

	// ErrNoRuleForVendorMsg is the failure reason for vendors without a policy section.
	ErrNoRuleForVendorMsg = "No validation rule found for vendor: %s"

	// ErrPackageNotFoundMsg is the Package Readiness failure reason.
	ErrPackageNotFoundMsg = "Package not found"

	// ErrCheckpointExecMsg is the synthetic failure reason when a checkpoint errors or panics.
	ErrCheckpointExecMsg = "%s execution error: %v"

	// ErrValidationFailedMsg prefixes the Final Report failure reason.
	ErrValidationFailedMsg = "Validation failed"
)

// ConfigurationError is a fatal problem with the policy document. It aborts a
// run before any row is processed.
type ConfigurationError struct {
	Path   string
	Vendor string
	Msg    string
	Err    error
}

func (e *ConfigurationError) Error() string {
	prefix := "configuration error"
	if e.Path != "" {
		prefix += " in " + e.Path
	}
	if e.Vendor != "" {
		prefix += fmt.Sprintf(" (vendor '%s')", e.Vendor)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError for path.
func NewConfigurationError(path, vendor, msg string, err error) *ConfigurationError {
	return &ConfigurationError{Path: path, Vendor: vendor, Msg: msg, Err: err}
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// ValidationStepError wraps an unexpected failure inside one validation step.
// It never escapes the engine; it is rendered into the step's ERROR message.
type ValidationStepError struct {
	Step string
	Err  error
}

func (e *ValidationStepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ValidationStepError) Unwrap() error {
	return e.Err
}

// IsValidationStepError checks if an error is a ValidationStepError.
func IsValidationStepError(err error) bool {
	var target *ValidationStepError
	return errors.As(err, &target)
}
