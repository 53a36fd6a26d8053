package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/input"
)

// CLIResponse is the structured JSON envelope of every --json command.
//
// Schema:
//
//	{
//	  "success": true|false,
//	  "data": { ... },          // Command-specific payload (omitted on error)
//	  "error": {                 // Present only on failure
//	    "code": "CONFIG_ERROR",
//	    "message": "Human-readable description"
//	  }
//	}
type CLIResponse struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   *CLIErrorDetail `json:"error,omitempty"`
}

// CLIErrorDetail contains machine-readable error code and human-readable message.
type CLIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CLI exit codes.
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArguments = 3
	ExitValidationFailed = 4
	ExitConfigError      = 6
)

// CLI error codes for structured JSON error responses.
const (
	ErrCodeInvalidArguments = "INVALID_ARGUMENTS"
	ErrCodeConfigError      = "CONFIG_ERROR"
	ErrCodeInputError       = "INPUT_ERROR"
	ErrCodeArchiveNotFound  = "ARCHIVE_NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotifyError      = "NOTIFY_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ExitError carries an explicit exit code through cobra's error return.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError wraps err with an exit code.
func NewExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

// WriteCLISuccess writes a successful CLIResponse as indented JSON.
func WriteCLISuccess(w io.Writer, data interface{}) error {
	return writeCLIResponse(w, CLIResponse{Success: true, Data: data})
}

// WriteCLIError writes an error CLIResponse as indented JSON.
func WriteCLIError(w io.Writer, code, message string) error {
	return writeCLIResponse(w, CLIResponse{
		Success: false,
		Error:   &CLIErrorDetail{Code: code, Message: message},
	})
}

func writeCLIResponse(w io.Writer, resp CLIResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// CLIExitCodeForError maps structured error types to CLI exit codes.
func CLIExitCodeForError(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case IsConfigurationError(err), errors.Is(err, ErrPolicyNotLoaded):
		return ExitConfigError
	case input.IsColumnError(err):
		return ExitInvalidArguments
	default:
		return ExitGeneralError
	}
}

// CLIErrorCodeForError maps structured error types to CLI error code strings.
func CLIErrorCodeForError(err error) string {
	var exitErr *ExitError
	switch {
	case IsConfigurationError(err), errors.Is(err, ErrPolicyNotLoaded):
		return ErrCodeConfigError
	case input.IsColumnError(err):
		return ErrCodeInputError
	case errors.Is(err, archive.ErrArchiveNotFound):
		return ErrCodeArchiveNotFound
	case errors.As(err, &exitErr) && exitErr.Code == ExitValidationFailed:
		return ErrCodeValidationFailed
	case errors.As(err, &exitErr) && exitErr.Code == ExitInvalidArguments:
		return ErrCodeInvalidArguments
	default:
		return ErrCodeInternalError
	}
}
