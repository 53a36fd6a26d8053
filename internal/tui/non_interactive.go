package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/EmundoT/vendor-qc/internal/core"
)

// Compile-time interface satisfaction check.
var _ core.UICallback = (*NonInteractiveTUICallback)(nil)

// NonInteractiveTUICallback handles output for pipes, CI, --quiet and --json.
type NonInteractiveTUICallback struct {
	flags  core.NonInteractiveFlags
	stdout io.Writer
	stderr io.Writer
}

// NewNonInteractiveTUICallback creates a new non-interactive callback.
// Nil writers default to os.Stdout and os.Stderr.
func NewNonInteractiveTUICallback(flags core.NonInteractiveFlags, stdout, stderr io.Writer) *NonInteractiveTUICallback {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &NonInteractiveTUICallback{flags: flags, stdout: stdout, stderr: stderr}
}

// ShowError displays an error message.
func (n *NonInteractiveTUICallback) ShowError(title, message string) {
	switch n.flags.Mode {
	case core.OutputJSON:
		_ = n.FormatJSON(core.JSONOutput{
			Status: "error",
			Error:  &core.JSONError{Title: title, Message: message},
		})
	default:
		// Errors are shown even in quiet mode
		fmt.Fprintf(n.stderr, "Error: %s - %s\n", title, message)
	}
}

// ShowSuccess displays a success message.
func (n *NonInteractiveTUICallback) ShowSuccess(message string) {
	switch n.flags.Mode {
	case core.OutputJSON:
		_ = n.FormatJSON(core.JSONOutput{Status: "success", Message: message})
	case core.OutputNormal:
		fmt.Fprintln(n.stdout, message)
	}
}

// ShowWarning displays a warning message.
func (n *NonInteractiveTUICallback) ShowWarning(title, message string) {
	switch n.flags.Mode {
	case core.OutputJSON:
		_ = n.FormatJSON(core.JSONOutput{
			Status:  "warning",
			Message: fmt.Sprintf("%s: %s", title, message),
		})
	case core.OutputNormal:
		fmt.Fprintf(n.stderr, "Warning: %s - %s\n", title, message)
	}
}

// AskConfirmation approves only with --yes.
func (n *NonInteractiveTUICallback) AskConfirmation(title, message string) bool {
	if n.flags.Yes {
		return true
	}
	n.ShowError("Interactive Prompt Required",
		fmt.Sprintf("%s: %s\nUse --yes to auto-approve", title, message))
	return false
}

// StyleTitle returns the title unstyled.
func (n *NonInteractiveTUICallback) StyleTitle(title string) string {
	return title
}

// GetOutputMode returns the current output mode.
func (n *NonInteractiveTUICallback) GetOutputMode() core.OutputMode {
	return n.flags.Mode
}

// IsAutoApprove returns whether auto-approve is enabled.
func (n *NonInteractiveTUICallback) IsAutoApprove() bool {
	return n.flags.Yes
}

// FormatJSON writes output as indented JSON to stdout.
func (n *NonInteractiveTUICallback) FormatJSON(output core.JSONOutput) error {
	encoder := json.NewEncoder(n.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
