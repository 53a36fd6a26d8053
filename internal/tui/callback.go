// Package tui provides terminal output, prompts and progress tracking for vendor-qc.
package tui

import (
	"io"

	"github.com/charmbracelet/huh"

	"github.com/EmundoT/vendor-qc/internal/core"
)

// Compile-time interface satisfaction check.
var _ core.UICallback = (*TUICallback)(nil)

// TUICallback implements UICallback for interactive terminal use with styled output.
//
//nolint:revive // Name TUICallback is intentional and descriptive
type TUICallback struct {
	printer *Printer
}

// NewTUICallback creates a new interactive terminal UI callback writing to out.
func NewTUICallback(out io.Writer) *TUICallback {
	return &TUICallback{printer: NewPrinter(out)}
}

// ShowError displays an error message.
func (t *TUICallback) ShowError(title, message string) {
	t.printer.Error(title, message)
}

// ShowSuccess displays a success message with styled output.
func (t *TUICallback) ShowSuccess(message string) {
	t.printer.Success(message)
}

// ShowWarning displays a warning message with styled output.
func (t *TUICallback) ShowWarning(title, message string) {
	t.printer.Warning(title, message)
}

// AskConfirmation prompts the user for yes/no confirmation.
func (t *TUICallback) AskConfirmation(title, message string) bool {
	var confirm bool
	err := huh.NewConfirm().
		Title(title).
		Description(message).
		Value(&confirm).
		Affirmative("Yes").
		Negative("No").
		Run()
	if err != nil {
		return false
	}
	return confirm
}

// StyleTitle returns a styled title string for terminal output.
func (t *TUICallback) StyleTitle(title string) string {
	return StyleTitle(title)
}

// GetOutputMode returns the output mode (normal for interactive TUI).
func (t *TUICallback) GetOutputMode() core.OutputMode {
	return core.OutputNormal
}

// IsAutoApprove returns whether auto-approve is enabled (always false for interactive mode).
func (t *TUICallback) IsAutoApprove() bool {
	return false
}

// FormatJSON is not used in interactive mode.
func (t *TUICallback) FormatJSON(_ core.JSONOutput) error {
	return nil
}
