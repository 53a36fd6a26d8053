package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Printer writes styled messages to a writer.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a printer writing to out (os.Stdout when nil).
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

// Error displays an error title and detail.
func (p *Printer) Error(title, msg string) {
	fmt.Fprintln(p.out, styleErr.Render("✖ "+title))
	fmt.Fprintln(p.out, msg)
}

// Success displays a success message.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, styleSuccess.Render("✔ "+msg))
}

// Warning displays a warning title and detail.
func (p *Printer) Warning(title, msg string) {
	fmt.Fprintln(p.out, styleWarn.Render("! "+title))
	fmt.Fprintln(p.out, msg)
}

// Info displays a dimmed informational message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.out, styleDim.Render(msg))
}

// StyleTitle applies title styling to the given text string.
func StyleTitle(text string) string { return styleTitle.Render(text) }

// StyleVerdict colors PASS green and anything else red.
func StyleVerdict(result string) string {
	if result == "PASS" {
		return styleSuccess.Render(result)
	}
	return styleErr.Render(result)
}
