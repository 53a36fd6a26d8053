package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/EmundoT/vendor-qc/internal/core"
)

// Compile-time interface satisfaction checks.
var (
	_ core.ProgressTracker = (*BubbleteaProgressTracker)(nil)
	_ core.ProgressTracker = (*TextProgressTracker)(nil)
	_ core.ProgressTracker = (*NoOpProgressTracker)(nil)
)

// NewProgressTracker picks a tracker for the output mode: none for quiet and JSON,
// an animated bar when out is a terminal, plain lines otherwise.
func NewProgressTracker(mode core.OutputMode, out *os.File, label string) core.ProgressTracker {
	if mode != core.OutputNormal {
		return NewNoOpProgressTracker()
	}
	if IsTerminal(out) {
		return NewBubbleteaProgressTracker(out, label)
	}
	return NewTextProgressTracker(out, label)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ========================================
// Bubbletea Progress Model
// ========================================

// progressModel renders a row counter with a bar.
type progressModel struct {
	current int
	total   int
	label   string
	last    string
	done    bool
	err     error
	width   int
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case progressIncrementMsg:
		m.current++
		m.last = msg.message
	case progressSetTotalMsg:
		m.total = msg.total
	case progressCompleteMsg:
		m.done = true
		return m, tea.Quit
	case progressFailMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	switch {
	case m.done && m.err != nil:
		return styleErr.Render(fmt.Sprintf("✗ %s stopped after %d/%d rows: %v", m.label, m.current, m.total, m.err)) + "\n"
	case m.done:
		return styleSuccess.Render(fmt.Sprintf("✓ %s: %d/%d rows", m.label, m.current, m.total)) + "\n"
	}

	barWidth := 40
	if m.width > 0 && m.width < 80 {
		barWidth = 20
	}
	filled := 0
	if m.total > 0 {
		filled = m.current * barWidth / m.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	status := fmt.Sprintf("[%s] %d/%d", bar, m.current, m.total)
	if m.last != "" {
		status += " " + styleDim.Render(m.last)
	}
	return styleTitle.Render(m.label) + "\n" + status
}

type progressIncrementMsg struct {
	message string
}

type progressSetTotalMsg struct {
	total int
}

type progressCompleteMsg struct{}

type progressFailMsg struct {
	err error
}

// ========================================
// BubbleteaProgressTracker
// ========================================

// BubbleteaProgressTracker renders progress with bubbletea on a terminal.
type BubbleteaProgressTracker struct {
	program *tea.Program
	done    chan struct{}
}

// NewBubbleteaProgressTracker starts the progress program in the background.
func NewBubbleteaProgressTracker(out io.Writer, label string) *BubbleteaProgressTracker {
	p := tea.NewProgram(progressModel{label: label}, tea.WithOutput(out), tea.WithInput(nil))
	t := &BubbleteaProgressTracker{program: p, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		_, _ = p.Run()
	}()
	return t
}

// Increment records one finished row.
func (t *BubbleteaProgressTracker) Increment(message string) {
	t.program.Send(progressIncrementMsg{message: message})
}

// SetTotal sets the number of rows.
func (t *BubbleteaProgressTracker) SetTotal(total int) {
	t.program.Send(progressSetTotalMsg{total: total})
}

// Complete renders the final line and waits for the program to exit.
func (t *BubbleteaProgressTracker) Complete() {
	t.program.Send(progressCompleteMsg{})
	t.wait()
}

// Fail renders the error and waits for the program to exit.
func (t *BubbleteaProgressTracker) Fail(err error) {
	t.program.Send(progressFailMsg{err: err})
	t.wait()
}

func (t *BubbleteaProgressTracker) wait() {
	select {
	case <-t.done:
	case <-time.After(time.Second):
		t.program.Kill()
	}
}

// ========================================
// Text Progress (Non-TTY)
// ========================================

// TextProgressTracker prints one line per finished row.
type TextProgressTracker struct {
	mu      sync.Mutex
	out     io.Writer
	current int
	total   int
	label   string
}

// NewTextProgressTracker creates a new text progress tracker.
func NewTextProgressTracker(out io.Writer, label string) *TextProgressTracker {
	return &TextProgressTracker{out: out, label: label}
}

// Increment records one finished row.
func (t *TextProgressTracker) Increment(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current++
	line := fmt.Sprintf("  [%d/%d]", t.current, t.total)
	if message != "" {
		line += " " + message
	}
	fmt.Fprintln(t.out, line)
}

// SetTotal sets the number of rows and prints the start line.
func (t *TextProgressTracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	fmt.Fprintf(t.out, "Starting: %s (0/%d)\n", t.label, total)
}

// Complete prints the summary line.
func (t *TextProgressTracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "✓ %s: Completed (%d/%d)\n", t.label, t.current, t.total)
}

// Fail prints the error.
func (t *TextProgressTracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "✗ %s: Failed - %v\n", t.label, err)
}

// ========================================
// No-Op Progress (Quiet/JSON)
// ========================================

// NoOpProgressTracker does nothing (for quiet/JSON/testing modes).
type NoOpProgressTracker struct{}

// NewNoOpProgressTracker creates a new no-op progress tracker.
func NewNoOpProgressTracker() *NoOpProgressTracker {
	return &NoOpProgressTracker{}
}

// Increment does nothing (no-op implementation).
func (t *NoOpProgressTracker) Increment(_ string) {}

// SetTotal does nothing (no-op implementation).
func (t *NoOpProgressTracker) SetTotal(_ int) {}

// Complete does nothing (no-op implementation).
func (t *NoOpProgressTracker) Complete() {}

// Fail does nothing (no-op implementation).
func (t *NoOpProgressTracker) Fail(_ error) {}
