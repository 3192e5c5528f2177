// Package terminal provides styled CLI output: status lines, progress bars,
// warning lists, and credential prompts. No TUI framework, just styled
// print/overwrite.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Writer provides styled terminal output. Safe for concurrent use.
type Writer struct {
	out   io.Writer
	in    io.Reader
	mu    sync.Mutex
	quiet bool

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	infoStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	headerStyle  lipgloss.Style
}

// New creates a Writer on stdout.
func New() *Writer {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a Writer with a custom output destination.
func NewWithOutput(out io.Writer) *Writer {
	// Detect the color profile up front so AdaptiveColor resolves against
	// the real terminal, not the default.
	_ = termenv.ColorProfile()

	return &Writer{
		out: out,
		in:  os.Stdin,

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),

		boldStyle: lipgloss.NewStyle().Bold(true),

		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}),
	}
}

// SetQuiet suppresses informational output. Errors, warnings, and results
// still print.
func (w *Writer) SetQuiet(quiet bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quiet = quiet
}

// Print writes text to the terminal.
func (w *Writer) Print(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

// Println writes text with a newline.
func (w *Writer) Println(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Error prints an error message in red.
func (w *Writer) Error(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w.out, w.errorStyle.Render("error: "+msg))
}

// Warn prints a warning message in yellow.
func (w *Writer) Warn(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w.out, w.warnStyle.Render("warning: "+msg))
}

// Success prints a success message in green.
func (w *Writer) Success(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w.out, w.successStyle.Render("✓ "+msg))
}

// Info prints an info message in blue. Suppressed in quiet mode.
func (w *Writer) Info(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w.out, w.infoStyle.Render(msg))
}

// Dim prints secondary text. Suppressed in quiet mode.
func (w *Writer) Dim(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w.out, w.dimStyle.Render(msg))
}

// Bold prints bold text.
func (w *Writer) Bold(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w.out, w.boldStyle.Render(msg))
}

// Header prints a section header.
func (w *Writer) Header(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.headerStyle.Render(title))
}

// Newline prints a blank line.
func (w *Writer) Newline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out)
}

// Divider prints a horizontal divider.
func (w *Writer) Divider() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.dimStyle.Render(strings.Repeat("─", 60)))
}

// KeyValue prints an aligned label/value pair, for status summaries.
func (w *Writer) KeyValue(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "  %s %s\n", w.dimStyle.Render(fmt.Sprintf("%-14s", key+":")), value)
}

// List prints a bulleted list.
func (w *Writer) List(items []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, item := range items {
		fmt.Fprintln(w.out, "  • "+item)
	}
}

// WarningList prints accumulated non-fatal problems after a run, e.g.
// variants that failed to render while the rest of the batch succeeded.
func (w *Writer) WarningList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.warnStyle.Render(title))
	for _, item := range items {
		fmt.Fprintln(w.out, "  "+w.warnStyle.Render("•")+" "+item)
	}
}

// StatusLine overwrites the current line, for live progress during
// streaming and linking.
func (w *Writer) StatusLine(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quiet {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w.out, "\r\033[K%s", msg)
}

// StatusLineDone terminates an in-place status line.
func (w *Writer) StatusLineDone() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out)
}

// Progress prints an in-place progress bar.
func (w *Writer) Progress(current, total int, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quiet {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	bar := renderProgressBar(current, total, 30)
	fmt.Fprintf(w.out, "\r\033[K%s %3.0f%% %s", bar, pct, message)
}

// ProgressDone finalizes progress output.
func (w *Writer) ProgressDone() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quiet {
		return
	}
	fmt.Fprintln(w.out)
}

func renderProgressBar(current, total, width int) string {
	if total == 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Confirm prompts for yes/no confirmation.
func (w *Writer) Confirm(prompt string, defaultYes bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, hint)

	input := w.readLine()
	input = strings.ToLower(input)
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// Prompt asks for text input.
func (w *Writer) Prompt(prompt, defaultValue string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if defaultValue != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	input := w.readLine()
	if input == "" {
		return defaultValue
	}
	return input
}

// PromptSecret asks for input without echoing, for passwords and session
// cookies. Falls back to plain reading when stdin is not a terminal (tests,
// pipes).
func (w *Writer) PromptSecret(prompt string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.out, "%s: ", prompt)

	fd := -1
	if f, ok := w.in.(*os.File); ok {
		fd = int(f.Fd())
	}
	if fd >= 0 && term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(w.out)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return w.readLine(), nil
}

func (w *Writer) readLine() string {
	reader := bufio.NewReader(w.in)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// SetInput overrides the input source, for tests.
func (w *Writer) SetInput(in io.Reader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.in = in
}
