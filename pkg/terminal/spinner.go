package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Spinner is a single-line spinner for long operations: uploads, polling a
// login session. SetMessage may be called while running to reflect status
// changes.
type Spinner struct {
	out       io.Writer
	message   string
	frames    []string
	current   int
	done      chan struct{}
	mu        sync.Mutex
	style     lipgloss.Style
	startTime time.Time
	showTime  bool
}

// SpinnerFrames are the default animation frames.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a spinner on stdout.
func NewSpinner(message string) *Spinner {
	return NewSpinnerWithOutput(os.Stdout, message)
}

// NewSpinnerWithOutput creates a spinner with custom output.
func NewSpinnerWithOutput(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:      out,
		message:  message,
		frames:   SpinnerFrames,
		done:     make(chan struct{}),
		showTime: true,
		style: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
	}
}

// WithoutTime disables elapsed time display.
func (s *Spinner) WithoutTime() *Spinner {
	s.showTime = false
	return s
}

// SetMessage updates the spinner message.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.startTime = time.Now()
	go s.run()
}

func (s *Spinner) run() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := s.frames[s.current%len(s.frames)]
			msg := s.message
			showTime := s.showTime
			startTime := s.startTime
			s.current++
			s.mu.Unlock()

			if showTime && !startTime.IsZero() {
				elapsed := time.Since(startTime).Round(time.Second)
				fmt.Fprintf(s.out, "\r\033[K%s %s (%s)", s.style.Render(frame), msg, elapsed)
			} else {
				fmt.Fprintf(s.out, "\r\033[K%s %s", s.style.Render(frame), msg)
			}
		}
	}
}

// Elapsed returns the time since the spinner started.
func (s *Spinner) Elapsed() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	close(s.done)
	fmt.Fprintf(s.out, "\r\033[K")
}

// StopWithSuccess stops and prints a success message.
func (s *Spinner) StopWithSuccess(message string) {
	elapsed := s.Elapsed().Round(time.Millisecond)
	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	close(s.done)
	if s.showTime && elapsed > 0 {
		fmt.Fprintf(s.out, "\r\033[K%s %s (%s)\n", successStyle.Render("✓"), message, elapsed)
	} else {
		fmt.Fprintf(s.out, "\r\033[K%s %s\n", successStyle.Render("✓"), message)
	}
}

// StopWithError stops and prints an error message.
func (s *Spinner) StopWithError(message string) {
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
		Bold(true)
	close(s.done)
	fmt.Fprintf(s.out, "\r\033[K%s %s\n", errorStyle.Render("✗"), message)
}

// StopWithWarning stops and prints a warning, for cancelled operations that
// are neither success nor failure.
func (s *Spinner) StopWithWarning(message string) {
	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"})
	close(s.done)
	fmt.Fprintf(s.out, "\r\033[K%s %s\n", warnStyle.Render("–"), message)
}
