// Package link drives the remote browser-login flow used to connect a
// Meesho seller account: start a hosted browser session, poll it on a fixed
// cadence until a terminal status or timeout, and support out-of-band
// cancellation at any point.
package link

// Status is a login-session status as reported by the automation runner.
// Values match the wire protocol.
type Status string

const (
	StatusPending     Status = "pending"
	StatusBrowserOpen Status = "browser_open"
	StatusLoggedIn    Status = "logged_in"
	StatusCapturing   Status = "capturing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusExpired     Status = "expired"
	StatusCancelled   Status = "cancelled"
)

// IsTerminal reports whether no further transitions can occur.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Message returns the user-facing description for a status, used by the CLI
// to show stage-specific messaging while the user logs in.
func (s Status) Message() string {
	switch s {
	case StatusPending:
		return "Starting browser session..."
	case StatusBrowserOpen:
		return "Browser open. Please log into your Meesho account."
	case StatusLoggedIn:
		return "Login detected. Hold on..."
	case StatusCapturing:
		return "Capturing credentials..."
	case StatusCompleted:
		return "Account linked successfully."
	case StatusFailed:
		return "Linking failed."
	case StatusExpired:
		return "The browser session expired before login completed."
	case StatusCancelled:
		return "Linking cancelled."
	default:
		return string(s)
	}
}

// Session is the final result of one linking run.
type Session struct {
	ID           string
	Status       Status
	Linked       bool
	SupplierID   string
	ErrorMessage string
}
