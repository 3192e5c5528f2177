package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kalrav/shipgrid/pkg/api"
	sgerrors "github.com/kalrav/shipgrid/pkg/errors"
	"github.com/kalrav/shipgrid/pkg/logging"
)

// API is the subset of the service client the orchestrator needs.
type API interface {
	StartLoginSession(ctx context.Context, creds api.LoginCredentials) (*api.LoginSessionHandle, error)
	LoginSessionStatus(ctx context.Context, sessionID string) (*api.LoginSessionState, error)
	CancelLoginSession(ctx context.Context, sessionID string) (*api.CancelResult, error)
}

// Options tune the polling loop. Zero values take the defaults.
type Options struct {
	// PollInterval is the delay between status polls. Default 2s.
	PollInterval time.Duration

	// Timeout bounds the whole run, from session start to terminal status.
	// Default 5m.
	Timeout time.Duration

	// MaxTransientFailures is how many consecutive poll errors are tolerated
	// before the run is declared failed. Default 3.
	MaxTransientFailures int
}

const (
	defaultMaxTransientFailures = 3

	// observerBuffer bounds the status queue between the poll loop and the
	// observer. A session only ever moves through eight statuses, so the
	// queue never fills in practice; if it does, the oldest entry is dropped
	// so the poll loop never blocks on a slow observer.
	observerBuffer = 16

	remoteCancelTimeout = 10 * time.Second
)

// Orchestrator runs one remote browser-login session to completion. It is
// single-use: construct a new one per linking attempt.
type Orchestrator struct {
	api    API
	logger *logging.Logger
	opts   Options

	mu        sync.Mutex
	started   bool
	cancelled bool
	sessionID string
	cancelRun context.CancelFunc

	observer   func(Status)
	notifyCh   chan Status
	observerWG sync.WaitGroup

	// lastNotified is only touched by the Start goroutine.
	lastNotified Status

	remoteCancelOnce sync.Once
}

// NewOrchestrator builds an orchestrator over the given client. A nil logger
// disables logging.
func NewOrchestrator(client API, logger *logging.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxTransientFailures <= 0 {
		opts.MaxTransientFailures = defaultMaxTransientFailures
	}
	return &Orchestrator{
		api:    client,
		logger: logger,
		opts:   opts,
	}
}

// Observe registers a callback invoked once for each distinct status the
// session moves through, in order. The callback runs on its own goroutine and
// never blocks the polling loop. Must be called before Start.
func (o *Orchestrator) Observe(fn func(Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = fn
}

// Cancel requests cancellation of the running session. It is safe to call
// from any goroutine, at any point in the run, and more than once. If a
// terminal status arrives concurrently, cancellation wins: Start still
// reports Cancelled.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.cancelled = true
	cancelRun := o.cancelRun
	sessionID := o.sessionID
	o.mu.Unlock()

	if sessionID != "" {
		o.remoteCancel(sessionID)
	}
	if cancelRun != nil {
		cancelRun()
	}
}

// Start creates the browser session and polls it until a terminal status,
// cancellation, or timeout. Credentials are optional; when present the runner
// autofills the login form. The returned Session always carries the final
// status. The error is nil only for Completed; Cancelled yields an error
// satisfying sgerrors.IsCancellation.
func (o *Orchestrator) Start(ctx context.Context, creds api.LoginCredentials) (Session, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return Session{}, sgerrors.New(sgerrors.ErrCodeInternal, "link orchestrator already used")
	}
	o.started = true
	runCtx, cancelRun := context.WithCancel(ctx)
	o.cancelRun = cancelRun
	observer := o.observer
	o.mu.Unlock()
	defer cancelRun()

	if observer != nil {
		o.notifyCh = make(chan Status, observerBuffer)
		o.observerWG.Add(1)
		go func() {
			defer o.observerWG.Done()
			for st := range o.notifyCh {
				observer(st)
			}
		}()
		defer func() {
			close(o.notifyCh)
			o.observerWG.Wait()
		}()
	}

	handle, err := o.api.StartLoginSession(runCtx, creds)
	if err != nil {
		if o.wasCancelled() || runCtx.Err() != nil {
			return o.finish(Session{Status: StatusCancelled}, nil)
		}
		metricSessions.WithLabelValues("start_failed").Inc()
		return Session{Status: StatusFailed, ErrorMessage: err.Error()},
			sgerrors.Wrap(err, sgerrors.ErrCodeLinkFailed, "failed to start login session")
	}

	o.mu.Lock()
	o.sessionID = handle.SessionID
	cancelledEarly := o.cancelled
	o.mu.Unlock()

	o.logger.Info(logging.CategoryLink, "session_start", "login session started", map[string]any{
		"session_id": handle.SessionID,
	})

	if cancelledEarly {
		// Cancel raced session creation and never saw the ID.
		o.remoteCancel(handle.SessionID)
		return o.finish(Session{ID: handle.SessionID, Status: StatusCancelled}, nil)
	}

	o.notify(Status(handle.Status))

	final, err := o.poll(runCtx, handle.SessionID)
	final.ID = handle.SessionID
	return o.finish(final, err)
}

// poll drives the status loop until a terminal state, timeout, or
// cancellation.
func (o *Orchestrator) poll(ctx context.Context, sessionID string) (Session, error) {
	timeout := time.NewTimer(o.opts.Timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	transientFailures := 0

	for {
		select {
		case <-ctx.Done():
			if o.wasCancelled() {
				return Session{Status: StatusCancelled}, nil
			}
			// Parent context cancellation is treated the same as an explicit
			// Cancel: stop the remote session and report Cancelled.
			o.remoteCancel(sessionID)
			return Session{Status: StatusCancelled}, nil

		case <-timeout.C:
			o.logger.Warn(logging.CategoryLink, "session_timeout", "login session timed out", map[string]any{
				"session_id": sessionID,
				"timeout":    o.opts.Timeout.String(),
			})
			o.remoteCancel(sessionID)
			if o.wasCancelled() {
				return Session{Status: StatusCancelled}, nil
			}
			return Session{Status: StatusFailed, ErrorMessage: "Session timed out"},
				sgerrors.New(sgerrors.ErrCodeLinkTimeout, "login session timed out").
					WithContext("timeout", o.opts.Timeout.String()).
					WithUserMessage("The login session timed out. Please try linking again.")

		case <-ticker.C:
			metricPolls.Inc()
			state, err := o.api.LoginSessionStatus(ctx, sessionID)
			if o.wasCancelled() {
				// A poll result that raced Cancel is discarded, even a
				// terminal one.
				return Session{Status: StatusCancelled}, nil
			}
			if err != nil {
				metricPollFailures.Inc()
				if fatal, ferr := o.classifyPollError(err); fatal {
					return Session{Status: StatusFailed, ErrorMessage: ferr.Error()}, ferr
				}
				transientFailures++
				o.logger.Warn(logging.CategoryLink, "poll_failed", "status poll failed", map[string]any{
					"session_id":  sessionID,
					"error":       err.Error(),
					"consecutive": transientFailures,
				})
				if transientFailures > o.opts.MaxTransientFailures {
					werr := sgerrors.Wrap(err, sgerrors.ErrCodeLinkFailed, "lost contact with login session").
						WithUserMessage("Could not reach the server while waiting for login. Please try again.")
					return Session{Status: StatusFailed, ErrorMessage: werr.Error()}, werr
				}
				continue
			}
			transientFailures = 0

			status := Status(state.Status)
			o.notify(status)

			if !status.IsTerminal() {
				continue
			}
			return o.resolveTerminal(status, state)
		}
	}
}

// resolveTerminal maps a terminal poll result onto the final Session and its
// error.
func (o *Orchestrator) resolveTerminal(status Status, state *api.LoginSessionState) (Session, error) {
	switch status {
	case StatusCompleted:
		return Session{
			Status:     StatusCompleted,
			Linked:     true,
			SupplierID: state.SupplierID,
		}, nil
	case StatusExpired:
		return Session{Status: StatusExpired, ErrorMessage: state.Error},
			sgerrors.New(sgerrors.ErrCodeLinkExpired, "login session expired").
				WithUserMessage("The browser session expired before login completed. Please try again.")
	case StatusCancelled:
		return Session{Status: StatusCancelled},
			sgerrors.New(sgerrors.ErrCodeLinkCancelled, "login session cancelled remotely")
	default:
		msg := state.Error
		if msg == "" {
			msg = "linking failed"
		}
		return Session{Status: StatusFailed, ErrorMessage: msg},
			sgerrors.New(sgerrors.ErrCodeLinkFailed, msg).
				WithUserMessage("Linking failed: " + msg)
	}
}

// classifyPollError reports whether a poll error ends the run immediately.
// Auth failures and a vanished session cannot heal, everything else is
// treated as transient.
func (o *Orchestrator) classifyPollError(err error) (bool, error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return false, nil
	}
	switch apiErr.StatusCode {
	case 401, 403:
		return true, sgerrors.Wrap(err, sgerrors.ErrCodeAPIAuth, "authentication failed while polling login session").
			WithUserMessage("Your API token was rejected. Check SHIPGRID_API_TOKEN and try again.")
	case 404:
		return true, sgerrors.Wrap(err, sgerrors.ErrCodeLinkNotFound, "login session no longer exists").
			WithUserMessage("The login session was not found on the server. Please try linking again.")
	}
	return false, nil
}

// notify forwards a status to the observer if it differs from the previous
// one. Sends never block: when the queue is full the oldest entry is dropped.
func (o *Orchestrator) notify(status Status) {
	if status == o.lastNotified || status == "" {
		return
	}
	o.lastNotified = status
	if o.notifyCh == nil {
		return
	}
	for {
		select {
		case o.notifyCh <- status:
			return
		default:
			select {
			case <-o.notifyCh:
			default:
			}
		}
	}
}

// remoteCancel issues at most one best-effort cancel against the server.
func (o *Orchestrator) remoteCancel(sessionID string) {
	o.remoteCancelOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteCancelTimeout)
		defer cancel()
		if _, err := o.api.CancelLoginSession(ctx, sessionID); err != nil {
			o.logger.Warn(logging.CategoryLink, "remote_cancel_failed", "failed to cancel login session", map[string]any{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	})
}

func (o *Orchestrator) wasCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

// finish notifies the final status, records the outcome metric, and builds
// the cancellation error when cancellation won the run.
func (o *Orchestrator) finish(final Session, err error) (Session, error) {
	o.mu.Lock()
	cancelled := o.cancelled
	if cancelled {
		final.Status = StatusCancelled
		final.Linked = false
		final.SupplierID = ""
		err = nil
	}
	o.mu.Unlock()

	if final.Status == StatusCancelled && err == nil {
		err = sgerrors.New(sgerrors.ErrCodeLinkCancelled, "linking cancelled")
	}

	// Cancellation suppresses observer callbacks from this point on.
	if !cancelled {
		o.notify(final.Status)
	}

	metricSessions.WithLabelValues(string(final.Status)).Inc()
	o.logger.Info(logging.CategoryLink, "session_end", "login session finished", map[string]any{
		"session_id": final.ID,
		"status":     string(final.Status),
		"linked":     final.Linked,
	})
	return final, err
}
