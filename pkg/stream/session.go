package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kalrav/shipgrid/pkg/api"
	sgerrors "github.com/kalrav/shipgrid/pkg/errors"
	"github.com/kalrav/shipgrid/pkg/logging"
	"github.com/kalrav/shipgrid/pkg/sse"
)

// Stage is the streaming session's lifecycle stage.
type Stage int

const (
	StageIdle Stage = iota
	StageGenerating
	StageProcessing
	StageUploading
	StageComplete
	StageError
)

// String returns the stage label.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageGenerating:
		return "generating"
	case StageProcessing:
		return "processing"
	case StageUploading:
		return "uploading"
	case StageComplete:
		return "complete"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// stageFromLabel maps a server stage label to a Stage.
func stageFromLabel(label string) (Stage, bool) {
	switch label {
	case "generating":
		return StageGenerating, true
	case "processing":
		return StageProcessing, true
	case "uploading":
		return StageUploading, true
	default:
		return StageIdle, false
	}
}

// State is the accumulated result of one streaming session. Variants is
// append-only in arrival order and is never mutated once the session
// reaches a terminal stage.
type State struct {
	Stage             Stage
	Progress          int
	Message           string
	Variants          []VariantEvent
	RecoverableErrors []string
	Completed         int
	Total             int
	Result            *CompleteEvent
}

// Opener opens the streaming optimization response. *api.Client satisfies it.
type Opener interface {
	OptimizeStream(ctx context.Context, req api.OptimizeRequest) (*api.StreamHandle, error)
}

// Session drives one streaming optimization run: it opens the response,
// pumps decoder→router→fold, and owns the accumulated State. A Session is
// single-use; start a new one (cancelling the old) for each upload.
type Session struct {
	opener   Opener
	logger   *logging.Logger
	observer func(State)

	mu        sync.Mutex
	state     State
	started   bool
	halted    bool
	cancelled bool
	cancelFn  context.CancelFunc
}

// NewSession creates a session over the given opener.
func NewSession(opener Opener, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Session{opener: opener, logger: logger}
}

// Observe registers a callback invoked with a state snapshot after each
// folded event. Must be called before Run.
func (s *Session) Observe(fn func(State)) {
	s.observer = fn
}

// State returns a snapshot of the current accumulated state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	snap := s.state
	snap.Variants = append([]VariantEvent(nil), s.state.Variants...)
	snap.RecoverableErrors = append([]string(nil), s.state.RecoverableErrors...)
	return snap
}

// Cancel aborts the in-flight request. After Cancel returns, no further
// events are folded and no observer callback fires, even if the transport
// delivers frames that were already in flight.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.halted = true
	fn := s.cancelFn
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Run uploads the image and consumes the event stream until it completes,
// fails fatally, or is cancelled. The returned State always reflects
// everything folded before the terminal condition. The error is nil on
// completion, context.Canceled on cancellation, and a coded error for fatal
// failures; transport and response failures never panic or escape untyped.
func (s *Session) Run(ctx context.Context, req api.OptimizeRequest) (State, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return s.State(), fmt.Errorf("session already started")
	}
	s.started = true
	s.state = State{Stage: StageGenerating, Message: "Uploading image..."}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.mu.Unlock()
	defer cancel()

	s.logger.Info(logging.CategoryStream, "session_start", "starting streaming optimization", map[string]any{
		"filename": req.Filename,
	})

	handle, err := s.opener.OptimizeStream(runCtx, req)
	if err != nil {
		if s.wasCancelled() || runCtx.Err() != nil {
			return s.finish("cancelled"), context.Canceled
		}
		fatal := s.foldFatal(messageForTransportError(err))
		return s.finish("error"), fatal
	}
	defer handle.Close()

	router := NewRouter(s, s.logger)
	pumpErr := sse.Pump(runCtx, handle.Body, router.Dispatch)

	switch {
	case s.wasCancelled() || errors.Is(pumpErr, context.Canceled):
		return s.finish("cancelled"), context.Canceled

	case pumpErr != nil:
		fatal := s.foldFatal(fmt.Sprintf("Stream read failed: %v", pumpErr))
		return s.finish("error"), fatal

	default:
		s.mu.Lock()
		stage := s.state.Stage
		message := s.state.Message
		s.mu.Unlock()

		switch stage {
		case StageComplete:
			return s.finish("complete"), nil
		case StageError:
			return s.finish("error"), sgerrors.New(sgerrors.ErrCodeStreamFatal, message).
				WithUserMessage(message)
		default:
			// EOF before a terminal event
			fatal := s.foldFatal("Stream ended before completion")
			return s.finish("error"), fatal
		}
	}
}

func (s *Session) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// finish records the outcome metric once and returns the final snapshot.
func (s *Session) finish(outcome string) State {
	metricSessions.WithLabelValues(outcome).Inc()
	s.logger.Info(logging.CategoryStream, "session_end", "streaming session finished", map[string]any{
		"outcome":  outcome,
		"variants": len(s.State().Variants),
	})
	return s.State()
}

// foldFatal enters the terminal error stage and returns the coded error.
func (s *Session) foldFatal(message string) error {
	s.mu.Lock()
	if !s.halted {
		s.state.Stage = StageError
		s.state.Message = message
		s.halted = true
	}
	s.mu.Unlock()

	s.logger.Error(logging.CategoryStream, "session_fatal", message, nil)
	return sgerrors.New(sgerrors.ErrCodeStreamFatal, message).WithUserMessage(message)
}

// HandleEvent folds one typed event into the state. Events arriving after a
// terminal stage or after Cancel are ignored; the halted flag, not timing,
// is what guarantees no late callback.
func (s *Session) HandleEvent(event Event) error {
	s.mu.Lock()

	if s.halted || s.cancelled {
		s.mu.Unlock()
		return sse.ErrStop
	}

	stop := false

	switch e := event.(type) {
	case StatusEvent:
		// Stage transitions are forward-only; a regressive or duplicate
		// update still carries the freshest message.
		if mapped, ok := stageFromLabel(e.Stage); ok && mapped > s.state.Stage {
			s.state.Stage = mapped
		}
		s.state.Message = e.Message
		if e.Progress > s.state.Progress {
			s.state.Progress = e.Progress
		}

	case VariantEvent:
		s.state.Variants = append(s.state.Variants, e)
		s.state.Completed = e.Completed
		// Last value wins if the server revises the expected count.
		s.state.Total = e.Total
		s.state.Progress = e.Progress
		metricVariants.Inc()

	case ErrorEvent:
		if e.Recoverable {
			s.state.RecoverableErrors = append(s.state.RecoverableErrors, e.Message)
			metricRecoverableErrors.Inc()
		} else {
			s.state.Stage = StageError
			s.state.Message = e.Message
			s.halted = true
			stop = true
		}

	case CompleteEvent:
		s.state.Stage = StageComplete
		s.state.Progress = 100
		s.state.Result = &e
		s.halted = true
		stop = true
	}

	var snap State
	notify := s.observer != nil && !s.cancelled
	if notify {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if notify {
		s.observer(snap)
	}

	if stop {
		return sse.ErrStop
	}
	return nil
}

// messageForTransportError turns a request failure into the single fatal
// message shown to the user. Structured API errors already carry the parsed
// response detail.
func messageForTransportError(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return fmt.Sprintf("Upload failed: %v", err)
}
