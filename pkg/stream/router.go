package stream

import (
	"encoding/json"

	"github.com/kalrav/shipgrid/pkg/logging"
	"github.com/kalrav/shipgrid/pkg/sse"
)

// Handler receives typed events in arrival order. Returning an error stops
// the pump; return sse.ErrStop to end it without surfacing an error.
type Handler interface {
	HandleEvent(Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Event) error

func (f HandlerFunc) HandleEvent(e Event) error { return f(e) }

// Router decodes frames into typed events and hands them to a single
// handler. A frame whose payload fails to decode is dropped with a local
// diagnostic; one malformed frame must never abort the stream. Unknown
// event types are ignored.
type Router struct {
	handler Handler
	logger  *logging.Logger
}

// NewRouter creates a router for the given handler.
func NewRouter(handler Handler, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Router{handler: handler, logger: logger}
}

// Dispatch routes one decoded frame.
func (r *Router) Dispatch(frame sse.Frame) error {
	event, ok := r.decode(frame)
	if !ok {
		return nil
	}
	metricFramesRouted.WithLabelValues(frame.Event).Inc()
	return r.handler.HandleEvent(event)
}

func (r *Router) decode(frame sse.Frame) (Event, bool) {
	var (
		event Event
		err   error
	)

	switch EventType(frame.Event) {
	case EventStatus:
		var e StatusEvent
		err = json.Unmarshal([]byte(frame.Data), &e)
		event = e
	case EventVariant:
		var e VariantEvent
		err = json.Unmarshal([]byte(frame.Data), &e)
		event = e
	case EventError:
		var e ErrorEvent
		err = json.Unmarshal([]byte(frame.Data), &e)
		event = e
	case EventComplete:
		var e CompleteEvent
		err = json.Unmarshal([]byte(frame.Data), &e)
		event = e
	default:
		r.logger.Debug(logging.CategoryStream, "unknown_event", "ignoring unknown event type", map[string]any{
			"event_type": frame.Event,
		})
		return nil, false
	}

	if err != nil {
		metricFramesDropped.Inc()
		r.logger.Warn(logging.CategoryStream, "malformed_frame", "dropping frame with malformed payload", map[string]any{
			"event_type": frame.Event,
			"error":      err.Error(),
		})
		return nil, false
	}

	return event, true
}
