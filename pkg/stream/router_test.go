package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalrav/shipgrid/pkg/sse"
)

type recordingHandler struct {
	events []Event
}

func (h *recordingHandler) HandleEvent(e Event) error {
	h.events = append(h.events, e)
	return nil
}

func TestRouterDispatchesTypedEvents(t *testing.T) {
	h := &recordingHandler{}
	router := NewRouter(h, nil)

	frames := []sse.Frame{
		{Event: "status", Data: `{"stage":"generating","progress":0,"message":"start"}`},
		{Event: "variant", Data: `{"index":0,"completed":1,"total":30,"progress":23,"url":"https://cdn/x.jpg"}`},
		{Event: "error", Data: `{"message":"Variant 5 failed: render error","recoverable":true,"variant_index":4}`},
		{Event: "complete", Data: `{"id":"img-1","total":30,"successful":29,"failed":1}`},
	}
	for _, f := range frames {
		require.NoError(t, router.Dispatch(f))
	}

	require.Len(t, h.events, 4)

	status, ok := h.events[0].(StatusEvent)
	require.True(t, ok)
	assert.Equal(t, "generating", status.Stage)

	variant, ok := h.events[1].(VariantEvent)
	require.True(t, ok)
	assert.Equal(t, 1, variant.Completed)
	assert.Equal(t, 30, variant.Total)

	errEvent, ok := h.events[2].(ErrorEvent)
	require.True(t, ok)
	assert.True(t, errEvent.Recoverable)
	require.NotNil(t, errEvent.VariantIndex)
	assert.Equal(t, 4, *errEvent.VariantIndex)

	complete, ok := h.events[3].(CompleteEvent)
	require.True(t, ok)
	assert.Equal(t, "img-1", complete.ID)
}

func TestRouterDropsMalformedFrames(t *testing.T) {
	h := &recordingHandler{}
	router := NewRouter(h, nil)

	// Malformed payload must not abort the stream or reach the handler
	require.NoError(t, router.Dispatch(sse.Frame{Event: "variant", Data: `{"index": not-json`}))
	require.NoError(t, router.Dispatch(sse.Frame{Event: "status", Data: `{"stage":"processing"}`}))

	require.Len(t, h.events, 1)
	assert.Equal(t, EventStatus, h.events[0].Type())
}

func TestRouterIgnoresUnknownEventTypes(t *testing.T) {
	h := &recordingHandler{}
	router := NewRouter(h, nil)

	require.NoError(t, router.Dispatch(sse.Frame{Event: "telemetry", Data: `{"anything":true}`}))
	assert.Empty(t, h.events)
}
