package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalrav/shipgrid/pkg/api"
	sgerrors "github.com/kalrav/shipgrid/pkg/errors"
)

type fakeOpener struct {
	body io.ReadCloser
	err  error
}

func (f *fakeOpener) OptimizeStream(ctx context.Context, req api.OptimizeRequest) (*api.StreamHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.StreamHandle{Body: f.body}, nil
}

func openerFor(stream string) *fakeOpener {
	return &fakeOpener{body: io.NopCloser(strings.NewReader(stream))}
}

func frame(event, data string) string {
	return "event:" + event + "\ndata:" + data + "\n\n"
}

func variantFrame(index, completed, total, progress int) string {
	return frame("variant", fmt.Sprintf(
		`{"index":%d,"tile_index":%d,"variant_index":0,"variant_type":"white_bg","url":"https://cdn/v%d.jpg","tile_name":"tile","variant_label":"label","completed":%d,"total":%d,"progress":%d}`,
		index, index, index, completed, total, progress))
}

func runSession(t *testing.T, stream string) (State, error) {
	t.Helper()
	sess := NewSession(openerFor(stream), nil)
	return sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
}

func TestSessionEndToEnd(t *testing.T) {
	stream := frame("status", `{"stage":"generating","progress":0,"message":"start"}`) +
		variantFrame(0, 1, 3, 45) +
		variantFrame(1, 2, 3, 70) +
		variantFrame(2, 3, 3, 95) +
		frame("complete", `{"id":"x","total":3,"successful":3,"failed":0,"grid_url":"https://cdn/grid.png","variant_urls":["a","b","c"],"processing_time_ms":6120}`)

	state, err := runSession(t, stream)
	require.NoError(t, err)

	assert.Equal(t, StageComplete, state.Stage)
	assert.Equal(t, 100, state.Progress)
	require.Len(t, state.Variants, 3)
	// Arrival order preserved
	for i, v := range state.Variants {
		assert.Equal(t, i, v.Index)
	}
	require.NotNil(t, state.Result)
	assert.Equal(t, "x", state.Result.ID)
	assert.Equal(t, 3, state.Result.Successful)
}

func TestSessionFatalErrorStopsFolding(t *testing.T) {
	// Two variants fold, then a fatal error; the two variants after it
	// must never be applied.
	stream := variantFrame(0, 1, 30, 23) +
		variantFrame(1, 2, 30, 26) +
		frame("error", `{"message":"Image generation failed: model unavailable","recoverable":false}`) +
		variantFrame(2, 3, 30, 29) +
		variantFrame(3, 4, 30, 32)

	state, err := runSession(t, stream)
	require.Error(t, err)
	assert.True(t, sgerrors.IsCode(err, sgerrors.ErrCodeStreamFatal))

	assert.Equal(t, StageError, state.Stage)
	assert.Equal(t, "Image generation failed: model unavailable", state.Message)
	assert.Len(t, state.Variants, 2)
}

func TestSessionRecoverableErrorsAccumulate(t *testing.T) {
	stream := variantFrame(0, 1, 30, 23) +
		frame("error", `{"message":"Variant 2 failed: encode error","recoverable":true,"variant_index":1}`) +
		variantFrame(2, 2, 30, 26) +
		frame("complete", `{"id":"y","total":30,"successful":2,"failed":1}`)

	state, err := runSession(t, stream)
	require.NoError(t, err)

	assert.Equal(t, StageComplete, state.Stage)
	assert.Len(t, state.Variants, 2)
	require.Len(t, state.RecoverableErrors, 1)
	assert.Contains(t, state.RecoverableErrors[0], "Variant 2 failed")
}

func TestSessionStageTransitionsForwardOnly(t *testing.T) {
	stream := frame("status", `{"stage":"generating","progress":0,"message":"gen"}`) +
		frame("status", `{"stage":"uploading","progress":20,"message":"upload"}`) +
		// Regressive update: stage stays, message still freshens
		frame("status", `{"stage":"processing","progress":15,"message":"late processing"}`) +
		frame("complete", `{"id":"z","total":0,"successful":0,"failed":0}`)

	state, err := runSession(t, stream)
	require.NoError(t, err)

	assert.Equal(t, StageComplete, state.Stage)
	// Progress never went backwards from the regressive status
	assert.Equal(t, 100, state.Progress)
}

func TestSessionTotalRevisionLastWins(t *testing.T) {
	stream := variantFrame(0, 1, 30, 23) +
		variantFrame(1, 2, 24, 28) + // server revised total downward
		frame("complete", `{"id":"w","total":24,"successful":2,"failed":0}`)

	state, err := runSession(t, stream)
	require.NoError(t, err)
	assert.Equal(t, 24, state.Total)
	assert.LessOrEqual(t, len(state.Variants), state.Total)
}

func TestSessionTransportFailureBecomesFatalState(t *testing.T) {
	opener := &fakeOpener{err: &api.APIError{
		StatusCode: http.StatusForbidden,
		Message:    "No credits remaining. Please purchase credits to continue.",
	}}
	sess := NewSession(opener, nil)

	state, err := sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
	require.Error(t, err)
	assert.True(t, sgerrors.IsCode(err, sgerrors.ErrCodeStreamFatal))

	assert.Equal(t, StageError, state.Stage)
	assert.Contains(t, state.Message, "No credits remaining")
}

func TestSessionEOFWithoutCompleteIsFatal(t *testing.T) {
	state, err := runSession(t, variantFrame(0, 1, 30, 23))

	require.Error(t, err)
	assert.Equal(t, StageError, state.Stage)
	assert.Len(t, state.Variants, 1, "variants before the drop are kept")
}

func TestSessionCancelSuppressesLateEvents(t *testing.T) {
	pr, pw := io.Pipe()
	sess := NewSession(&fakeOpener{body: pr}, nil)

	var mu sync.Mutex
	var callbacks int
	sess.Observe(func(State) {
		mu.Lock()
		callbacks++
		mu.Unlock()
	})

	type result struct {
		state State
		err   error
	}
	done := make(chan result, 1)
	go func() {
		st, err := sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
		done <- result{st, err}
	}()

	// Deliver one variant and wait for it to fold
	go pw.Write([]byte(variantFrame(0, 1, 30, 23)))
	require.Eventually(t, func() bool {
		return len(sess.State().Variants) == 1
	}, time.Second, 5*time.Millisecond)

	sess.Cancel()

	// Frames already in flight when cancel was requested must be ignored
	go func() {
		pw.Write([]byte(frame("complete", `{"id":"late","total":30,"successful":1,"failed":0}`)))
		pw.Close()
	}()

	res := <-done
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Nil(t, res.state.Result, "late complete must not be folded after cancel")
	assert.Len(t, res.state.Variants, 1)

	mu.Lock()
	got := callbacks
	mu.Unlock()
	assert.Equal(t, 1, got, "no observer callback after cancel")
}

func TestSessionIsSingleUse(t *testing.T) {
	sess := NewSession(openerFor(frame("complete", `{"id":"a","total":0,"successful":0,"failed":0}`)), nil)

	_, err := sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
	require.NoError(t, err)

	_, err = sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
	require.Error(t, err)
}

func TestSessionSnapshotIsolation(t *testing.T) {
	stream := variantFrame(0, 1, 3, 50) +
		frame("complete", `{"id":"iso","total":3,"successful":1,"failed":0}`)

	sess := NewSession(openerFor(stream), nil)
	state, err := sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
	require.NoError(t, err)

	// Mutating the snapshot must not touch the session's state
	state.Variants[0].URL = "tampered"
	fresh := sess.State()
	assert.Equal(t, "https://cdn/v0.jpg", fresh.Variants[0].URL)
}

func TestSessionObserverSeesProgression(t *testing.T) {
	stream := frame("status", `{"stage":"generating","progress":0,"message":"start"}`) +
		variantFrame(0, 1, 3, 45) +
		frame("complete", `{"id":"obs","total":3,"successful":1,"failed":0}`)

	sess := NewSession(openerFor(stream), nil)

	var stages []Stage
	sess.Observe(func(st State) {
		stages = append(stages, st.Stage)
	})

	_, err := sess.Run(context.Background(), api.OptimizeRequest{File: strings.NewReader("img")})
	require.NoError(t, err)

	require.Len(t, stages, 3)
	assert.Equal(t, StageComplete, stages[2])
}
