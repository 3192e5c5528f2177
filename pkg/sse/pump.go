package sse

import (
	"context"
	"errors"
	"io"
)

// ErrStop is returned by a frame handler to end the pump early without
// surfacing an error to the caller.
var ErrStop = errors.New("sse: stop")

const readBufferSize = 32 * 1024

// Pump reads r chunk by chunk, feeds the decoder, and invokes fn for each
// complete frame in order. Cancellation is cooperative: the context is
// checked before each read and between frames, never in the middle of
// handling a single frame. Returns nil on clean EOF or ErrStop.
func Pump(ctx context.Context, r io.Reader, fn func(Frame) error) error {
	dec := NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(frame); err != nil {
					if errors.Is(err, ErrStop) {
						return nil
					}
					return err
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				// An aborted body read reports a transport error; the
				// context tells the real story.
				return ctxErr
			}
			return readErr
		}
	}
}
