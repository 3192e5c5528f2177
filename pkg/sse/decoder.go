// Package sse decodes the newline-delimited event-stream frames produced by
// the optimize-stream endpoint. The decoder is chunk-oriented: callers feed
// raw body chunks exactly as the transport delivers them, and frames come out
// in wire order no matter where the chunk boundaries fall, including in the
// middle of a line or a multi-byte rune.
package sse

import (
	"bytes"
	"strings"
)

const (
	eventPrefix   = "event:"
	dataPrefix    = "data:"
	commentPrefix = ":"
)

// Frame is one decoded event:/data: unit, prior to JSON interpretation.
type Frame struct {
	Event string
	Data  string
}

// Decoder reassembles frames from arbitrarily-fragmented chunks. Not safe for
// concurrent use; each stream owns its own Decoder.
type Decoder struct {
	carry []byte

	event    string
	hasEvent bool
	data     string
	hasData  bool
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns all frames completed by it, in arrival
// order. The trailing unterminated line, if any, is retained until the next
// chunk. Bytes are only converted to string once a full line exists, so a
// rune split across chunks is never decoded early.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}

	d.carry = append(d.carry, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			break
		}

		line := d.carry[:idx]
		d.carry = d.carry[idx+1:]

		// Normalize CRLF
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}

		if frame, ok := d.processLine(string(line)); ok {
			frames = append(frames, frame)
		}
	}

	// Keep carry from aliasing the ever-growing backing array
	if len(d.carry) == 0 {
		d.carry = nil
	}

	return frames
}

// processLine classifies one complete line. A blank line terminates the
// current frame; it is emitted only when both event type and payload were
// seen, otherwise the partial state is dropped. Unrecognized lines are
// ignored for forward compatibility.
func (d *Decoder) processLine(line string) (Frame, bool) {
	if line == "" {
		frame := Frame{Event: d.event, Data: d.data}
		complete := d.hasEvent && d.hasData
		d.event, d.hasEvent = "", false
		d.data, d.hasData = "", false
		return frame, complete
	}

	switch {
	case strings.HasPrefix(line, eventPrefix):
		d.event = trimFieldValue(line[len(eventPrefix):])
		d.hasEvent = true
	case strings.HasPrefix(line, dataPrefix):
		d.data = trimFieldValue(line[len(dataPrefix):])
		d.hasData = true
	case strings.HasPrefix(line, commentPrefix):
		// Comment / keep-alive
	default:
		// Unknown field, ignore
	}

	return Frame{}, false
}

// Reset discards all buffered bytes and partial frame state.
func (d *Decoder) Reset() {
	d.carry = nil
	d.event, d.hasEvent = "", false
	d.data, d.hasData = "", false
}

// trimFieldValue strips the single optional space after the field colon.
func trimFieldValue(v string) string {
	return strings.TrimPrefix(v, " ")
}
