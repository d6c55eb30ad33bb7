// Package stream turns the raw bytes of a chat response into frames and interprets each frame's payload
// as a typed delta for the transcript.
package stream

import (
	"bytes"
	"errors"
	"io"
	"iter"
)

const (
	// DataPrefix marks the lines of a block that carry a frame payload.
	DataPrefix = "data: "
	// DoneSentinel is the payload that terminates a response.
	DoneSentinel = "[DONE]"

	readChunkSize = 4096
)

var blockDelimiter = []byte("\n\n")

// Frame is one payload extracted from a delimited block of the stream.
type Frame struct {
	Payload string
}

// Terminal reports whether the frame is the end-of-response sentinel.
func (f Frame) Terminal() bool {
	return f.Payload == DoneSentinel
}

// Decoder reassembles frames from chunks that are not aligned with block boundaries. The zero value is ready
// to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	pending []byte
}

// Feed appends chunk to the pending buffer and returns every frame completed by it, in stream order. The
// trailing, possibly incomplete block is kept for the next call.
func (d *Decoder) Feed(chunk []byte) []Frame {
	// The old buffer holds no delimiter, so one can only start at its last byte or later.
	start := max(0, len(d.pending)-len(blockDelimiter)+1)
	d.pending = append(d.pending, chunk...)

	var frames []Frame
	consumed := false
	for {
		idx := bytes.Index(d.pending[start:], blockDelimiter)
		if idx < 0 {
			break
		}
		idx += start
		start = 0
		frames = appendBlockFrames(frames, d.pending[:idx])
		d.pending = d.pending[idx+len(blockDelimiter):]
		consumed = true
	}

	// Copy the remainder out so consumed blocks can be collected.
	if len(d.pending) == 0 {
		d.pending = nil
	} else if consumed {
		d.pending = append([]byte(nil), d.pending...)
	}

	return frames
}

// Pending returns the number of buffered bytes that do not yet form a complete block.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Reset discards the pending buffer. A truncated trailing block is not a valid frame, so this is what
// end-of-stream does with it.
func (d *Decoder) Reset() {
	d.pending = nil
}

func appendBlockFrames(frames []Frame, block []byte) []Frame {
	for len(block) > 0 {
		line := block
		if i := bytes.IndexByte(block, '\n'); i >= 0 {
			line, block = block[:i], block[i+1:]
		} else {
			block = nil
		}
		if payload, ok := bytes.CutPrefix(line, []byte(DataPrefix)); ok {
			frames = append(frames, Frame{Payload: string(payload)})
		}
	}
	return frames
}

// Frames returns a lazy, forward-only sequence of the frames read from r. The sequence ends silently at EOF,
// discarding any incomplete trailing block. Any other read error is yielded once and ends the sequence.
// Closing r from another goroutine is the way to stop a blocked read.
func Frames(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		var dec Decoder
		buf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, f := range dec.Feed(buf[:n]) {
					if !yield(f, nil) {
						return
					}
				}
			}
			if err != nil {
				dec.Reset()
				if !errors.Is(err, io.EOF) {
					yield(Frame{}, err)
				}
				return
			}
		}
	}
}
