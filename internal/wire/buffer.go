// buffer.go — Reassembly buffer (C2). A bounded byte accumulator that turns
// arbitrarily fragmented TCP reads into complete frame payloads.
package wire

import (
	"bytes"
)

// fullThreshold is the "nearly full" watermark (§3) at which the buffer is
// eligible for the line-noise-flood safeguard.
const fullThreshold = 0.8

// ErrBufferOverflow is returned by Append when the resulting size would
// exceed MaxFrameSize; the buffer is left unmodified.
var ErrBufferOverflow = newFrameErr("reassembly buffer overflow")

// ReassemblyBuffer accumulates bytes for a single connection. It is not
// safe for concurrent use — each connection's reader task owns one
// exclusively, per spec §4.2's invariant.
type ReassemblyBuffer struct {
	buf []byte
}

// NewReassemblyBuffer returns an empty buffer.
func NewReassemblyBuffer() *ReassemblyBuffer {
	return &ReassemblyBuffer{buf: make([]byte, 0, 4096)}
}

// Len reports the number of buffered, unconsumed bytes.
func (b *ReassemblyBuffer) Len() int { return len(b.buf) }

// Append adds data to the buffer. Fails with ErrBufferOverflow (and leaves
// the buffer unchanged) if the result would exceed MaxFrameSize.
func (b *ReassemblyBuffer) Append(data []byte) error {
	if len(b.buf)+len(data) > MaxFrameSize {
		return ErrBufferOverflow
	}
	b.buf = append(b.buf, data...)
	return nil
}

// TryExtractOne attempts to parse and drain exactly one complete frame.
// Returns (nil, false, nil) if no complete frame is present yet.
// Returns a non-nil error (ErrMalformed) when the header is malformed —
// callers must fault the connection (FrameError) and need not call
// TryExtractOne again on this buffer.
func (b *ReassemblyBuffer) TryExtractOne() (payload []byte, ok bool, err error) {
	pr, err := Parse(b.buf)
	if err != nil {
		return nil, false, err
	}
	if !pr.Complete {
		return nil, false, nil
	}
	payload, tail := Extract(b.buf, pr)
	out := make([]byte, len(payload))
	copy(out, payload)
	b.buf = append(b.buf[:0], tail...)
	return out, true, nil
}

// ExtractAll repeatedly drains complete frames until none remain.
func (b *ReassemblyBuffer) ExtractAll() ([][]byte, error) {
	var out [][]byte
	for {
		payload, ok, err := b.TryExtractOne()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, payload)
	}
}

// ValidateAndCleanup implements the line-noise-flood safeguard (§3): if the
// buffer is at least 80% full and contains neither a content-length
// substring nor a complete header separator, it is almost certainly not a
// JSON-RPC frame at all — the buffer is discarded and false is returned.
// Otherwise the buffer is left untouched and true is returned.
func (b *ReassemblyBuffer) ValidateAndCleanup() bool {
	if float64(len(b.buf)) < fullThreshold*float64(MaxFrameSize) {
		return true
	}
	if _, end := findHeaderSeparator(b.buf); end >= 0 {
		return true
	}
	if bytes.Contains(bytes.ToLower(b.buf), []byte("content-length")) {
		return true
	}
	b.buf = b.buf[:0]
	return false
}
