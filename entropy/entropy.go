// Package entropy relays cryptographic randomness from a host-provided
// channel to code that cannot reach an operating system entropy device.
// The package holds no entropy state of its own and never fabricates
// bytes: every byte written comes from one call to the host channel.
package entropy

import "errors"

// ErrUnavailable reports that no host entropy channel is reachable. The
// source never falls back to a weaker or locally fabricated substitute.
var ErrUnavailable = errors.New("entropy: host random byte channel is unavailable")

// ByteFunc is a host-owned channel yielding one random byte per call.
type ByteFunc func() byte

// Source forwards randomness requests to a host channel byte by byte.
type Source struct {
	next ByteFunc
}

// NewSource returns a source backed by the given channel. A nil channel
// is permitted at construction; Fill reports ErrUnavailable when used.
func NewSource(next ByteFunc) *Source {
	return &Source{next: next}
}

// Fill populates buf with len(buf) bytes from the host channel, one call
// per byte, in request order, with no buffering or batching.
func (s *Source) Fill(buf []byte) error {
	if s == nil || s.next == nil {
		return ErrUnavailable
	}
	for i := range buf {
		buf[i] = s.next()
	}
	return nil
}
