// Package filter implements the per-game byte-stream codecs: RLE and
// LZW variants, LZSS, byte-pair encoding, and additive/XOR stream
// ciphers. Every codec is a golang.org/x/text/transform.Transformer
// with stream.Codec's ResetSize extension, so decoders compose with
// transform.NewReader and encoders with transform.Bytes.
//
// Codecs are streaming and deterministic. Re-encoding decoded output
// need not reproduce the original bytes, but decoding any encoder's
// output reproduces the original input.
package filter

import (
	"errors"
	"fmt"
)

// ErrCorrupt reports that a decoder detected invalid encoded input: a
// back-reference larger than the dictionary, an LZW codeword used
// before it was defined, an oversized expansion, and so on.
var ErrCorrupt = errors.New("corrupt filtered data")

func corruptf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// byteSource walks a Transform src buffer, tracking consumption.
type byteSource struct {
	src []byte
	n   int
}

func (s *byteSource) next() (byte, bool) {
	if s.n >= len(s.src) {
		return 0, false
	}
	b := s.src[s.n]
	s.n++
	return b, true
}

// byteSink walks a Transform dst buffer, tracking production.
type byteSink struct {
	dst []byte
	n   int
}

func (s *byteSink) put(b byte) bool {
	if s.n >= len(s.dst) {
		return false
	}
	s.dst[s.n] = b
	s.n++
	return true
}

func (s *byteSink) room() int { return len(s.dst) - s.n }
