package filter

import "golang.org/x/text/transform"

// Zone 66 LZW variant. A u32le decoded-length header is followed by a
// big-endian bitstream of (codeword, literal byte) pairs; codewords
// start at 9 bits and cycle 9→12→9 as the 8 K node table fills,
// re-entering at node 64 rather than zero.

const (
	z66Nodes    = 8192
	z66MaxStack = 65534
)

type z66Node struct {
	code     uint32
	nextCode byte
}

// Zone66Decode expands Zone 66 compression.
type Zone66Decode struct {
	br          bitReader
	outputLimit uint32
	total       uint32
	state       int
	codeLength  uint
	curDic      int
	maxDic      int
	nodes       [z66Nodes]z66Node
	code        uint32
	curCode     uint32
	stack       []byte
}

func (t *Zone66Decode) Reset() {
	t.br = bitReader{bigEndian: true}
	t.outputLimit = 4 // enough to allow reading the length field
	t.total = 0
	t.state = 0
	t.codeLength = 9
	t.curDic = 0
	t.maxDic = 255
	t.nodes = [z66Nodes]z66Node{}
	t.stack = t.stack[:0]
}

func (t *Zone66Decode) ResetSize(int64) { t.Reset() }

func (t *Zone66Decode) advanceDict() {
	t.curDic++
	if t.curDic >= t.maxDic {
		t.codeLength++
		if t.codeLength == 13 {
			t.codeLength = 9
			t.curDic = 64
			t.maxDic = 255
		} else {
			t.maxDic = (1 << t.codeLength) - 257
		}
	}
}

func (t *Zone66Decode) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	in := &byteSource{src: src}
	for nDst < len(dst) && t.total < t.outputLimit {
		switch t.state {
		case 0:
			// Decoded length, little-endian, so the output can stop at
			// the right byte.
			if len(src)-in.n < 4 {
				if atEOF {
					return nDst, in.n, corruptf("missing decoded-length header")
				}
				return nDst, in.n, transform.ErrShortSrc
			}
			t.outputLimit = uint32(src[in.n]) | uint32(src[in.n+1])<<8 |
				uint32(src[in.n+2])<<16 | uint32(src[in.n+3])<<24
			in.n += 4
			t.state = 1
		case 1:
			code, ok := t.br.read(in, t.codeLength)
			if !ok {
				nSrc = in.n
				if atEOF {
					return nDst, len(src), nil
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			t.code = code
			t.curCode = code
			t.state = 2
		case 2:
			if t.curCode < 256 {
				dst[nDst] = byte(t.curCode)
				nDst++
				t.total++
				if n := len(t.stack); n > 0 {
					t.curCode = uint32(t.stack[n-1])
					t.stack = t.stack[:n-1]
				} else {
					t.state = 3
				}
			} else {
				t.curCode -= 256
				t.stack = append(t.stack, t.nodes[t.curCode].nextCode)
				t.curCode = t.nodes[t.curCode].code
				if len(t.stack) > z66MaxStack {
					return nDst, in.n, corruptf("token stack exceeded 64k")
				}
			}
		case 3:
			value, ok := t.br.read(in, 8)
			if !ok {
				nSrc = in.n
				if atEOF {
					return nDst, len(src), nil
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			dst[nDst] = byte(value)
			nDst++
			t.total++

			if t.code >= 0x100+uint32(t.curDic) {
				// Codeword not yet in the dictionary; some shipped files
				// rely on it degrading to the first entry.
				t.code = 0x100
			}
			t.nodes[t.curDic].code = t.code
			t.nodes[t.curDic].nextCode = byte(value)
			t.advanceDict()
			t.state = 1
		}
	}
	nSrc = in.n
	if t.total >= t.outputLimit && t.state != 0 {
		return nDst, len(src), nil // done; trailing bits are padding
	}
	return nDst, nSrc, transform.ErrShortDst
}

// Zone66Encode stores data in the Zone 66 container format without
// attempting compression: each input pair is written as a literal
// codeword plus a raw byte, tracking the dictionary counters so the
// codeword width stays in step with the decoder.
type Zone66Encode struct {
	bw         bitWriter
	total      int64
	state      int
	codeLength uint
	curDic     int
	maxDic     int
	done       bool
}

func (t *Zone66Encode) Reset() {
	t.bw = bitWriter{bigEndian: true}
	t.state = 0
	t.codeLength = 9
	t.curDic = 0
	t.maxDic = 255
	t.done = false
}

func (t *Zone66Encode) ResetSize(decodedLen int64) {
	t.total = decodedLen
	t.Reset()
}

func (t *Zone66Encode) advanceDict() {
	t.curDic++
	if t.curDic >= t.maxDic {
		t.codeLength++
		if t.codeLength == 13 {
			t.codeLength = 9
			t.curDic = 64
			t.maxDic = 255
		} else {
			t.maxDic = (1 << t.codeLength) - 257
		}
	}
}

func (t *Zone66Encode) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	out := &byteSink{dst: dst}
	if !t.bw.drain(out) {
		return out.n, 0, transform.ErrShortDst
	}
	for nSrc < len(src) {
		if out.room() < 4 {
			return out.n, nSrc, transform.ErrShortDst
		}
		switch t.state {
		case 0:
			n := t.total
			out.put(byte(n))
			out.put(byte(n >> 8))
			out.put(byte(n >> 16))
			out.put(byte(n >> 24))
			t.state = 1
		case 1:
			t.bw.write(out, t.codeLength, uint32(src[nSrc]))
			nSrc++
			t.state = 2
		case 2:
			t.bw.write(out, 8, uint32(src[nSrc]))
			nSrc++
			t.advanceDict()
			t.state = 1
		}
	}
	if atEOF && !t.done {
		if out.room() < 8 {
			return out.n, nSrc, transform.ErrShortDst
		}
		if t.state == 0 {
			n := t.total
			out.put(byte(n))
			out.put(byte(n >> 8))
			out.put(byte(n >> 16))
			out.put(byte(n >> 24))
			t.state = 1
		}
		if !t.bw.flush(out) {
			return out.n, nSrc, transform.ErrShortDst
		}
		t.done = true
	}
	return out.n, nSrc, nil
}

// Interface guards
var (
	_ transform.Transformer = (*Zone66Decode)(nil)
	_ transform.Transformer = (*Zone66Encode)(nil)
)
