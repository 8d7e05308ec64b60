package filter

import "golang.org/x/text/transform"

// LZW flag bits. Each game's variant tweaks one or two of these.
type LZWFlags uint

const (
	// LZWBigEndian packs codeword bits into bytes most significant
	// first; the default is least significant first.
	LZWBigEndian LZWFlags = 1 << iota

	// LZWNoBitsizeReset keeps the current codeword width across a
	// dictionary reset instead of going back to the initial width.
	LZWNoBitsizeReset

	// LZWFlushOnReset pads the bitstream to a byte boundary when the
	// dictionary is reset.
	LZWFlushOnReset

	// LZWEOFParamValid indicates a codeword is reserved for EOF.
	LZWEOFParamValid

	// LZWResetParamValid indicates a codeword is reserved for
	// dictionary reset.
	LZWResetParamValid
)

// LZWParams selects a concrete LZW variant.
//
// EOFCode and ResetCode are absolute codeword values when positive.
// Zero or negative values are relative to the top of the current
// codeword space: 0 is the maximum codeword at the current width, -1
// one below it, and so on, tracking the width as it grows.
type LZWParams struct {
	InitBits  uint
	MaxBits   uint
	FirstCode int
	EOFCode   int
	ResetCode int
	Flags     LZWFlags
}

func (p *LZWParams) reservedTop() int {
	n := 0
	if p.Flags&LZWEOFParamValid != 0 && p.EOFCode <= 0 {
		n++
	}
	if p.Flags&LZWResetParamValid != 0 && p.ResetCode <= 0 {
		n++
	}
	return n
}

func (p *LZWParams) eofAt(width uint) int {
	if p.Flags&LZWEOFParamValid == 0 {
		return -1
	}
	if p.EOFCode > 0 {
		return p.EOFCode
	}
	return int(mask32(width)) + p.EOFCode
}

func (p *LZWParams) resetAt(width uint) int {
	if p.Flags&LZWResetParamValid == 0 {
		return -1
	}
	if p.ResetCode > 0 {
		return p.ResetCode
	}
	return int(mask32(width)) + p.ResetCode
}

// maxDefined is the number of dictionary entries that fit below the
// reserved top codes at the maximum width.
func (p *LZWParams) maxDefined() int {
	return int(mask32(p.MaxBits)) - p.reservedTop() - p.FirstCode + 1
}

// bumpWidth grows width so the next codeword in the stream can carry
// the highest value the encoder may emit. Both ends of the stream
// apply this before every codeword, which keeps them in step.
func (p *LZWParams) bumpWidth(width uint, defined int) uint {
	for width < p.MaxBits && p.FirstCode+defined > int(mask32(width))-p.reservedTop() {
		width++
	}
	return width
}

// LZWDecode is the decompression side of the parameterised LZW.
type LZWDecode struct {
	p LZWParams

	br      bitReader
	width   uint
	prefix  []int  // per entry: prefix codeword value
	suffix  []byte // per entry: appended byte
	prev    int
	first   byte // first byte of prev's expansion
	pending []byte
	done    bool
}

// NewLZWDecode returns a decoder for the given variant.
func NewLZWDecode(p LZWParams) *LZWDecode {
	d := &LZWDecode{p: p}
	d.Reset()
	return d
}

func (d *LZWDecode) Reset() {
	d.br = bitReader{bigEndian: d.p.Flags&LZWBigEndian != 0}
	d.width = d.p.InitBits
	d.resetDict()
	d.pending = nil
	d.done = false
}

func (d *LZWDecode) ResetSize(int64) { d.Reset() }

func (d *LZWDecode) resetDict() {
	d.prefix = d.prefix[:0]
	d.suffix = d.suffix[:0]
	d.prev = -1
}

// expand resolves a codeword into bytes, appended to d.pending in
// output order.
func (d *LZWDecode) expand(code int) error {
	var stack []byte
	for code >= d.p.FirstCode {
		idx := code - d.p.FirstCode
		if idx >= len(d.prefix) {
			return corruptf("codeword %d used before it was defined", code)
		}
		stack = append(stack, d.suffix[idx])
		code = d.prefix[idx]
		if len(stack) > 1<<d.p.MaxBits {
			return corruptf("codeword expansion loop")
		}
	}
	if code < 0 || code > 255 {
		return corruptf("codeword %d has no literal root", code)
	}
	d.pending = append(d.pending, byte(code))
	for i := len(stack) - 1; i >= 0; i-- {
		d.pending = append(d.pending, stack[i])
	}
	return nil
}

func (d *LZWDecode) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	in := &byteSource{src: src}
	for {
		// Drain any expansion left over from the previous codeword.
		if len(d.pending) > 0 {
			n := copy(dst[nDst:], d.pending)
			nDst += n
			d.pending = d.pending[n:]
			if len(d.pending) > 0 {
				return nDst, nSrc + in.n, transform.ErrShortDst
			}
			d.pending = nil
		}
		if d.done {
			in.n = len(src) - nSrc // swallow any trailing bytes
			return nDst, nSrc + in.n, nil
		}

		// The decoder's dictionary trails the encoder's by one entry
		// (an entry is only learnt from the following codeword), so
		// count the in-flight entry when sizing the next codeword.
		lag := 0
		if d.prev >= 0 {
			lag = 1
		}
		d.width = d.p.bumpWidth(d.width, len(d.prefix)+lag)
		code, ok := d.br.read(in, d.width)
		if !ok {
			nSrc += in.n
			if atEOF {
				// Stream ends on the bit boundary; any partial codeword
				// is padding.
				return nDst, nSrc, nil
			}
			return nDst, nSrc, transform.ErrShortSrc
		}

		if int(code) == d.p.eofAt(d.width) {
			d.done = true
			continue
		}
		if int(code) == d.p.resetAt(d.width) {
			d.resetDict()
			if d.p.Flags&LZWNoBitsizeReset == 0 {
				d.width = d.p.InitBits
			}
			if d.p.Flags&LZWFlushOnReset != 0 {
				d.br.align()
			}
			continue
		}

		mark := len(d.pending)
		switch {
		case int(code) < 256 || int(code)-d.p.FirstCode < len(d.prefix):
			if err := d.expand(int(code)); err != nil {
				return nDst, nSrc + in.n, err
			}
		case int(code)-d.p.FirstCode == len(d.prefix) && d.prev >= 0:
			// The codeword being defined right now: prev + first(prev).
			if err := d.expand(d.prev); err != nil {
				return nDst, nSrc + in.n, err
			}
			d.pending = append(d.pending, d.pending[mark])
		default:
			return nDst, nSrc + in.n, corruptf("codeword %d used before it was defined", code)
		}

		if d.prev >= 0 && len(d.prefix) < d.p.maxDefined() {
			d.prefix = append(d.prefix, d.prev)
			d.suffix = append(d.suffix, d.pending[mark])
		}
		d.prev = int(code)
	}
}

// LZWEncode is the compression side of the parameterised LZW.
type LZWEncode struct {
	p LZWParams

	bw     bitWriter
	width  uint
	dict   map[int]int // (prefix<<8 | byte) -> codeword
	next   int         // next codeword value to define
	prefix int
	done   bool
}

// NewLZWEncode returns an encoder for the given variant.
func NewLZWEncode(p LZWParams) *LZWEncode {
	e := &LZWEncode{p: p}
	e.Reset()
	return e
}

func (e *LZWEncode) Reset() {
	e.bw = bitWriter{bigEndian: e.p.Flags&LZWBigEndian != 0}
	e.width = e.p.InitBits
	e.resetDict()
	e.prefix = -1
	e.done = false
}

func (e *LZWEncode) ResetSize(int64) { e.Reset() }

func (e *LZWEncode) resetDict() {
	e.dict = make(map[int]int)
	e.next = e.p.FirstCode
}

func (e *LZWEncode) defined() int { return e.next - e.p.FirstCode }

func (e *LZWEncode) emit(out *byteSink, code int) bool {
	e.width = e.p.bumpWidth(e.width, e.defined())
	return e.bw.write(out, e.width, uint32(code))
}

func (e *LZWEncode) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	out := &byteSink{dst: dst}
	if !e.bw.drain(out) {
		return out.n, 0, transform.ErrShortDst
	}
	for nSrc < len(src) {
		c := int(src[nSrc])
		if e.prefix < 0 {
			e.prefix = c
			nSrc++
			continue
		}
		if code, ok := e.dict[e.prefix<<8|c]; ok {
			e.prefix = code
			nSrc++
			continue
		}
		full := e.emit(out, e.prefix)
		if e.defined() < e.p.maxDefined() {
			e.dict[e.prefix<<8|c] = e.next
			e.next++
		} else if e.p.Flags&LZWResetParamValid != 0 {
			ok := e.bw.write(out, e.width, uint32(e.p.resetAt(e.width)))
			full = full && ok
			e.resetDict()
			if e.p.Flags&LZWNoBitsizeReset == 0 {
				e.width = e.p.InitBits
			}
			if e.p.Flags&LZWFlushOnReset != 0 {
				ok = e.bw.flush(out)
				full = full && ok
			}
		}
		e.prefix = c
		nSrc++
		if !full {
			return out.n, nSrc, transform.ErrShortDst
		}
	}
	if !atEOF {
		return out.n, nSrc, nil
	}
	if !e.done {
		// Queue the final codewords exactly once; bits the sink cannot
		// take yet stay pending and drain on the next call.
		if e.prefix >= 0 {
			e.emit(out, e.prefix)
			e.prefix = -1
		}
		if e.p.Flags&LZWEOFParamValid != 0 {
			e.bw.write(out, e.width, uint32(e.p.eofAt(e.width)))
		}
		e.done = true
		if !e.bw.flush(out) {
			return out.n, nSrc, transform.ErrShortDst
		}
	}
	return out.n, nSrc, nil
}

// Interface guards
var (
	_ transform.Transformer = (*LZWDecode)(nil)
	_ transform.Transformer = (*LZWEncode)(nil)
)
