package filter

import "golang.org/x/text/transform"

// Dangerous Dave tileset RLE. A code byte with the high bit set
// means "copy the next (code&0x7F)+1 bytes verbatim"; with the high
// bit clear it means "repeat the following byte code+3 times".

// DDaveUnRLE expands Dangerous Dave RLE.
type DDaveUnRLE struct {
	count     int
	countByte byte
	copying   int
}

func (t *DDaveUnRLE) Reset() {
	t.count = 0
	t.copying = 0
}

func (t *DDaveUnRLE) ResetSize(int64) { t.Reset() }

func (t *DDaveUnRLE) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && (nSrc < len(src) || t.count > 0) {
		switch {
		case t.count > 0:
			dst[nDst] = t.countByte
			nDst++
			t.count--
		case t.copying > 0:
			dst[nDst] = src[nSrc]
			nDst++
			nSrc++
			t.copying--
		case src[nSrc]&0x80 != 0:
			t.copying = 1 + int(src[nSrc]&0x7F)
			nSrc++
		default:
			if nSrc+2 > len(src) {
				if atEOF {
					return nDst, nSrc, corruptf("data ended on RLE count byte at offset %d", nSrc)
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			t.count = 3 + int(src[nSrc])
			t.countByte = src[nSrc+1]
			nSrc += 2
		}
	}
	if nSrc < len(src) || t.count > 0 {
		return nDst, nSrc, transform.ErrShortDst
	}
	if !atEOF && t.copying > 0 && nSrc == len(src) {
		return nDst, nSrc, transform.ErrShortSrc
	}
	return nDst, nSrc, nil
}

// Steps for the Dangerous Dave RLE encoder.
const (
	ddaveStepStart       = 0
	ddaveStepScan        = 10
	ddaveStepChanged     = 11
	ddaveStepMaxRun      = 21
	ddaveStepRunCount    = 25
	ddaveStepRunByte     = 26
	ddaveStepFlushCode   = 50
	ddaveStepFlushBuffer = 51
)

// DDaveRLE compresses with Dangerous Dave RLE. Literal bytes are
// batched into escape blocks of up to 128; runs of three or more
// repeats become count codes, capped at 130 per event.
type DDaveRLE struct {
	buf    [128]byte
	buflen int
	prev   byte
	count  int
	step   int
}

func (t *DDaveRLE) Reset() {
	t.buflen = 0
	t.prev = 0
	t.count = 0
	t.step = ddaveStepStart
}

func (t *DDaveRLE) ResetSize(int64) { t.Reset() }

func (t *DDaveRLE) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	flushing := func() bool { return atEOF && nSrc == len(src) }
	for nDst < len(dst) && (nSrc < len(src) || (flushing() && (t.count > 0 || t.buflen > 0))) {
		if flushing() && t.step < 20 {
			// No more input, just drain what is queued.
			if t.buflen > 0 && t.count == 0 {
				t.step = ddaveStepFlushCode
			} else {
				t.step = ddaveStepChanged
			}
		}
		switch t.step {
		case ddaveStepStart:
			t.prev = src[nSrc]
			nSrc++
			t.count = 1
			t.step = ddaveStepScan
		case ddaveStepScan:
			if nSrc < len(src) && src[nSrc] == t.prev {
				t.count++
				nSrc++
				if t.count == 130 {
					// Maximum repeat reached, write out a code now.
					dst[nDst] = 0x7F
					nDst++
					t.step = ddaveStepMaxRun
				} else if t.count == 3 && t.buflen > 0 {
					// The run is now worth a repeat code, flush the escaped
					// literals before it.
					t.step = ddaveStepFlushCode
				}
				break
			}
			t.step = ddaveStepChanged
		case ddaveStepChanged:
			if t.count >= 3 {
				if t.buflen > 0 {
					t.step = ddaveStepFlushCode
					break
				}
				t.step = ddaveStepRunCount
				break
			}
			// Repeats too short for a code; fold them into the escape
			// buffer instead.
			for t.count > 0 && t.buflen < 128 {
				t.buf[t.buflen] = t.prev
				t.buflen++
				t.count--
			}
			if t.buflen == 128 {
				t.step = ddaveStepFlushCode
				break
			}
			t.step = ddaveStepStart
		case ddaveStepMaxRun:
			dst[nDst] = t.prev
			nDst++
			t.count = 0
			t.step = ddaveStepStart
		case ddaveStepRunCount:
			dst[nDst] = byte(t.count - 3)
			nDst++
			t.step = ddaveStepRunByte
		case ddaveStepRunByte:
			dst[nDst] = t.prev
			nDst++
			t.count = 0
			t.step = ddaveStepScan
		case ddaveStepFlushCode:
			dst[nDst] = byte(0x80 + t.buflen - 1)
			nDst++
			t.step = ddaveStepFlushBuffer
		case ddaveStepFlushBuffer:
			n := copy(dst[nDst:], t.buf[:t.buflen])
			nDst += n
			if n == t.buflen {
				t.step = ddaveStepScan
			} else {
				copy(t.buf[:], t.buf[n:t.buflen])
			}
			t.buflen -= n
		}
	}
	if nDst == len(dst) && (nSrc < len(src) || (flushing() && (t.count > 0 || t.buflen > 0))) {
		return nDst, nSrc, transform.ErrShortDst
	}
	if !atEOF && nSrc == len(src) && (t.count > 0 || t.buflen > 0 || t.step >= 20) {
		return nDst, nSrc, transform.ErrShortSrc
	}
	return nDst, nSrc, nil
}

// Interface guards
var (
	_ transform.Transformer = (*DDaveUnRLE)(nil)
	_ transform.Transformer = (*DDaveRLE)(nil)
)
