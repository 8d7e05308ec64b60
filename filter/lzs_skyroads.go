package filter

import "golang.org/x/text/transform"

// SkyRoads LZS. Three header bytes declare the bit widths used for
// run counts, short back-reference distances and long back-reference
// distances; the body is a big-endian bitstream of two-bit flag codes
// selecting literal, short reference or long reference.

const skyroadsDictSize = 4096

// States for the SkyRoads LZS decoder.
const (
	lzsS0ReadLen = iota
	lzsS1ReadFlag1
	lzsS2ReadFlag2
	lzsS3DecompShort
	lzsS4DecompLong
	lzsS5CopyByte
	lzsS6GetCount
	lzsS7CopyOffset
)

// SkyRoadsUnLZS expands SkyRoads LZS.
type SkyRoadsUnLZS struct {
	br      bitReader
	state   int
	width1  uint
	width2  uint
	width3  uint
	dist    int
	lzsLen  int
	lzsPos  int
	dict    [skyroadsDictSize]byte
	dictPos int
}

func (t *SkyRoadsUnLZS) Reset() {
	t.br = bitReader{bigEndian: true}
	t.state = lzsS0ReadLen
	t.lzsLen = 0
	t.dict = [skyroadsDictSize]byte{}
	t.dictPos = 0
}

func (t *SkyRoadsUnLZS) ResetSize(int64) { t.Reset() }

func (t *SkyRoadsUnLZS) addDict(c byte) {
	t.dict[t.dictPos] = c
	t.dictPos = (t.dictPos + 1) % skyroadsDictSize
}

func (t *SkyRoadsUnLZS) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	in := &byteSource{src: src}
	for nDst < len(dst) && (in.n < len(src) || t.lzsLen > 0 || t.br.nacc > 0 || t.state == lzsS7CopyOffset) {
		needMore := false
		switch t.state {
		case lzsS0ReadLen:
			if len(src)-in.n < 3 {
				needMore = true
				break
			}
			t.width1 = uint(src[in.n])
			t.width2 = uint(src[in.n+1])
			t.width3 = uint(src[in.n+2])
			in.n += 3
			if t.width1 == 0 || t.width1 > 16 || t.width2 > 16 || t.width3 > 16 {
				return nDst, in.n, corruptf("implausible LZS bit widths %d/%d/%d", t.width1, t.width2, t.width3)
			}
			t.state = lzsS1ReadFlag1
		case lzsS1ReadFlag1:
			code, ok := t.br.read(in, 1)
			if !ok {
				needMore = true
				break
			}
			if code == 0 {
				t.state = lzsS3DecompShort
			} else {
				t.state = lzsS2ReadFlag2
			}
		case lzsS2ReadFlag2:
			code, ok := t.br.read(in, 1)
			if !ok {
				needMore = true
				break
			}
			if code == 0 {
				t.state = lzsS4DecompLong
			} else {
				t.state = lzsS5CopyByte
			}
		case lzsS3DecompShort:
			code, ok := t.br.read(in, t.width2)
			if !ok {
				needMore = true
				break
			}
			t.dist = 2 + int(code)
			t.state = lzsS6GetCount
		case lzsS4DecompLong:
			code, ok := t.br.read(in, t.width3)
			if !ok {
				needMore = true
				break
			}
			t.dist = 2 + (1 << t.width2) + int(code)
			t.state = lzsS6GetCount
		case lzsS5CopyByte:
			code, ok := t.br.read(in, 8)
			if !ok {
				needMore = true
				break
			}
			t.addDict(byte(code))
			dst[nDst] = byte(code)
			nDst++
			t.state = lzsS1ReadFlag1
		case lzsS6GetCount:
			code, ok := t.br.read(in, t.width1)
			if !ok {
				needMore = true
				break
			}
			t.lzsLen = 2 + int(code)
			if t.lzsLen > skyroadsDictSize {
				return nDst, in.n, corruptf("back-reference longer than the dictionary")
			}
			t.state = lzsS7CopyOffset
			t.lzsPos = (skyroadsDictSize + t.dictPos - t.dist) % skyroadsDictSize
		case lzsS7CopyOffset:
			if t.lzsLen == 0 {
				t.state = lzsS1ReadFlag1
				break
			}
			c := t.dict[t.lzsPos]
			t.lzsPos = (t.lzsPos + 1) % skyroadsDictSize
			t.addDict(c)
			dst[nDst] = c
			nDst++
			t.lzsLen--
		}
		if needMore {
			if atEOF {
				// Trailing bits that cannot form a token are padding.
				return nDst, len(src), nil
			}
			return nDst, in.n, transform.ErrShortSrc
		}
	}
	nSrc = in.n
	if nDst == len(dst) && (nSrc < len(src) || t.lzsLen > 0) {
		return nDst, nSrc, transform.ErrShortDst
	}
	if !atEOF && nSrc == len(src) && t.state != lzsS0ReadLen {
		return nDst, nSrc, transform.ErrShortSrc
	}
	return nDst, nSrc, nil
}

// SkyRoadsLZS stores data in the SkyRoads container format without
// attempting compression: every byte is emitted as a literal token.
type SkyRoadsLZS struct {
	bw     bitWriter
	header bool
}

func (t *SkyRoadsLZS) Reset() {
	t.bw = bitWriter{bigEndian: true}
	t.header = false
}

func (t *SkyRoadsLZS) ResetSize(int64) { t.Reset() }

func (t *SkyRoadsLZS) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	out := &byteSink{dst: dst}
	if !t.bw.drain(out) {
		return out.n, 0, transform.ErrShortDst
	}
	if !t.header {
		// Bit widths for the back-references this encoder never emits.
		if out.room() < 3 {
			return out.n, 0, transform.ErrShortDst
		}
		out.put(8)
		out.put(4)
		out.put(12)
		t.header = true
	}
	for nSrc < len(src) {
		if out.room() < 3 {
			return out.n, nSrc, transform.ErrShortDst
		}
		t.bw.write(out, 2, 0x03)
		t.bw.write(out, 8, uint32(src[nSrc]))
		nSrc++
	}
	if atEOF {
		if !t.bw.flush(out) {
			return out.n, nSrc, transform.ErrShortDst
		}
	}
	return out.n, nSrc, nil
}

// Interface guards
var (
	_ transform.Transformer = (*SkyRoadsUnLZS)(nil)
	_ transform.Transformer = (*SkyRoadsLZS)(nil)
)
