package filter

import "golang.org/x/text/transform"

// God of Thunder LZSS. A four-byte header carries the decompressed
// length; the body is flag bytes gating eight tokens each, a token
// being either a literal byte or a two-byte back-reference into a
// 4 KiB circular dictionary.

const gotDictSize = 4096

// States for the God of Thunder LZSS decoder.
const (
	gotS0ReadLen = iota
	gotS1ReadFlags
	gotS2Literal
	gotS3GetOffset
	gotS4CopyOffset
)

// GotUnLZSS expands God of Thunder LZSS.
type GotUnLZSS struct {
	flags      byte
	blocksLeft int
	state      int
	lzssLen    int
	lzssPos    int
	dict       [gotDictSize]byte
	dictPos    int
	lenDecomp  int
	numDecomp  int
}

func (t *GotUnLZSS) Reset() {
	t.flags = 0
	t.blocksLeft = 0
	t.state = gotS0ReadLen
	t.lzssLen = 0
	t.dict = [gotDictSize]byte{}
	t.dictPos = 0
	t.lenDecomp = 0
	t.numDecomp = 0
}

func (t *GotUnLZSS) ResetSize(int64) { t.Reset() }

func (t *GotUnLZSS) addDict(c byte) {
	t.dict[t.dictPos] = c
	t.dictPos = (t.dictPos + 1) % gotDictSize
}

func (t *GotUnLZSS) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) &&
		(nSrc < len(src) || t.lzssLen > 0) &&
		(t.lenDecomp == 0 || t.numDecomp < t.lenDecomp) {
		switch t.state {
		case gotS0ReadLen:
			if len(src)-nSrc < 4 {
				if atEOF {
					return nDst, nSrc, corruptf("missing decompressed-length header")
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			t.lenDecomp = int(src[nSrc]) | int(src[nSrc+1])<<8
			nSrc += 4 // two length bytes plus two unused
			t.state = gotS1ReadFlags
		case gotS1ReadFlags:
			if t.blocksLeft == 0 {
				t.flags = src[nSrc]
				nSrc++
				t.blocksLeft = 8
			}
			if t.flags&1 != 0 {
				t.state = gotS2Literal
			} else {
				t.state = gotS3GetOffset
			}
			t.flags >>= 1
			t.blocksLeft--
		case gotS2Literal:
			t.addDict(src[nSrc])
			dst[nDst] = src[nSrc]
			nSrc++
			nDst++
			t.numDecomp++
			t.state = gotS1ReadFlags
		case gotS3GetOffset:
			if len(src)-nSrc < 2 {
				if atEOF {
					return nDst, nSrc, corruptf("truncated back-reference at offset %d", nSrc)
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			code := int(src[nSrc]) | int(src[nSrc+1])<<8
			nSrc += 2
			t.lzssLen = (code >> 12) + 2
			t.lzssPos = (gotDictSize + t.dictPos - (code & 0x0FFF)) % gotDictSize
			t.state = gotS4CopyOffset
		case gotS4CopyOffset:
			if t.lzssLen == 0 {
				t.state = gotS1ReadFlags
				break
			}
			c := t.dict[t.lzssPos]
			t.lzssPos = (t.lzssPos + 1) % gotDictSize
			t.addDict(c)
			dst[nDst] = c
			nDst++
			t.numDecomp++
			t.lzssLen--
		}
	}
	if t.lenDecomp > 0 && t.numDecomp >= t.lenDecomp {
		return nDst, len(src), nil // target size reached; trailing bytes are padding
	}
	if nDst == len(dst) && (nSrc < len(src) || t.lzssLen > 0) {
		return nDst, nSrc, transform.ErrShortDst
	}
	if !atEOF && nSrc == len(src) {
		return nDst, nSrc, transform.ErrShortSrc
	}
	return nDst, nSrc, nil
}

// States for the God of Thunder LZSS encoder.
const (
	gotE0Start = iota
	gotE1Code
	gotE2Data
)

// GotLZSS stores data in the God of Thunder container format without
// attempting compression: every flag byte marks eight literals.
type GotLZSS struct {
	total int64
	count int
	state int
}

func (t *GotLZSS) Reset() {
	t.count = 0
	t.state = gotE0Start
}

func (t *GotLZSS) ResetSize(decodedLen int64) {
	t.total = decodedLen
	t.Reset()
}

func (t *GotLZSS) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if t.state == gotE0Start && t.total > 65535 {
		return 0, 0, corruptf("this format only supports files less than 64kB in size")
	}
	for nDst < len(dst) && nSrc < len(src) {
		switch t.state {
		case gotE0Start:
			if len(dst)-nDst < 4 {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = byte(t.total)
			dst[nDst+1] = byte(t.total >> 8)
			dst[nDst+2] = 0x01
			dst[nDst+3] = 0x00
			nDst += 4
			t.state = gotE1Code
		case gotE1Code:
			dst[nDst] = 0xFF
			nDst++
			t.state = gotE2Data
			t.count = 8
		case gotE2Data:
			dst[nDst] = src[nSrc]
			nDst++
			nSrc++
			t.count--
			if t.count == 0 {
				t.state = gotE1Code
			}
		}
	}
	if atEOF && nSrc == len(src) && t.state == gotE0Start {
		// Zero-length input still carries its header.
		if len(dst)-nDst < 4 {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = byte(t.total)
		dst[nDst+1] = byte(t.total >> 8)
		dst[nDst+2] = 0x01
		dst[nDst+3] = 0x00
		nDst += 4
		t.state = gotE1Code
	}
	if nSrc < len(src) {
		return nDst, nSrc, transform.ErrShortDst
	}
	return nDst, nSrc, nil
}

// Interface guards
var (
	_ transform.Transformer = (*GotUnLZSS)(nil)
	_ transform.Transformer = (*GotLZSS)(nil)
)
