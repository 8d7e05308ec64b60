package filter

import "golang.org/x/text/transform"

// Stargunner byte-pair encoding. After a "PGBP" + u32le decoded-size
// header, the input is a series of chunks, each a u16le length
// followed by a dictionary of codeword→byte-pair expansions and a
// length-prefixed body. Each chunk expands to 4 KiB (the final chunk
// to whatever remains of the decoded size).
//
// Only decompression exists; no encoder for this scheme is known.

const (
	bpeChunkSize    = 4096
	bpeCmpChunkSize = bpeChunkSize + 256 + 2 // worst case plus the chunk length
)

// StargunnerDecode expands Stargunner BPE.
type StargunnerDecode struct {
	gotHeader bool
	finalSize uint32
	bufIn     [bpeCmpChunkSize]byte
	lenBufIn  int
	bufOut    [bpeChunkSize]byte
	posOut    int
}

func (t *StargunnerDecode) Reset() {
	t.gotHeader = false
	t.lenBufIn = 0
	t.posOut = bpeChunkSize
}

func (t *StargunnerDecode) ResetSize(int64) { t.Reset() }

// explodeChunk expands one chunk's worth of BPE data into out.
func explodeChunk(in []byte, out []byte) error {
	var tableA, tableB [256]byte
	inpos := 0
	outpos := 0

	for outpos < len(out) {
		// Each byte expands to itself until the dictionary says otherwise.
		for i := 0; i < 256; i++ {
			tableA[i] = byte(i)
		}

		tablepos := 0
		for tablepos < 256 {
			if inpos >= len(in) {
				return corruptf("chunk truncated inside dictionary")
			}
			code := in[inpos]
			inpos++

			// High bit set: skip that many entries (they keep their
			// expand-to-self initialisation).
			if code > 127 {
				tablepos += int(code) - 127
				code = 0
			}
			if tablepos == 256 {
				break
			}

			for i := 0; i <= int(code); i++ {
				if tablepos >= 256 {
					return corruptf("dictionary was larger than 256 bytes")
				}
				if inpos >= len(in) {
					return corruptf("chunk truncated inside dictionary")
				}
				data := in[inpos]
				inpos++
				tableA[tablepos] = data
				if tablepos != int(data) {
					if inpos >= len(in) {
						return corruptf("chunk truncated inside dictionary")
					}
					tableB[tablepos] = in[inpos]
					inpos++
				}
				tablepos++
			}
		}

		if inpos+2 > len(in) {
			return corruptf("chunk truncated before body length")
		}
		blockLen := int(in[inpos]) | int(in[inpos+1])<<8
		inpos += 2

		var expbuf [32]byte
		expbufpos := 0
		for {
			var code byte
			if expbufpos > 0 {
				expbufpos--
				code = expbuf[expbufpos]
			} else {
				blockLen--
				if blockLen == -1 {
					break
				}
				if inpos >= len(in) {
					return corruptf("chunk truncated inside body")
				}
				code = in[inpos]
				inpos++
			}

			if code == tableA[code] {
				if outpos >= len(out) {
					return corruptf("chunk expanded past its size")
				}
				out[outpos] = code
				outpos++
			} else {
				if expbufpos >= len(expbuf)-2 {
					return corruptf("codeword expanded to more than %d bytes", len(expbuf))
				}
				expbuf[expbufpos] = tableB[code]
				expbuf[expbufpos+1] = tableA[code]
				expbufpos += 2
			}
		}
	}
	return nil
}

func (t *StargunnerDecode) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for {
		progressed := false

		if !t.gotHeader {
			if len(src)-nSrc < 8 {
				if atEOF {
					return nDst, nSrc, corruptf("not enough data for header")
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			if src[nSrc] != 'P' || src[nSrc+1] != 'G' || src[nSrc+2] != 'B' || src[nSrc+3] != 'P' {
				return nDst, nSrc, corruptf("data is not compressed in this format")
			}
			t.finalSize = uint32(src[nSrc+4]) | uint32(src[nSrc+5])<<8 |
				uint32(src[nSrc+6])<<16 | uint32(src[nSrc+7])<<24
			nSrc += 8
			t.gotHeader = true
			progressed = true
		}

		// Top up the chunk input buffer.
		if t.lenBufIn < bpeCmpChunkSize && nSrc < len(src) {
			n := copy(t.bufIn[t.lenBufIn:], src[nSrc:])
			t.lenBufIn += n
			nSrc += n
			progressed = true
		}

		// If the output buffer is drained and a whole chunk is
		// buffered, explode it.
		if t.posOut == bpeChunkSize && t.lenBufIn > 2 && t.finalSize > 0 {
			lenChunk := int(t.bufIn[0]) | int(t.bufIn[1])<<8
			if lenChunk+2 > bpeCmpChunkSize {
				return nDst, nSrc, corruptf("chunk length %d exceeds the format maximum", lenChunk)
			}
			if lenChunk+2 <= t.lenBufIn {
				chunkSize := int(t.finalSize)
				if chunkSize > bpeChunkSize {
					chunkSize = bpeChunkSize
				}
				if err := explodeChunk(t.bufIn[2:2+lenChunk], t.bufOut[:chunkSize]); err != nil {
					return nDst, nSrc, err
				}
				t.finalSize -= uint32(chunkSize)
				// Right-justify partial chunks so draining below stops at
				// the right byte.
				if chunkSize < bpeChunkSize {
					copy(t.bufOut[bpeChunkSize-chunkSize:], t.bufOut[:chunkSize])
					t.posOut = bpeChunkSize - chunkSize
				} else {
					t.posOut = 0
				}
				t.lenBufIn -= 2 + lenChunk
				copy(t.bufIn[:], t.bufIn[2+lenChunk:2+lenChunk+t.lenBufIn])
				progressed = true
			}
		}

		// Drain the output buffer.
		if t.posOut < bpeChunkSize && nDst < len(dst) {
			n := copy(dst[nDst:], t.bufOut[t.posOut:])
			t.posOut += n
			nDst += n
			progressed = true
		}

		if progressed {
			continue
		}
		if t.posOut < bpeChunkSize {
			return nDst, nSrc, transform.ErrShortDst
		}
		if t.gotHeader && t.finalSize == 0 {
			nSrc = len(src) // trailing bytes are padding
			return nDst, nSrc, nil
		}
		if atEOF {
			return nDst, nSrc, corruptf("data ended %d bytes short of the declared size", t.finalSize)
		}
		return nDst, nSrc, transform.ErrShortSrc
	}
}

var _ transform.Transformer = (*StargunnerDecode)(nil)
