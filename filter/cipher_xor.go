package filter

import "golang.org/x/text/transform"

// XOR stream ciphers. XOR is its own inverse, so one transformer
// serves both directions; the variants differ only in how the key
// evolves with the stream position.

// XOR applies a position-derived XOR key.
//
// The key for the byte at position p is Seed + p/Step (Step 0 keeps
// the key constant). When Limit is non-zero only the first Limit
// bytes are ciphered and the rest pass through, which is how the
// Blood RFF payload cipher covers just the head of each file.
type XOR struct {
	Seed  byte
	Step  int
	Limit int64

	pos int64
}

func (t *XOR) Reset()          { t.pos = 0 }
func (t *XOR) ResetSize(int64) { t.Reset() }

func (t *XOR) keyAt(pos int64) byte {
	if t.Step == 0 {
		return t.Seed
	}
	return t.Seed + byte(pos/int64(t.Step))
}

func (t *XOR) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		if t.Limit == 0 || t.pos < t.Limit {
			dst[i] = src[i] ^ t.keyAt(t.pos)
		} else {
			dst[i] = src[i]
		}
		t.pos++
	}
	if n < len(src) {
		return n, n, transform.ErrShortDst
	}
	return n, n, nil
}

// NewRFFFATCipher returns the Blood RFF directory cipher: the key
// starts at seed and increments every two bytes.
func NewRFFFATCipher(seed byte) *XOR {
	return &XOR{Seed: seed, Step: 2}
}

// NewRFFFileCipher returns the Blood RFF payload cipher: only the
// first 256 bytes are ciphered, with the key tracking pos>>1.
func NewRFFFileCipher() *XOR {
	return &XOR{Seed: 0, Step: 2, Limit: 256}
}

// Transcrypt re-ciphers buf in place from an old key seed to a new
// one in a single pass: XORing each byte with old-key XOR new-key
// removes the old cipher and applies the new at the same time.
func Transcrypt(buf []byte, oldSeed, newSeed byte) {
	oldKey := XOR{Seed: oldSeed, Step: 2}
	newKey := XOR{Seed: newSeed, Step: 2}
	for i, c := range buf {
		buf[i] = c ^ oldKey.keyAt(int64(i)) ^ newKey.keyAt(int64(i))
	}
}

var _ transform.Transformer = (*XOR)(nil)
