package filter

import "golang.org/x/text/transform"

// Additive stream cipher used on Raptor GLB files. The key is a
// repeating byte string; each plaintext byte has the current key byte
// and the previous ciphertext byte added to it (and subtracted again
// on the way out). A non-zero block length restarts the key after
// every block, which is how the FAT is ciphered entry by entry; a
// block length of zero never restarts.
//
// Both directions track the previous byte from the ciphertext: the
// decoder from the bytes it consumes, the encoder from the bytes it
// produces. Cross-checked against archives the game accepts.

// AddDecrypt removes the additive cipher.
type AddDecrypt struct {
	key      []byte
	lenBlock int
	posKey   int
	lastByte byte
	offset   int
}

// NewAddDecrypt returns a decoder for the given key, restarting the
// key every lenBlock bytes (0 = never).
func NewAddDecrypt(key string, lenBlock int) *AddDecrypt {
	t := &AddDecrypt{key: []byte(key), lenBlock: lenBlock}
	t.Reset()
	return t
}

func (t *AddDecrypt) Reset() {
	t.posKey = 25 % len(t.key)
	t.lastByte = t.key[t.posKey]
	t.offset = 0
}

func (t *AddDecrypt) ResetSize(int64) { t.Reset() }

func (t *AddDecrypt) resetKey() {
	t.posKey = 25 % len(t.key)
	t.lastByte = t.key[t.posKey]
}

func (t *AddDecrypt) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		if t.lenBlock != 0 && t.offset%t.lenBlock == 0 {
			t.resetKey()
		}
		c := src[i]
		dst[i] = c - t.key[t.posKey] - t.lastByte
		t.posKey = (t.posKey + 1) % len(t.key)
		t.lastByte = c
		t.offset++
	}
	if n < len(src) {
		return n, n, transform.ErrShortDst
	}
	return n, n, nil
}

// AddEncrypt applies the additive cipher.
type AddEncrypt struct {
	key      []byte
	lenBlock int
	posKey   int
	lastByte byte
	offset   int
}

// NewAddEncrypt returns an encoder for the given key, restarting the
// key every lenBlock bytes (0 = never).
func NewAddEncrypt(key string, lenBlock int) *AddEncrypt {
	t := &AddEncrypt{key: []byte(key), lenBlock: lenBlock}
	t.Reset()
	return t
}

func (t *AddEncrypt) Reset() {
	t.posKey = 25 % len(t.key)
	t.lastByte = t.key[t.posKey]
	t.offset = 0
}

func (t *AddEncrypt) ResetSize(int64) { t.Reset() }

func (t *AddEncrypt) resetKey() {
	t.posKey = 25 % len(t.key)
	t.lastByte = t.key[t.posKey]
}

func (t *AddEncrypt) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		if t.lenBlock != 0 && t.offset%t.lenBlock == 0 {
			t.resetKey()
		}
		c := src[i] + t.lastByte + t.key[t.posKey]
		dst[i] = c
		t.posKey = (t.posKey + 1) % len(t.key)
		t.lastByte = c
		t.offset++
	}
	if n < len(src) {
		return n, n, transform.ErrShortDst
	}
	return n, n, nil
}

// Interface guards
var (
	_ transform.Transformer = (*AddDecrypt)(nil)
	_ transform.Transformer = (*AddEncrypt)(nil)
)
