package gamearchive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

// Log receives the recoverable-parse warnings the library emits,
// such as a truncated directory cut short during open. Swap in your
// own configured logger to redirect them.
var Log = logrus.StandardLogger()

// DOS name fields are raw code page 437 bytes; decode and re-encode
// them so names survive a round trip through Go strings.
var (
	cp437Decoder = charmap.CodePage437.NewDecoder()
	cp437Encoder = charmap.CodePage437.NewEncoder()
)

// readNamePadded reads an n-byte NUL-padded name field.
func readNamePadded(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	name, err := cp437Decoder.Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("%w: undecodable filename field", ErrInvalidFormat)
	}
	return string(name), nil
}

// writeNamePadded writes name into an n-byte NUL-padded field.
func writeNamePadded(w io.Writer, name string, n int) error {
	raw, err := cp437Encoder.Bytes([]byte(name))
	if err != nil {
		return fmt.Errorf("%w: filename %q has no code page 437 form", ErrInvalidArgument, name)
	}
	if len(raw) > n {
		return fmt.Errorf("%w: filename %q longer than %d bytes", ErrInvalidArgument, name, n)
	}
	buf := make([]byte, n)
	copy(buf, raw)
	_, err = w.Write(buf)
	return err
}

// splitDOSName splits a filename into space-padded 8.3 name and
// extension fields (extension includes the dot), as stored by the
// PCX Library directory.
func splitDOSName(name string, lenBase, lenExt int) (string, string, error) {
	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i:]
	}
	if len(base) > lenBase {
		return "", "", fmt.Errorf("%w: filename %q base longer than %d", ErrInvalidArgument, name, lenBase)
	}
	if len(ext) > lenExt {
		return "", "", fmt.Errorf("%w: filename extension too long, %d characters max", ErrInvalidArgument, lenExt-1)
	}
	base += strings.Repeat(" ", lenBase-len(base))
	ext += strings.Repeat(" ", lenExt-len(ext))
	return base, ext, nil
}

func readU8(r io.Reader) (uint8, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func readU16LE(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func readU32LE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeU16LE(w io.Writer, v uint16) error {
	_, err := w.Write([]byte{byte(v), byte(v >> 8)})
	return err
}

func writeU32LE(w io.Writer, v uint32) error {
	_, err := w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	return err
}
