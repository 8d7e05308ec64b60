package stream

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/transform"
)

// ErrUnsupportedWrite is returned by Flush when data was written
// through a filter that has no encoder.
var ErrUnsupportedWrite = errors.New("writing through this filter is not supported")

// Codec is a stateful, chunk-at-a-time byte transform. It follows the
// transform.Transformer contract: Transform consumes from src,
// produces into dst, and returns ErrShortSrc/ErrShortDst when it
// needs more input or output space; Reset restores the initial
// dictionary/key state.
//
// ResetSize additionally declares the decoded length of the stream
// about to be processed, for codecs that embed it in a header. Pass
// SizeUnknown when it is not known (decoders usually ignore it).
type Codec interface {
	transform.Transformer
	ResetSize(decodedLen int64)
}

// SizeUnknown is the sentinel passed to Codec.ResetSize when the
// decoded length is not known up front.
const SizeUnknown int64 = -1

// NotifyPrefiltered is called when a filtered stream flushes, with
// the true pre-filtered (decoded) size and the stored (encoded) size.
// The archive engine uses it to update the entry's real size and to
// resize the entry's slot to fit the encoded bytes.
type NotifyPrefiltered func(realSize, storedSize int64) error

// Filtered presents the decoded view of a child stream. The whole
// child is decoded when the filtered stream is created; edits apply
// to the decoded buffer, and Flush re-encodes the buffer into the
// child, reporting the true sizes through the notify callback first
// so the child's window can be resized to fit.
type Filtered struct {
	child  Stream
	dec    Codec
	enc    Codec
	notify NotifyPrefiltered

	buf   *Memory
	dirty bool
}

// NewFiltered decodes child through dec and returns the editable
// decoded view. dec may be nil to open the raw bytes (a write-only
// filter); enc may be nil for read-only filters, in which case Flush
// fails if anything was written.
func NewFiltered(child Stream, dec, enc Codec, notify NotifyPrefiltered) (*Filtered, error) {
	if _, err := child.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var data []byte
	var err error
	if dec != nil {
		dec.ResetSize(child.Size())
		data, err = io.ReadAll(transform.NewReader(child, dec))
	} else {
		data, err = io.ReadAll(child)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding filtered stream: %w", err)
	}
	return &Filtered{child: child, dec: dec, enc: enc, notify: notify, buf: NewMemory(data)}, nil
}

// NewFilteredReader returns a streaming decoded view of child,
// without buffering the whole entry. Seeking is not supported.
func NewFilteredReader(child ReadStream, dec Codec) io.Reader {
	if dec == nil {
		return child
	}
	dec.ResetSize(child.Size())
	return transform.NewReader(child, dec)
}

func (f *Filtered) Read(p []byte) (int, error) { return f.buf.Read(p) }

func (f *Filtered) Write(p []byte) (int, error) {
	f.dirty = true
	return f.buf.Write(p)
}

func (f *Filtered) Seek(offset int64, whence int) (int64, error) {
	return f.buf.Seek(offset, whence)
}

func (f *Filtered) Size() int64 { return f.buf.Size() }

func (f *Filtered) Truncate(n int64) error {
	f.dirty = true
	return f.buf.Truncate(n)
}

// Flush encodes the decoded buffer back into the child stream. The
// notify callback runs before the encoded bytes are written, so the
// child window already has the right size when the write happens.
func (f *Filtered) Flush() error {
	if !f.dirty {
		return nil
	}
	if f.enc == nil {
		return ErrUnsupportedWrite
	}
	plain := f.buf.Bytes()
	f.enc.ResetSize(int64(len(plain)))
	encoded, _, err := transform.Bytes(f.enc, plain)
	if err != nil {
		return fmt.Errorf("encoding filtered stream: %w", err)
	}
	if f.notify != nil {
		if err := f.notify(int64(len(plain)), int64(len(encoded))); err != nil {
			return err
		}
	}
	if _, err := f.child.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.child.Write(encoded); err != nil {
		return err
	}
	f.dirty = false
	return f.child.Flush()
}

var _ Stream = (*Filtered)(nil)
