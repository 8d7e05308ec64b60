package stream

import (
	"fmt"
	"io"
)

// Sub exposes a bounded window of a parent stream as an independent
// stream. Positions 0..length map onto parent[offset..offset+length].
//
// The window can be moved with Relocate and re-bounded with Resize;
// the archive engine uses these to keep handed-out entry streams
// aligned with their entries as inserts and removes shuffle payloads.
type Sub struct {
	parent Stream
	offset int64
	length int64
	pos    int64

	// TruncateFn, when set, is consulted by Truncate instead of
	// failing. It runs before the reported length changes, so it can
	// arrange for the underlying bytes (e.g. make the parent region
	// larger) or veto the resize.
	TruncateFn func(newLen int64) error

	invalid bool
}

// NewSub carves a window out of parent starting at offset and
// spanning length bytes.
func NewSub(parent Stream, offset, length int64) *Sub {
	return &Sub{parent: parent, offset: offset, length: length}
}

// Invalidate marks the sub-stream dead; all further I/O fails. Used
// when the entry it was opened on is removed from its archive.
func (s *Sub) Invalidate() { s.invalid = true }

// Valid reports whether the sub-stream may still be used.
func (s *Sub) Valid() bool { return !s.invalid }

func (s *Sub) check(op string) error {
	if s.invalid {
		return errAt(op, s.pos, fmt.Errorf("stream no longer valid (entry removed)"))
	}
	return nil
}

func (s *Sub) Read(p []byte) (int, error) {
	if err := s.check("read"); err != nil {
		return 0, err
	}
	if s.pos >= s.length {
		return 0, io.EOF
	}
	if max := s.length - s.pos; int64(len(p)) > max {
		p = p[:max]
	}
	if _, err := s.parent.Seek(s.offset+s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.parent.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *Sub) Write(p []byte) (int, error) {
	if err := s.check("write"); err != nil {
		return 0, err
	}
	if s.pos >= s.length && len(p) > 0 {
		return 0, errAt("write", s.pos, fmt.Errorf("no space left in archive slot"))
	}
	short := false
	if max := s.length - s.pos; int64(len(p)) > max {
		p = p[:max]
		short = true
	}
	if _, err := s.parent.Seek(s.offset+s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.parent.Write(p)
	s.pos += int64(n)
	if err != nil {
		return n, err
	}
	if short {
		return n, errAt("write", s.pos, io.ErrShortWrite)
	}
	return n, nil
}

func (s *Sub) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(offset, whence, s.pos, s.length)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

func (s *Sub) Size() int64 { return s.length }

// Offset returns the window's current position in the parent stream.
func (s *Sub) Offset() int64 { return s.offset }

// Relocate moves the window by delta bytes within the parent without
// touching the window's contents from the caller's point of view.
func (s *Sub) Relocate(delta int64) { s.offset += delta }

// Resize changes only the reported length; no parent bytes move.
func (s *Sub) Resize(newLen int64) { s.length = newLen }

func (s *Sub) Truncate(n int64) error {
	if err := s.check("truncate"); err != nil {
		return err
	}
	if s.TruncateFn == nil {
		return errAt("truncate", n, fmt.Errorf("fixed-size window"))
	}
	if err := s.TruncateFn(n); err != nil {
		return err
	}
	s.length = n
	if s.pos > n {
		s.pos = n
	}
	return nil
}

func (s *Sub) Flush() error {
	if err := s.check("flush"); err != nil {
		return err
	}
	return s.parent.Flush()
}

var _ Stream = (*Sub)(nil)
