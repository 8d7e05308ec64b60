// Package stream provides the seekable byte-stream layer the archive
// engines are built on: in-memory and file-backed streams, a bounded
// relocatable sub-stream, a segmented stream supporting cheap
// mid-sequence insert/remove, and a filtered stream that applies a
// codec pair between a logical view and its backing bytes.
package stream

import (
	"fmt"
	"io"
	"os"
)

// ReadStream is the read-only stream contract. Short reads near EOF
// are not failures; they are reported as io.EOF in the usual way.
type ReadStream interface {
	io.Reader
	io.Seeker

	// Size returns the current length of the stream in bytes.
	Size() int64
}

// Stream is the read-write stream contract. Write must write all the
// given bytes or fail.
type Stream interface {
	ReadStream
	io.Writer

	// Truncate shortens or extends the stream to n bytes.
	Truncate(n int64) error

	// Flush pushes any buffered writes to the underlying storage.
	Flush() error
}

// Error reports a failure of a stream operation along with the
// position at which it occurred.
type Error struct {
	Op  string
	Pos int64
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stream %s at offset %d: %v", e.Op, e.Pos, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errAt(op string, pos int64, err error) error {
	return &Error{Op: op, Pos: pos, Err: err}
}

// Memory is an in-memory stream. The zero value is an empty stream
// ready for use.
type Memory struct {
	data []byte
	pos  int64
}

// NewMemory returns a memory stream initialised with the given bytes.
// The slice is used directly, not copied.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *Memory) Write(p []byte) (int, error) {
	if need := m.pos + int64(len(p)); need > int64(len(m.data)) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	n := copy(m.data[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func (m *Memory) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(offset, whence, m.pos, int64(len(m.data)))
	if err != nil {
		return m.pos, err
	}
	m.pos = pos
	return pos, nil
}

func (m *Memory) Size() int64 { return int64(len(m.data)) }

func (m *Memory) Truncate(n int64) error {
	if n < 0 {
		return errAt("truncate", n, fmt.Errorf("negative length"))
	}
	if n <= int64(len(m.data)) {
		m.data = m.data[:n]
	} else {
		grown := make([]byte, n)
		copy(grown, m.data)
		m.data = grown
	}
	return nil
}

func (m *Memory) Flush() error { return nil }

// Bytes returns the stream's current contents. The slice aliases the
// stream's storage and is invalidated by the next write.
func (m *Memory) Bytes() []byte { return m.data }

// File is a stream backed by an *os.File. The caller retains
// ownership of the file handle; closing it is not the stream's job.
type File struct {
	f    *os.File
	size int64
}

// NewFile wraps an open file in the stream contract.
func NewFile(f *os.File) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, errAt("stat", 0, err)
	}
	return &File{f: f, size: fi.Size()}, nil
}

func (s *File) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *File) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *File) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if pos, perr := s.f.Seek(0, io.SeekCurrent); perr == nil && pos > s.size {
		s.size = pos
	}
	return n, err
}

func (s *File) Size() int64 { return s.size }

func (s *File) Truncate(n int64) error {
	if err := s.f.Truncate(n); err != nil {
		return errAt("truncate", n, err)
	}
	s.size = n
	return nil
}

func (s *File) Flush() error {
	if err := s.f.Sync(); err != nil {
		return errAt("flush", 0, err)
	}
	return nil
}

func resolveSeek(offset int64, whence int, cur, length int64) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = cur
	case io.SeekEnd:
		base = length
	default:
		return 0, errAt("seek", offset, fmt.Errorf("bad whence %d", whence))
	}
	pos := base + offset
	// Clamp rather than fail; the formats routinely seek to EOF to
	// measure, and never legitimately seek outside the stream.
	if pos > length {
		pos = length
	}
	if pos < 0 {
		pos = 0
	}
	return pos, nil
}

// ReadFullAt is a convenience for the adapters: seek and fill buf.
func ReadFullAt(r ReadStream, pos int64, buf []byte) error {
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return errAt("read", pos, err)
	}
	return nil
}

// WriteAllAt is a convenience for the adapters: seek and write buf.
func WriteAllAt(w Stream, pos int64, buf []byte) error {
	if _, err := w.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return errAt("write", pos, err)
	}
	return nil
}

// Interface guards
var (
	_ Stream = (*Memory)(nil)
	_ Stream = (*File)(nil)
)
