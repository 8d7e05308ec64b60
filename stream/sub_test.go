package stream

import (
	"errors"
	"io"
	"testing"

	"golang.org/x/text/transform"
)

func TestSubReadWindow(t *testing.T) {
	m := NewMemory([]byte("0123456789"))
	s := NewSub(m, 2, 5)
	if got := s.Size(); got != 5 {
		t.Fatalf("size = %d, want 5", got)
	}
	buf, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "23456" {
		t.Fatalf("contents = %q", buf)
	}
}

func TestSubWriteWithinWindow(t *testing.T) {
	m := NewMemory([]byte("0123456789"))
	s := NewSub(m, 2, 5)
	if _, err := s.Write([]byte("abcde")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := string(m.Bytes()); got != "01abcde789" {
		t.Fatalf("parent = %q", got)
	}
}

func TestSubWritePastWindowFails(t *testing.T) {
	m := NewMemory([]byte("0123456789"))
	s := NewSub(m, 2, 5)
	if _, err := s.Write([]byte("abcdef")); err == nil {
		t.Fatal("expected an error writing past the window")
	}
	// The in-window part landed.
	if got := string(m.Bytes()); got != "01abcde789" {
		t.Fatalf("parent = %q", got)
	}
	if _, err := s.Write([]byte("x")); err == nil {
		t.Fatal("expected an error writing at the end of the window")
	}
}

func TestSubRelocate(t *testing.T) {
	m := NewMemory([]byte("0123456789"))
	s := NewSub(m, 2, 3)
	s.Relocate(4)
	if got := s.Offset(); got != 6 {
		t.Fatalf("offset = %d, want 6", got)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	buf := make([]byte, 3)
	if _, err := io.ReadFull(s, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "678" {
		t.Fatalf("contents = %q", buf)
	}
}

func TestSubResizeChangesOnlyLength(t *testing.T) {
	m := NewMemory([]byte("0123456789"))
	s := NewSub(m, 2, 3)
	s.Resize(6)
	if got := s.Size(); got != 6 {
		t.Fatalf("size = %d, want 6", got)
	}
	if got := string(m.Bytes()); got != "0123456789" {
		t.Fatalf("parent changed: %q", got)
	}
}

func TestSubInvalidate(t *testing.T) {
	m := NewMemory([]byte("0123456789"))
	s := NewSub(m, 0, 4)
	s.Invalidate()
	if _, err := s.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected read on an invalidated stream to fail")
	}
	if _, err := s.Write([]byte("x")); err == nil {
		t.Fatal("expected write on an invalidated stream to fail")
	}
}

// doubler is a trivial codec for filtered-stream tests: the decoder
// strips every second byte, the encoder writes each byte twice.
type doubler struct{ encode bool }

func (d *doubler) Reset()          {}
func (d *doubler) ResetSize(int64) {}

func (d *doubler) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if d.encode {
		for nSrc < len(src) {
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = src[nSrc]
			dst[nDst+1] = src[nSrc]
			nDst += 2
			nSrc++
		}
		return nDst, nSrc, nil
	}
	for nSrc+2 <= len(src) && nDst < len(dst) {
		dst[nDst] = src[nSrc]
		nDst++
		nSrc += 2
	}
	if nSrc < len(src) {
		if nDst == len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		if !atEOF {
			return nDst, nSrc, transform.ErrShortSrc
		}
		nSrc = len(src) // stray trailing byte
	}
	return nDst, nSrc, nil
}

func TestFilteredDecodesOnOpen(t *testing.T) {
	child := NewMemory([]byte("aabbcc"))
	f, err := NewFiltered(child, &doubler{}, &doubler{encode: true}, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("decoded = %q, want %q", got, "abc")
	}
}

func TestFilteredFlushReportsSizes(t *testing.T) {
	child := NewMemory([]byte("aabbcc"))
	var gotReal, gotStored int64
	f, err := NewFiltered(child, &doubler{}, &doubler{encode: true},
		func(realSize, storedSize int64) error {
			gotReal, gotStored = realSize, storedSize
			return nil
		})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if _, err := f.Write([]byte("de")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if gotReal != 5 || gotStored != 10 {
		t.Fatalf("notify got (%d, %d), want (5, 10)", gotReal, gotStored)
	}
	if got := string(child.Bytes()); got != "aabbccddee" {
		t.Fatalf("child = %q", got)
	}
}

func TestFilteredWriteWithoutEncoderFails(t *testing.T) {
	child := NewMemory([]byte("aabb"))
	f, err := NewFiltered(child, &doubler{}, nil, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.Write([]byte("x")); err != nil {
		t.Fatalf("write should buffer: %v", err)
	}
	if err := f.Flush(); !errors.Is(err, ErrUnsupportedWrite) {
		t.Fatalf("flush error = %v, want ErrUnsupportedWrite", err)
	}
}
