package gamearchive

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/retrodos/gamearchive/stream"
)

func TestDALevelsOpen(t *testing.T) {
	data := make([]byte, daLevelLen*daLevelCount)
	copy(data[daLevelLen:], "second level data")

	m := stream.NewMemory(data)
	if got, err := (formatDALevels{}).Match(m); err != nil || got != PossiblyYes {
		t.Fatalf("match = %v (%v), want PossiblyYes", got, err)
	}
	a, err := formatDALevels{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	files := a.Files()
	if len(files) != daLevelCount {
		t.Fatalf("files = %d, want %d", len(files), daLevelCount)
	}
	if files[0].Name != "l01.dal" || files[9].Name != "l10.dal" {
		t.Fatalf("names = %q .. %q", files[0].Name, files[9].Name)
	}

	e := a.Find("L02.DAL")
	if e == nil {
		t.Fatal("case-insensitive find failed")
	}
	got := readEntry(t, a, e, true)
	if want := "second level data"; string(got[:len(want)]) != want {
		t.Errorf("slot 2 = %q...", got[:len(want)])
	}
}

func TestFixedArchiveRefusesStructuralChanges(t *testing.T) {
	m := stream.NewMemory(make([]byte, daLevelLen*daLevelCount))
	a, err := formatDALevels{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	e := a.Files()[0]

	if _, err := a.Insert(nil, "new.dal", 10, TypeGeneric, 0); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("insert error = %v, want ErrInvalidOperation", err)
	}
	if err := a.Remove(e); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("remove error = %v, want ErrInvalidOperation", err)
	}
	if err := a.Rename(e, "x.dal"); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("rename error = %v, want ErrInvalidOperation", err)
	}
	if err := a.Resize(e, daLevelLen+1, daLevelLen+1); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("resize error = %v, want ErrInvalidOperation", err)
	}

	// Editing bytes inside a slot is the one allowed freedom.
	s, err := a.Open(e, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := s.Write([]byte("edited")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := m.Bytes()[:6]; string(got) != "edited" {
		t.Errorf("slot bytes = %q", got)
	}
}

func buildDDaveEXE() []byte {
	data := make([]byte, ddaveEXESize)
	copy(data[0x26A80:], "Trouble loading tileset!$")
	return data
}

func TestEXEDDaveMatch(t *testing.T) {
	if got, err := (formatEXEDDave{}).Match(stream.NewMemory(buildDDaveEXE())); err != nil || got != DefinitelyYes {
		t.Fatalf("match = %v (%v), want DefinitelyYes", got, err)
	}
	if got, err := (formatEXEDDave{}).Match(stream.NewMemory(make([]byte, 100))); err != nil || got != DefinitelyNo {
		t.Fatalf("match = %v (%v), want DefinitelyNo", got, err)
	}
}

func TestEXEDDaveResizeUpdatesPrefix(t *testing.T) {
	data := buildDDaveEXE()
	// Give cgadave.dav a valid (empty-ish) RLE body: a single literal
	// block so the decoder is happy, and a decompressed-size prefix.
	prefixAt := 0x0c620
	body := []byte{0x80, 'x'} // copy one literal byte
	data[prefixAt], data[prefixAt+1], data[prefixAt+2], data[prefixAt+3] = 1, 0, 0, 0
	copy(data[0x0c620+4:], body)

	m := stream.NewMemory(data)
	a, err := formatEXEDDave{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	e := a.Find("cgadave.dav")
	if e == nil {
		t.Fatal("cgadave.dav not found")
	}
	if e.Filter != "rle-ddave" {
		t.Fatalf("filter = %q", e.Filter)
	}
	if e.RealSize != 1 {
		t.Fatalf("real size from prefix = %d, want 1", e.RealSize)
	}

	s, err := a.Open(e, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Truncate(0); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	payload := bytes.Repeat([]byte{0xAA}, 100)
	if _, err := s.Write(payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if e.RealSize != 100 {
		t.Errorf("real size = %d, want 100", e.RealSize)
	}
	got := m.Bytes()[prefixAt : prefixAt+4]
	if want := []byte{100, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Errorf("prefix = %v, want %v", got, want)
	}

	// Reading back through the filter decodes the new payload.
	if got := readEntry(t, a, e, true); !bytes.Equal(got[:100], payload) {
		t.Error("read-back differs from written payload")
	}
}
