package gamearchive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/retrodos/gamearchive/stream"
)

type gdFile struct {
	typ  uint16
	data string
}

// buildGDFAT assembles the bare 64-slot directory table used by the
// test-sized FAT location.
func buildGDFAT(files ...gdFile) []byte {
	fat := make([]byte, gdFATEntryLen*64)
	for i, f := range files {
		row := fat[i*gdFATEntryLen:]
		size := uint16(len(f.data))
		row[0], row[1] = byte(size), byte(size>>8)
		row[2], row[3] = byte(f.typ), byte(f.typ>>8)
	}
	return fat
}

func buildGDData(files ...gdFile) []byte {
	var body bytes.Buffer
	for _, f := range files {
		body.WriteString(f.data)
	}
	return body.Bytes()
}

var gdInitial = []gdFile{
	{gdTypeMusicTBSA, "This is one.dat"},
	{0x1636, "This is two.dat"},
}

func openGD(t *testing.T, fat, data []byte) (Archive, *stream.Memory, *stream.Memory) {
	t.Helper()
	fm := stream.NewMemory(fat)
	dm := stream.NewMemory(data)
	a, err := formatGDDoofus{}.Open(dm, SuppData{SuppFAT: fm})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a, dm, fm
}

func TestGDParse(t *testing.T) {
	a, _, _ := openGD(t, buildGDFAT(gdInitial...), buildGDData(gdInitial...))
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].Type != "music/tbsa" || files[1].Type != "unknown/doofus-1636" {
		t.Fatalf("types = %q, %q", files[0].Type, files[1].Type)
	}
	if files[1].Offset != 15 {
		t.Fatalf("entry 1 offset = %d, want 15", files[1].Offset)
	}
	if got := readEntry(t, a, files[1], true); string(got) != "This is two.dat" {
		t.Errorf("entry 1 = %q", got)
	}
}

func TestGDOpenRequiresSupp(t *testing.T) {
	_, err := formatGDDoofus{}.Open(stream.NewMemory(nil), nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("open error = %v, want ErrInvalidArgument", err)
	}
	_, err = formatGDDoofus{}.Open(stream.NewMemory(nil),
		SuppData{SuppFAT: stream.NewMemory(make([]byte, 100))})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("unknown version error = %v, want ErrInvalidFormat", err)
	}
}

func TestGDInsertKeepsTableLength(t *testing.T) {
	a, dm, fm := openGD(t, buildGDFAT(gdInitial...), buildGDData(gdInitial...))

	e, err := a.Insert(nil, "", 5, "unknown/doofus-2376", 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s, err := a.Open(e, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("three"))
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	wantFAT := buildGDFAT(gdInitial[0], gdInitial[1], gdFile{0x2376, "three"})
	if diff := cmp.Diff(wantFAT, fm.Bytes()); diff != "" {
		t.Fatalf("FAT mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(buildGDData(gdInitial[0], gdInitial[1], gdFile{0, "three"}), dm.Bytes()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if len(fm.Bytes()) != gdFATEntryLen*64 {
		t.Fatalf("FAT length changed to %d", len(fm.Bytes()))
	}
}

func TestGDRemoveRestoresSpareSlot(t *testing.T) {
	a, dm, fm := openGD(t, buildGDFAT(gdInitial...), buildGDData(gdInitial...))
	if err := a.Remove(a.Files()[0]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if diff := cmp.Diff(buildGDFAT(gdInitial[1]), fm.Bytes()); diff != "" {
		t.Fatalf("FAT mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(buildGDData(gdInitial[1]), dm.Bytes()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}
