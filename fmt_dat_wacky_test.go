package gamearchive

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/retrodos/gamearchive/stream"
)

type wackyFile struct {
	name string
	data string
}

// buildWacky assembles a Wacky Wheels archive from scratch, computing
// the FAT from the payload lengths.
func buildWacky(files ...wackyFile) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(len(files)))
	out.WriteByte(byte(len(files) >> 8))

	off := uint32(len(files)) * wackyFATEntryLen
	for _, f := range files {
		name := make([]byte, wackyFilenameFieldLen)
		copy(name, f.name)
		out.Write(name)
		size := uint32(len(f.data))
		out.Write([]byte{byte(size), byte(size >> 8), byte(size >> 16), byte(size >> 24)})
		out.Write([]byte{byte(off), byte(off >> 8), byte(off >> 16), byte(off >> 24)})
		off += size
	}
	for _, f := range files {
		out.WriteString(f.data)
	}
	return out.Bytes()
}

var wackyInitial = []wackyFile{
	{"ONE.DAT", "This is one.dat"},
	{"TWO.DAT", "This is two.dat"},
}

func openWacky(t *testing.T, data []byte) (Archive, *stream.Memory) {
	t.Helper()
	m := stream.NewMemory(data)
	a, err := formatDATWacky{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a, m
}

func flushAndCompare(t *testing.T, a Archive, m *stream.Memory, want []byte) {
	t.Helper()
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}

func TestWackyMatch(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Certainty
	}{
		{"initial", buildWacky(wackyInitial...), DefinitelyYes},
		{"invalid char in filename", []byte(
			"\x02\x00" +
				"ONE.DAT\x05\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x2c\x00\x00\x00" +
				"TWO.DAT\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x3b\x00\x00\x00" +
				"This is one.dat" + "This is two.dat"), DefinitelyNo},
		{"file too short", []byte("\x01"), DefinitelyNo},
		{"file past EOF", []byte(
			"\x02\x00" +
				"ONE.DAT\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x01\x00\x00" + "\x2c\x00\x00\x00" +
				"TWO.DAT\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x3b\x00\x00\x00" +
				"This is one.dat" + "This is two.dat"), DefinitelyNo},
		{"content with zero count", []byte(
			"\x00\x00" +
				"ONE.DAT\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x2c\x00\x00\x00" +
				"TWO.DAT\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x3b\x00\x00\x00" +
				"This is one.dat" + "This is two.dat"), DefinitelyNo},
		{"blank filename", []byte(
			"\x02\x00" +
				"\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x2c\x00\x00\x00" +
				"TWO.DAT\x00\x00\x00\x00\x00\x00\x00" + "\x0f\x00\x00\x00" + "\x3b\x00\x00\x00" +
				"This is one.dat" + "This is two.dat"), DefinitelyNo},
	}
	for _, tc := range cases {
		got, err := formatDATWacky{}.Match(stream.NewMemory(tc.data))
		if err != nil {
			t.Errorf("%s: match failed: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: certainty = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWackyParse(t *testing.T) {
	a, _ := openWacky(t, buildWacky(wackyInitial...))
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].Name != "ONE.DAT" || files[1].Name != "TWO.DAT" {
		t.Fatalf("names = %q, %q", files[0].Name, files[1].Name)
	}
	if got := readEntry(t, a, files[0], true); string(got) != "This is one.dat" {
		t.Errorf("entry 0 = %q", got)
	}
	if e := a.Find("two.dat"); e != files[1] {
		t.Error("case-insensitive find failed")
	}
}

// Renaming touches only the name field of the FAT row: no payload
// byte and no offset changes.
func TestWackyRename(t *testing.T) {
	a, m := openWacky(t, buildWacky(wackyInitial...))
	if err := a.Rename(a.Files()[0], "THREE.DAT"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	flushAndCompare(t, a, m, buildWacky(
		wackyFile{"THREE.DAT", "This is one.dat"},
		wackyFile{"TWO.DAT", "This is two.dat"},
	))
}

func TestWackyRenameTooLong(t *testing.T) {
	a, _ := openWacky(t, buildWacky(wackyInitial...))
	if err := a.Rename(a.Files()[0], "TWELVECHARSS"); err != nil {
		t.Fatalf("max-length rename failed: %v", err)
	}
	if err := a.Rename(a.Files()[0], "THIRTEENCHARS"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("rename error = %v, want ErrInvalidArgument", err)
	}
}

func TestWackyInsertAtEnd(t *testing.T) {
	a, m := openWacky(t, buildWacky(wackyInitial...))
	before := []int64{a.Files()[0].Offset, a.Files()[1].Offset}

	e, err := a.Insert(nil, "THREE.DAT", 17, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s, err := a.Open(e, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("This is three.dat"))

	// Earlier payloads shift only by the new FAT row.
	for i, e := range a.Files()[:2] {
		if e.Offset != before[i]+wackyFATEntryLen {
			t.Errorf("entry %d offset = %d, want %d", i, e.Offset, before[i]+wackyFATEntryLen)
		}
	}
	flushAndCompare(t, a, m, buildWacky(
		wackyInitial[0], wackyInitial[1],
		wackyFile{"THREE.DAT", "This is three.dat"},
	))
}

func TestWackyInsertBeforeSecond(t *testing.T) {
	a, m := openWacky(t, buildWacky(wackyInitial...))
	files := a.Files()

	e, err := a.Insert(files[1], "THREE.DAT", 17, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s, err := a.Open(e, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("This is three.dat"))

	one, three, two := a.Files()[0], a.Files()[1], a.Files()[2]
	if three != e {
		t.Fatal("new entry not in stored position 1")
	}
	if want := one.Offset + one.HeaderLen + one.StoredSize + three.HeaderLen; three.Offset != want {
		t.Errorf("new entry offset = %d, want %d", three.Offset, want)
	}
	if want := three.Offset + three.StoredSize; two.Offset != want {
		t.Errorf("old second entry offset = %d, want %d", two.Offset, want)
	}
	flushAndCompare(t, a, m, buildWacky(
		wackyInitial[0],
		wackyFile{"THREE.DAT", "This is three.dat"},
		wackyInitial[1],
	))
}

func TestWackyRemoveFirst(t *testing.T) {
	data := buildWacky(wackyInitial...)
	a, m := openWacky(t, data)
	files := a.Files()

	// Keep a stream on the second entry across the removal.
	s, err := a.Open(files[1], false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	removedLen := files[0].StoredSize + files[0].HeaderLen
	if err := a.Remove(files[0]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read through surviving stream failed: %v", err)
	}
	if string(got) != "This is two.dat" {
		t.Errorf("surviving stream reads %q", got)
	}

	flushAndCompare(t, a, m, buildWacky(wackyFile{"TWO.DAT", "This is two.dat"}))
	if want := int64(len(data)) - removedLen - wackyFATEntryLen; int64(len(m.Bytes())) != want {
		t.Errorf("backing stream length = %d, want %d", len(m.Bytes()), want)
	}
}

func TestWackyResizeFirst(t *testing.T) {
	a, m := openWacky(t, buildWacky(wackyInitial...))
	files := a.Files()
	secondBefore := files[1].Offset

	if err := a.Resize(files[0], 23, 23); err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if files[1].Offset != secondBefore+8 {
		t.Errorf("second entry offset = %d, want %d", files[1].Offset, secondBefore+8)
	}

	s, err := a.Open(files[0], false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("Now resized to 23 chars"))

	if got := readEntry(t, a, files[0], false); string(got) != "Now resized to 23 chars" {
		t.Errorf("entry 0 = %q", got)
	}
	flushAndCompare(t, a, m, buildWacky(
		wackyFile{"ONE.DAT", "Now resized to 23 chars"},
		wackyFile{"TWO.DAT", "This is two.dat"},
	))
}

// Flushing and reopening the backing stream yields an equal archive.
func TestWackyFlushReopen(t *testing.T) {
	a, m := openWacky(t, buildWacky(wackyInitial...))
	if _, err := a.Insert(nil, "THREE.DAT", 5, TypeGeneric, 0); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	e := a.Find("THREE.DAT")
	s, err := a.Open(e, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("hello"))
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	b, _ := openWacky(t, m.Bytes())
	if len(b.Files()) != 3 {
		t.Fatalf("reopened files = %d, want 3", len(b.Files()))
	}
	for i, want := range []string{"This is one.dat", "This is two.dat", "hello"} {
		if got := readEntry(t, b, b.Files()[i], true); string(got) != want {
			t.Errorf("entry %d = %q, want %q", i, got, want)
		}
	}
}

// Insert then remove of the same name leaves the archive bytes as
// they started.
func TestWackyInsertRemoveRoundTrip(t *testing.T) {
	initial := buildWacky(wackyInitial...)
	a, m := openWacky(t, append([]byte(nil), initial...))
	e, err := a.Insert(nil, "TEMP.DAT", 9, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := a.Remove(e); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	flushAndCompare(t, a, m, initial)
}

func TestWackyCreateEmpty(t *testing.T) {
	m := stream.NewMemory(nil)
	a, err := formatDATWacky{}.Create(m, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(a.Files()) != 0 {
		t.Fatalf("new archive has %d files", len(a.Files()))
	}
	e, err := a.Insert(nil, "ONE.DAT", 15, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s, err := a.Open(e, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("This is one.dat"))
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if diff := cmp.Diff(buildWacky(wackyInitial[0]), m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}
