package gamearchive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/retrodos/gamearchive/stream"
)

// buildHugo assembles a Hugo scenery file: 8-byte rows of (offset,
// size) followed by the payloads.
func buildHugo(payloads ...string) []byte {
	var fat, body bytes.Buffer
	off := uint32(len(payloads) * hugoFATEntryLen)
	for _, p := range payloads {
		size := uint32(len(p))
		fat.Write([]byte{byte(off), byte(off >> 8), byte(off >> 16), byte(off >> 24)})
		fat.Write([]byte{byte(size), byte(size >> 8), byte(size >> 16), byte(size >> 24)})
		off += size
		body.WriteString(p)
	}
	return append(fat.Bytes(), body.Bytes()...)
}

func openHugo(t *testing.T, data []byte) (Archive, *stream.Memory) {
	t.Helper()
	m := stream.NewMemory(data)
	a, err := formatDATHugo{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a, m
}

func TestHugoMatch(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Certainty
	}{
		{"empty", nil, PossiblyYes},
		{"initial", buildHugo("This is one.dat", "This is two.dat"), DefinitelyYes},
		{"too short", []byte{0x01}, DefinitelyNo},
		{"first file past EOF", []byte{
			0x10, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00,
			0x18, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		}, DefinitelyNo},
		{"ragged FAT", []byte{
			0x0c, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
			0x0d, 0x00, 0x00, 0x00, 0x00,
		}, DefinitelyNo},
	}
	for _, tc := range cases {
		got, err := formatDATHugo{}.Match(stream.NewMemory(tc.data))
		if err != nil {
			t.Errorf("%s: match failed: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: certainty = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHugoParse(t *testing.T) {
	a, _ := openHugo(t, buildHugo("This is one.dat", "This is two.dat"))
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].Name != "" {
		t.Errorf("name = %q, want empty (nameless format)", files[0].Name)
	}
	if got := readEntry(t, a, files[0], true); string(got) != "This is one.dat" {
		t.Errorf("entry 0 = %q", got)
	}
	if extra, ok := files[0].Extra.(hugoExtra); !ok || extra.file != 1 {
		t.Errorf("extra = %#v, want file 1", files[0].Extra)
	}
}

func TestHugoSupplementaryFAT(t *testing.T) {
	// One shared FAT covering both scenery files: two rows for the
	// first file, then offsets drop back for the second.
	fatFull := make([]byte, 0, 4*hugoFATEntryLen)
	for _, p := range []struct{ off, size uint32 }{
		{32, 15}, {47, 15}, // first file
		{16, 7}, {23, 7}, // second file, offsets reset
	} {
		fatFull = append(fatFull,
			byte(p.off), byte(p.off>>8), byte(p.off>>16), byte(p.off>>24),
			byte(p.size), byte(p.size>>8), byte(p.size>>16), byte(p.size>>24))
	}

	content := stream.NewMemory(append(make([]byte, 16), []byte("2nd one2nd two")...))
	a, err := formatDATHugo{}.Open(content, SuppData{SuppFAT: stream.NewMemory(fatFull)})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if got := readEntry(t, a, files[0], true); string(got) != "2nd one" {
		t.Errorf("entry 0 = %q", got)
	}
	if extra := files[0].Extra.(hugoExtra); extra.file != 2 {
		t.Errorf("extra file = %d, want 2", extra.file)
	}
}

func TestHugoRequiredSupps(t *testing.T) {
	supps := formatDATHugo{}.RequiredSupps(nil, "levels/scenery2.dat")
	if supps[SuppFAT] != "levels/scenery1.dat" {
		t.Fatalf("supp = %q, want levels/scenery1.dat", supps[SuppFAT])
	}
	if supps := (formatDATHugo{}).RequiredSupps(nil, "scenery1.dat"); len(supps) != 0 {
		t.Fatalf("unexpected supps for scenery1.dat: %v", supps)
	}
}

func TestHugoNameless(t *testing.T) {
	a, _ := openHugo(t, buildHugo("This is one.dat"))
	if err := a.Rename(a.Files()[0], "X"); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("rename error = %v, want ErrInvalidOperation", err)
	}
}

func TestHugoInsertRemoveRoundTrip(t *testing.T) {
	initial := buildHugo("This is one.dat", "This is two.dat")
	a, m := openHugo(t, append([]byte(nil), initial...))

	e, err := a.Insert(a.Files()[0], "", 5, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s, err := a.Open(e, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("first"))
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	want := buildHugo("first", "This is one.dat", "This is two.dat")
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}

	if err := a.Remove(a.Files()[0]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if diff := cmp.Diff(initial, m.Bytes()); diff != "" {
		t.Fatalf("backing stream after remove (-want +got):\n%s", diff)
	}
}
