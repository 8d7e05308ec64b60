package gamearchive

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/retrodos/gamearchive/stream"
)

type hogFile struct {
	name string
	data string
}

func buildHOG(files ...hogFile) []byte {
	var out bytes.Buffer
	out.WriteString("DHF")
	for _, f := range files {
		name := make([]byte, hogFilenameFieldLen)
		copy(name, f.name)
		out.Write(name)
		size := uint32(len(f.data))
		out.Write([]byte{byte(size), byte(size >> 8), byte(size >> 16), byte(size >> 24)})
		out.WriteString(f.data)
	}
	return out.Bytes()
}

var hogInitial = []hogFile{
	{"ONE.DAT", "This is one.dat"},
	{"TWO.DAT", "This is two.dat"},
}

func openHOG(t *testing.T, data []byte) (Archive, *stream.Memory) {
	t.Helper()
	m := stream.NewMemory(data)
	a, err := formatHOGDescent{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a, m
}

func TestHOGMatch(t *testing.T) {
	cases := []struct {
		data []byte
		want Certainty
	}{
		{buildHOG(hogInitial...), DefinitelyYes},
		{[]byte("DHF"), DefinitelyYes},
		{[]byte("XHF\x00\x00"), DefinitelyNo},
		{[]byte("DH"), DefinitelyNo},
	}
	for i, tc := range cases {
		got, err := formatHOGDescent{}.Match(stream.NewMemory(tc.data))
		if err != nil || got != tc.want {
			t.Errorf("case %d: certainty = %v (%v), want %v", i, got, err, tc.want)
		}
	}
}

func TestHOGParse(t *testing.T) {
	a, _ := openHOG(t, buildHOG(hogInitial...))
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].HeaderLen != hogFATEntryLen {
		t.Errorf("header length = %d, want %d", files[0].HeaderLen, hogFATEntryLen)
	}
	if got := readEntry(t, a, files[1], true); string(got) != "This is two.dat" {
		t.Errorf("entry 1 = %q", got)
	}
}

func TestHOGInsertWithEmbeddedHeader(t *testing.T) {
	a, m := openHOG(t, buildHOG(hogInitial...))
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

	// The in-band header travels in front of the payload, so the
	// entry after it shifts by header+payload.
	if want := e.Offset + hogFATEntryLen + 17; files[1].Offset != want {
		t.Errorf("shifted entry offset = %d, want %d", files[1].Offset, want)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	want := buildHOG(hogInitial[0], hogFile{"THREE.DAT", "This is three.dat"}, hogInitial[1])
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}

func TestHOGRenameAndRemove(t *testing.T) {
	a, m := openHOG(t, buildHOG(hogInitial...))
	if err := a.Rename(a.Files()[0], "THREE.DAT"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if err := a.Remove(a.Files()[1]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	want := buildHOG(hogFile{"THREE.DAT", "This is one.dat"})
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}

func TestHOGCreate(t *testing.T) {
	m := stream.NewMemory(nil)
	a, err := formatHOGDescent{}.Create(m, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
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
	if diff := cmp.Diff(buildHOG(hogInitial[0]), m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}
