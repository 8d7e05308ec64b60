package gamearchive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/retrodos/gamearchive/stream"
)

type resFile struct {
	name   string
	data   string
	folder bool
}

func buildRES(files ...resFile) []byte {
	var out bytes.Buffer
	for _, f := range files {
		name := make([]byte, resMaxFilenameLen)
		copy(name, f.name)
		out.Write(name)
		v := uint32(len(f.data))
		if f.folder {
			v |= resFolderFlag
		}
		out.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
		out.WriteString(f.data)
	}
	return out.Bytes()
}

func openRES(t *testing.T, data []byte) (Archive, *stream.Memory) {
	t.Helper()
	m := stream.NewMemory(data)
	a, err := formatRESStellar7{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a, m
}

func TestRESParse(t *testing.T) {
	a, _ := openRES(t, buildRES(
		resFile{name: "ONE", data: "This is one.dat"},
		resFile{name: "TWO", data: "This is two.dat"},
	))
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].Name != "ONE" || files[1].Name != "TWO" {
		t.Fatalf("names = %q, %q", files[0].Name, files[1].Name)
	}
	if got := readEntry(t, a, files[0], true); string(got) != "This is one.dat" {
		t.Errorf("entry 0 = %q", got)
	}
}

func TestRESMatchRejectsControlChars(t *testing.T) {
	data := buildRES(resFile{name: "ONE", data: "x"})
	data[1] = 0x05
	got, err := formatRESStellar7{}.Match(stream.NewMemory(data))
	if err != nil || got != DefinitelyNo {
		t.Fatalf("certainty = %v (%v), want DefinitelyNo", got, err)
	}
}

func TestRESOpenFolder(t *testing.T) {
	inner := buildRES(
		resFile{name: "IN1", data: "inner one"},
		resFile{name: "IN2", data: "inner two"},
	)
	a, _ := openRES(t, buildRES(
		resFile{name: "SUB", data: string(inner), folder: true},
		resFile{name: "TOP", data: "top level"},
	))

	files := a.Files()
	if files[0].Attr&AttrFolder == 0 {
		t.Fatal("folder attribute not set")
	}

	sub, err := a.OpenFolder(files[0])
	if err != nil {
		t.Fatalf("open folder failed: %v", err)
	}
	if got := len(sub.Files()); got != 2 {
		t.Fatalf("folder files = %d, want 2", got)
	}
	if got := readEntry(t, sub, sub.Files()[1], true); string(got) != "inner two" {
		t.Errorf("inner entry = %q", got)
	}

	if _, err := a.OpenFolder(files[1]); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("open folder on a file = %v, want ErrInvalidArgument", err)
	}
}

func TestRESInsertRemoveRoundTrip(t *testing.T) {
	initial := buildRES(
		resFile{name: "ONE", data: "This is one.dat"},
		resFile{name: "TWO", data: "This is two.dat"},
	)
	a, m := openRES(t, append([]byte(nil), initial...))

	e, err := a.Insert(a.Files()[1], "NEW", 5, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s, err := a.Open(e, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("fresh"))
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	want := buildRES(
		resFile{name: "ONE", data: "This is one.dat"},
		resFile{name: "NEW", data: "fresh"},
		resFile{name: "TWO", data: "This is two.dat"},
	)
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}

	if err := a.Remove(e); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if diff := cmp.Diff(initial, m.Bytes()); diff != "" {
		t.Fatalf("backing stream after remove (-want +got):\n%s", diff)
	}
}

func TestRESRenameLimits(t *testing.T) {
	a, _ := openRES(t, buildRES(resFile{name: "ONE", data: "x"}))
	if err := a.Rename(a.Files()[0], "FOUR"); err != nil {
		t.Fatalf("max-length rename failed: %v", err)
	}
	if err := a.Rename(a.Files()[0], "FIVES"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("rename error = %v, want ErrInvalidArgument", err)
	}
}
