package gamearchive

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/transform"

	"github.com/retrodos/gamearchive/filter"
	"github.com/retrodos/gamearchive/stream"
)

type glbFile struct {
	name      string
	data      string
	encrypted bool
}

// buildGLB assembles a Raptor archive: a plaintext header and FAT are
// constructed, enciphered, and followed by the payloads.
func buildGLB(files ...glbFile) []byte {
	plain := make([]byte, glbHeaderLen+len(files)*glbFATEntryLen)
	n := uint32(len(files))
	plain[4], plain[5], plain[6], plain[7] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)

	off := uint32(len(plain))
	var payloads bytes.Buffer
	for i, f := range files {
		row := plain[glbHeaderLen+i*glbFATEntryLen:]
		if f.encrypted {
			row[0] = glbEncryptedFlag
		}
		size := uint32(len(f.data))
		row[4], row[5], row[6], row[7] = byte(off), byte(off>>8), byte(off>>16), byte(off>>24)
		row[8], row[9], row[10], row[11] = byte(size), byte(size>>8), byte(size>>16), byte(size>>24)
		copy(row[12:12+glbFilenameFieldLen], f.name)
		off += size
		payloads.WriteString(f.data)
	}

	ciphered, _, err := transform.Bytes(filter.NewAddEncrypt(glbKey, glbBlockLen), plain)
	if err != nil {
		panic(err)
	}
	return append(ciphered, payloads.Bytes()...)
}

var glbInitial = []glbFile{
	{name: "ONE.DAT", data: "This is one.dat"},
	{name: "TWO.DAT", data: "This is two.dat"},
}

func openGLB(t *testing.T, data []byte) (Archive, *stream.Memory) {
	t.Helper()
	m := stream.NewMemory(data)
	a, err := formatGLBRaptor{}.Open(m, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return a, m
}

func TestGLBMatch(t *testing.T) {
	got, err := formatGLBRaptor{}.Match(stream.NewMemory(buildGLB(glbInitial...)))
	if err != nil || got != DefinitelyYes {
		t.Fatalf("match = %v, %v; want DefinitelyYes", got, err)
	}
	got, err = formatGLBRaptor{}.Match(stream.NewMemory([]byte("not a glb file")))
	if err != nil || got != DefinitelyNo {
		t.Fatalf("match = %v, %v; want DefinitelyNo", got, err)
	}
}

func TestGLBParse(t *testing.T) {
	a, _ := openGLB(t, buildGLB(glbInitial...))
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
}

func TestGLBEncryptedEntry(t *testing.T) {
	// Encipher a payload the way the game stores it.
	ciphered, _, err := transform.Bytes(filter.NewAddEncrypt(glbKey, 0), []byte("secret level"))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := openGLB(t, buildGLB(glbFile{name: "LEVEL.BIN", data: string(ciphered), encrypted: true}))
	e := a.Files()[0]
	if e.Attr&AttrEncrypted == 0 || e.Filter != "glb-raptor" {
		t.Fatalf("entry not flagged encrypted (attr %v, filter %q)", e.Attr, e.Filter)
	}
	if got := readEntry(t, a, e, true); string(got) != "secret level" {
		t.Errorf("deciphered = %q", got)
	}
	if got := readEntry(t, a, e, false); string(got) != string(ciphered) {
		t.Errorf("raw read differs from stored bytes")
	}
}

func TestGLBRenameRoundTrip(t *testing.T) {
	a, m := openGLB(t, buildGLB(glbInitial...))
	if err := a.Rename(a.Files()[0], "THREE.DAT"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	want := buildGLB(
		glbFile{name: "THREE.DAT", data: "This is one.dat"},
		glbFile{name: "TWO.DAT", data: "This is two.dat"},
	)
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}

func TestGLBInsertFlushReopen(t *testing.T) {
	a, m := openGLB(t, buildGLB(glbInitial...))
	e, err := a.Insert(nil, "three.dat", 17, TypeGeneric, 0)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if e.Name != "THREE.DAT" {
		t.Fatalf("inserted name = %q, want upper-cased", e.Name)
	}
	s, err := a.Open(e, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	writeAll(t, s, []byte("This is three.dat"))
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	want := buildGLB(glbInitial[0], glbInitial[1],
		glbFile{name: "THREE.DAT", data: "This is three.dat"})
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}

	b, _ := openGLB(t, m.Bytes())
	if got := len(b.Files()); got != 3 {
		t.Fatalf("reopened files = %d, want 3", got)
	}
	if got := readEntry(t, b, b.Files()[2], true); string(got) != "This is three.dat" {
		t.Errorf("entry 2 = %q", got)
	}
}

func TestGLBRemove(t *testing.T) {
	a, m := openGLB(t, buildGLB(glbInitial...))
	if err := a.Remove(a.Files()[0]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	want := buildGLB(glbFile{name: "TWO.DAT", data: "This is two.dat"})
	if diff := cmp.Diff(want, m.Bytes()); diff != "" {
		t.Fatalf("backing stream mismatch (-want +got):\n%s", diff)
	}
}

func TestGLBCreate(t *testing.T) {
	m := stream.NewMemory(nil)
	a, err := formatGLBRaptor{}.Create(m, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(a.Files()) != 0 {
		t.Fatalf("new archive has %d files", len(a.Files()))
	}
	if !bytes.Equal(m.Bytes(), glbEmptyHeader) {
		t.Fatalf("new archive header = %#v", m.Bytes())
	}
}
