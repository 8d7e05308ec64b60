package gamearchive

import (
	"errors"
	"testing"

	"github.com/retrodos/gamearchive/stream"
)

func TestRegistryLookups(t *testing.T) {
	for _, code := range []string{
		"dat-hugo", "dat-wacky", "glb-raptor", "hog-descent", "pcxlib",
		"res-stellar7", "roads-skyroads", "gd-doofus", "exe-ddave", "da-levels",
	} {
		if FormatByCode(code) == nil {
			t.Errorf("format %q not registered", code)
		}
	}
	for _, code := range []string{
		"rle-bash", "lzw-bash", "rle-ddave", "lzw-epfs", "lzw-stellar7",
		"lzss-got", "lzs-skyroads", "bpe-stargunner", "lzw-zone66",
		"glb-raptor-fat", "glb-raptor", "xor", "xor-blood",
	} {
		if FilterByCode(code) == nil {
			t.Errorf("filter %q not registered", code)
		}
	}
	if FormatByCode("no-such-format") != nil {
		t.Error("unknown format code resolved")
	}
}

func TestIdentifySignatureWins(t *testing.T) {
	cases := map[string][]byte{
		"hog-descent": buildHOG(hogInitial...),
		"glb-raptor":  buildGLB(glbInitial...),
		"dat-wacky":   buildWacky(wackyInitial...),
	}
	for want, data := range cases {
		f, c, err := Identify(stream.NewMemory(data))
		if err != nil {
			t.Errorf("%s: identify failed: %v", want, err)
			continue
		}
		if f.Code() != want || c != DefinitelyYes {
			t.Errorf("identify = %s (%v), want %s (yes)", f.Code(), c, want)
		}
	}
}

func TestIdentifyFallsBackToWeakMatches(t *testing.T) {
	// Nothing claims this stream outright; formats with no
	// identifying information keep it from being a no-match.
	f, c, err := Identify(stream.NewMemory([]byte("%%% not an archive %%%")))
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if c == DefinitelyYes || f == nil {
		t.Fatalf("identify = %v (%v), want a weak match", f, c)
	}
}

func TestOpenUnknownFilterCode(t *testing.T) {
	a, _ := newBareArchive(t, []byte("abc"),
		&Entry{Name: "A", Offset: 0, StoredSize: 3, RealSize: 3, Filter: "no-such-filter"},
	)
	if _, err := a.Open(a.Files()[0], true); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("open error = %v, want ErrInvalidFormat", err)
	}
}
