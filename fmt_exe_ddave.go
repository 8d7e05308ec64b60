package gamearchive

import (
	"fmt"
	"io"

	"github.com/retrodos/gamearchive/stream"
)

// Dangerous Dave .exe. The game's assets live at fixed offsets inside
// the executable, so the fixed-slot engine applies: slots can be
// rewritten (and the RLE tilesets re-sized within their slots) but
// never added or removed. The two .dav tilesets skip the u32le
// decompressed-size prefix in front of their data; resizing rewrites
// that prefix so the game stops decoding at the right byte.
const (
	ddaveEXESize  = 172848
	ddaveLevelLen = 256 + 100*10 + 24
)

// ddaveResize updates the decompressed-size prefix for the
// RLE-compressed tilesets. Queried with both sizes negative it
// returns the current prefix value.
func ddaveResize(slotOffset, slotSize int64) func(stream.Stream, *Entry, int64, int64) (int64, error) {
	return func(content stream.Stream, e *Entry, newStored, newReal int64) (int64, error) {
		if newStored < 0 && newReal < 0 {
			if _, err := content.Seek(slotOffset-4, io.SeekStart); err != nil {
				return 0, err
			}
			v, err := readU32LE(content)
			if err != nil {
				return 0, err
			}
			return int64(v), nil
		}
		if newStored > slotSize {
			return 0, fmt.Errorf("%w: not enough space in the executable for this data", ErrInvalidArgument)
		}
		if _, err := content.Seek(slotOffset-4, io.SeekStart); err != nil {
			return 0, err
		}
		if err := writeU32LE(content, uint32(newReal)); err != nil {
			return 0, err
		}
		// The stored size stays as the slot: the data fits within it
		// and the prefix makes the game ignore the slack.
		return newReal, nil
	}
}

func ddaveFiles() []FixedFile {
	levelOffset := func(x int64) int64 { return 0x26e0a + ddaveLevelLen*x }
	files := []FixedFile{
		{Offset: 0x0b4ff, Size: 0x0c620 - 0x0b4ff, Name: "first.bin"},
		// The +4/-4 skips the u32le decompressed-size prefix.
		{Offset: 0x0c620 + 4, Size: 0x120f0 - 0x0c620 - 4, Name: "cgadave.dav",
			Filter: "rle-ddave", Resize: ddaveResize(0x0c620+4, 0x120f0-0x0c620-4)},
		{Offset: 0x120f0 + 4, Size: 0x1c4e0 - 0x120f0 - 4, Name: "vgadave.dav",
			Filter: "rle-ddave", Resize: ddaveResize(0x120f0+4, 0x1c4e0-0x120f0-4)},
		{Offset: 0x1c4e0, Size: 0x1d780 - 0x1c4e0, Name: "sounds.spk"},
		{Offset: 0x1d780, Size: 0x1ea40 - 0x1d780, Name: "menucga.gfx"},
		{Offset: 0x1ea40, Size: 0x20ec0 - 0x1ea40, Name: "menuega.gfx"},
		{Offset: 0x20ec0, Size: 0x256c0 - 0x20ec0, Name: "menuvga.gfx"},
		{Offset: 0x26b0a, Size: 768, Name: "vga.pal"},
	}
	for i := int64(0); i < 10; i++ {
		files = append(files, FixedFile{
			Offset: levelOffset(i),
			Size:   ddaveLevelLen,
			Name:   fmt.Sprintf("level%02d.dav", i+1),
		})
	}
	return files
}

type formatEXEDDave struct{}

func init() { RegisterFormat(formatEXEDDave{}) }

func (formatEXEDDave) Code() string         { return "exe-ddave" }
func (formatEXEDDave) FriendlyName() string { return "Dangerous Dave Executable" }
func (formatEXEDDave) Extensions() []string { return []string{"exe"} }
func (formatEXEDDave) Games() []string      { return []string{"Dangerous Dave"} }

func (formatEXEDDave) Match(s stream.ReadStream) (Certainty, error) {
	if s.Size() != ddaveEXESize {
		return DefinitelyNo, nil
	}
	// No version strings, so check some data unlikely to be modded.
	var buf [25]byte
	if err := stream.ReadFullAt(s, 0x26A80, buf[:]); err != nil {
		return DefinitelyNo, err
	}
	if string(buf[:]) != "Trouble loading tileset!$" {
		return DefinitelyNo, nil
	}
	return DefinitelyYes, nil
}

func (formatEXEDDave) Create(content stream.Stream, supp SuppData) (Archive, error) {
	// Not a true archive, so new ones cannot be created.
	return nil, fmt.Errorf("%w: cannot create archives in this format", ErrInvalidOperation)
}

func (formatEXEDDave) Open(content stream.Stream, supp SuppData) (Archive, error) {
	return NewFixedArchive(content, ddaveFiles())
}

func (formatEXEDDave) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

var _ Format = formatEXEDDave{}
