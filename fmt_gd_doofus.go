package gamearchive

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/retrodos/gamearchive/stream"
)

// Doofus .G-D. The data file is a bare concatenation of payloads; the
// directory is a fixed table of 64 eight-byte slots (u16le size,
// u16le type tag, four unused bytes) embedded in doofus.exe, supplied
// as a supplementary stream. Offsets are implied by accumulation, and
// the table keeps its length by swapping empty slots in and out.
const (
	gdFirstFileOffset = 0
	gdFATFilesizeOff  = 0
	gdFATEntryLen     = 8
	gdTypeMusicTBSA   = 0x59EE
)

// Known FAT locations, by executable size.
var gdFATLocations = map[int64]struct{ off, size int64 }{
	580994:           {0x015372, 8 * 64}, // only known version
	gdFATEntryLen * 64: {0, 8 * 64},      // bare table, for testing
}

var gdTypeTags = map[uint16]string{
	0x1636:          "unknown/doofus-1636",
	0x2376:          "unknown/doofus-2376",
	0x3276:          "unknown/doofus-3276",
	0x3F2E:          "unknown/doofus-3f2e",
	0x3F64:          "unknown/doofus-3f64",
	0x48BE:          "unknown/doofus-48be",
	0x43EE:          "unknown/doofus-43ee",
	gdTypeMusicTBSA: "music/tbsa",
}

type formatGDDoofus struct{}

func init() { RegisterFormat(formatGDDoofus{}) }

func (formatGDDoofus) Code() string         { return "gd-doofus" }
func (formatGDDoofus) FriendlyName() string { return "Doofus DAT File" }
func (formatGDDoofus) Extensions() []string { return []string{"g-d"} }
func (formatGDDoofus) Games() []string      { return []string{"Doofus"} }

func (formatGDDoofus) Match(s stream.ReadStream) (Certainty, error) {
	// There is literally no identifying information in this format.
	return Unsure, nil
}

func (formatGDDoofus) Create(content stream.Stream, supp SuppData) (Archive, error) {
	// The FAT has to go inside a specific version of the executable,
	// so new archives cannot be made from scratch.
	return nil, fmt.Errorf("%w: cannot create archives in this format", ErrInvalidOperation)
}

func (formatGDDoofus) Open(content stream.Stream, supp SuppData) (Archive, error) {
	fatStream, ok := supp[SuppFAT]
	if !ok || fatStream == nil {
		return nil, fmt.Errorf("%w: missing FAT supplementary stream", ErrInvalidArgument)
	}
	loc, ok := gdFATLocations[fatStream.Size()]
	if !ok {
		return nil, fmt.Errorf("%w: unknown file version", ErrInvalidFormat)
	}

	a := &archiveGDDoofus{}
	a.FATArchive = NewFATArchive(content, a, gdFirstFileOffset, Caps{})
	a.fat = stream.NewSeg(stream.NewSub(fatStream, loc.off, loc.size))
	a.fatRaw = fatStream
	a.maxFiles = int(loc.size / gdFATEntryLen)

	lenArchive := a.Content().Size()
	if _, err := a.fat.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var off int64
	for i := 0; i < a.maxFiles; i++ {
		size, err := readU16LE(a.fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FAT", ErrInvalidFormat)
		}
		typ, err := readU16LE(a.fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated FAT", ErrInvalidFormat)
		}
		if _, err := a.fat.Seek(4, io.SeekCurrent); err != nil {
			return nil, err
		}
		if size == 0 {
			continue // spare slot
		}

		e := &Entry{
			Type:       gdTypeTags[typ],
			StoredSize: int64(size),
			RealSize:   int64(size),
			Offset:     off,
		}
		off += int64(size)
		if off > lenArchive {
			Log.Warnf("gd-doofus: file %d ends at offset %d but the data file is only %d bytes",
				i, off, lenArchive)
			return nil, fmt.Errorf("%w: archive truncated or FAT corrupt", ErrInvalidFormat)
		}
		a.AddParsedEntry(e)
	}
	return a, nil
}

func (formatGDDoofus) RequiredSupps(content stream.ReadStream, archiveName string) SuppFilenames {
	return SuppFilenames{SuppFAT: "doofus.exe"}
}

type archiveGDDoofus struct {
	*FATArchive
	fat      *stream.Seg
	fatRaw   stream.Stream
	maxFiles int
}

// Flush commits the data file and then the directory slice of the
// executable.
func (a *archiveGDDoofus) Flush() error {
	var result *multierror.Error
	result = multierror.Append(result, a.FATArchive.Flush())
	// The table swaps rows in and out but never changes length, so
	// committing it cannot need a truncate.
	result = multierror.Append(result, a.fat.Commit(func(int64) error { return nil }))
	result = multierror.Append(result, a.fatRaw.Flush())
	return result.ErrorOrNil()
}

func (a *archiveGDDoofus) UpdateFileName(e *Entry, newName string) error {
	return errNameless()
}

func (a *archiveGDDoofus) UpdateFileOffset(e *Entry, delta int64) error {
	// Offsets are implied by accumulation; nothing to write.
	return nil
}

func (a *archiveGDDoofus) UpdateFileSize(e *Entry, delta int64) error {
	if _, err := a.fat.Seek(int64(e.Index)*gdFATEntryLen+gdFATFilesizeOff, io.SeekStart); err != nil {
		return err
	}
	return writeU16LE(a.fat, uint16(e.StoredSize))
}

func (a *archiveGDDoofus) PreInsert(before, newEntry *Entry) error {
	if len(a.Files())+1 >= a.maxFiles {
		return fmt.Errorf("%w: maximum number of files reached", ErrInvalidOperation)
	}
	newEntry.HeaderLen = 0

	// Swap the trailing spare slot for a fresh row at the insertion
	// point, keeping the table length fixed.
	if _, err := a.fat.Seek(-gdFATEntryLen, io.SeekEnd); err != nil {
		return err
	}
	a.fat.Remove(gdFATEntryLen)
	if _, err := a.fat.Seek(int64(newEntry.Index)*gdFATEntryLen, io.SeekStart); err != nil {
		return err
	}
	a.fat.Insert(gdFATEntryLen)

	var typ uint16
	for tag, name := range gdTypeTags {
		if name != TypeGeneric && name == newEntry.Type {
			typ = tag
			break
		}
	}
	if err := writeU16LE(a.fat, uint16(newEntry.StoredSize)); err != nil {
		return err
	}
	if err := writeU16LE(a.fat, typ); err != nil {
		return err
	}
	_, err := a.fat.Write(make([]byte, 4))
	return err
}

func (a *archiveGDDoofus) PostInsert(newEntry *Entry) error { return nil }

func (a *archiveGDDoofus) PreRemove(e *Entry) error {
	if _, err := a.fat.Seek(int64(e.Index)*gdFATEntryLen, io.SeekStart); err != nil {
		return err
	}
	a.fat.Remove(gdFATEntryLen)
	// Pad the table back out with a spare slot.
	if _, err := a.fat.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	a.fat.Insert(gdFATEntryLen)
	return nil
}

func (a *archiveGDDoofus) PostRemove(e *Entry) error { return nil }

var (
	_ Format     = formatGDDoofus{}
	_ Archive    = (*archiveGDDoofus)(nil)
	_ FATAdapter = (*archiveGDDoofus)(nil)
)
