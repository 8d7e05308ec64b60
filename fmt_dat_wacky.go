package gamearchive

import (
	"fmt"
	"io"
	"strings"

	"github.com/retrodos/gamearchive/stream"
)

// Wacky Wheels .DAT. A u16le file count, then one 22-byte FAT row
// per file (14-byte name field, u32le size, u32le offset), then the
// payloads. Stored offsets are relative to the end of the file count.
//
// Layout reference: the DAT format notes on the ModdingWiki.
const (
	wackyFileCountOffset = 0
	wackyMaxFilenameLen  = 12
	wackyFilenameFieldLen = 14
	wackyFATEntryLen     = 22
	wackyFATOffset       = 2
	wackyFirstFileOffset = wackyFATOffset
)

func wackyFATEntryOffset(e *Entry) int64 {
	return wackyFATOffset + int64(e.Index)*wackyFATEntryLen
}

type formatDATWacky struct{}

func init() { RegisterFormat(formatDATWacky{}) }

func (formatDATWacky) Code() string         { return "dat-wacky" }
func (formatDATWacky) FriendlyName() string { return "Wacky Wheels DAT File" }
func (formatDATWacky) Extensions() []string { return []string{"dat"} }
func (formatDATWacky) Games() []string      { return []string{"Wacky Wheels"} }

func (formatDATWacky) Match(s stream.ReadStream) (Certainty, error) {
	lenArchive := s.Size()
	if lenArchive < wackyFATOffset {
		return DefinitelyNo, nil // too short for the file count
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	numFiles, err := readU16LE(s)
	if err != nil {
		return DefinitelyNo, err
	}
	fatEnd := int64(wackyFATOffset) + int64(numFiles)*wackyFATEntryLen
	if fatEnd > lenArchive {
		return DefinitelyNo, nil // FAT truncated
	}

	var contentEnd int64 = fatEnd
	for i := 0; i < int(numFiles); i++ {
		var name [wackyFilenameFieldLen]byte
		if _, err := io.ReadFull(s, name[:]); err != nil {
			return DefinitelyNo, err
		}
		if name[0] == 0 {
			return DefinitelyNo, nil // blank filename
		}
		for _, c := range name {
			if c == 0 {
				break
			}
			if c < 32 {
				return DefinitelyNo, nil // control char in filename
			}
		}
		size, err := readU32LE(s)
		if err != nil {
			return DefinitelyNo, err
		}
		offset, err := readU32LE(s)
		if err != nil {
			return DefinitelyNo, err
		}
		end := wackyFATOffset + int64(offset) + int64(size)
		if end > lenArchive {
			return DefinitelyNo, nil // file past EOF
		}
		if end > contentEnd {
			contentEnd = end
		}
	}
	if contentEnd != lenArchive {
		// Trailing data the count does not account for.
		if numFiles == 0 {
			return DefinitelyNo, nil
		}
		return Unsure, nil
	}
	return DefinitelyYes, nil
}

func (f formatDATWacky) Create(content stream.Stream, supp SuppData) (Archive, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := writeU16LE(content, 0); err != nil {
		return nil, err
	}
	return f.Open(content, supp)
}

func (formatDATWacky) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archiveDATWacky{}
	a.FATArchive = NewFATArchive(content, a, wackyFirstFileOffset, Caps{
		MaxNameLen: wackyMaxFilenameLen,
	})

	c := a.Content()
	if c.Size() < wackyFATOffset {
		return nil, fmt.Errorf("%w: archive too short, missing file count", ErrInvalidFormat)
	}
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	numFiles, err := readU16LE(c)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(numFiles); i++ {
		name, err := readNamePadded(c, wackyFilenameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		size, err := readU32LE(c)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		offset, err := readU32LE(c)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		a.AddParsedEntry(&Entry{
			Name:       name,
			StoredSize: int64(size),
			RealSize:   int64(size),
			// Stored offsets leave out the two-byte file count.
			Offset: int64(offset) + wackyFATOffset,
		})
	}
	return a, nil
}

func (formatDATWacky) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

type archiveDATWacky struct {
	*FATArchive
}

func (a *archiveDATWacky) UpdateFileName(e *Entry, newName string) error {
	c := a.Content()
	if _, err := c.Seek(wackyFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	return writeNamePadded(c, newName, wackyFilenameFieldLen)
}

func (a *archiveDATWacky) UpdateFileOffset(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(wackyFATEntryOffset(e)+wackyFilenameFieldLen+4, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.Offset-wackyFATOffset))
}

func (a *archiveDATWacky) UpdateFileSize(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(wackyFATEntryOffset(e)+wackyFilenameFieldLen, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.StoredSize))
}

func (a *archiveDATWacky) PreInsert(before, newEntry *Entry) error {
	newEntry.HeaderLen = 0
	// The new FAT row pushes every payload along before the engine
	// inserts the payload space itself.
	newEntry.Offset += wackyFATEntryLen

	c := a.Content()
	if _, err := c.Seek(wackyFATEntryOffset(newEntry), io.SeekStart); err != nil {
		return err
	}
	c.Insert(wackyFATEntryLen)

	newEntry.Name = strings.ToUpper(newEntry.Name)
	if err := writeNamePadded(c, newEntry.Name, wackyFilenameFieldLen); err != nil {
		return err
	}
	if err := writeU32LE(c, uint32(newEntry.StoredSize)); err != nil {
		return err
	}
	if err := writeU32LE(c, uint32(newEntry.Offset-wackyFATOffset)); err != nil {
		return err
	}

	return a.ShiftFiles(nil,
		wackyFATOffset+int64(len(a.Files()))*wackyFATEntryLen,
		wackyFATEntryLen, 0)
}

func (a *archiveDATWacky) PostInsert(newEntry *Entry) error {
	return a.updateFileCount(uint16(len(a.Files())))
}

func (a *archiveDATWacky) PreRemove(e *Entry) error {
	// Pull the payloads back over the vacated FAT row first; doing it
	// after would write an offset into the row being erased.
	if err := a.ShiftFiles(nil,
		wackyFATOffset+int64(len(a.Files()))*wackyFATEntryLen,
		-wackyFATEntryLen, 0); err != nil {
		return err
	}
	c := a.Content()
	if _, err := c.Seek(wackyFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	c.Remove(wackyFATEntryLen)
	return nil
}

func (a *archiveDATWacky) PostRemove(e *Entry) error {
	return a.updateFileCount(uint16(len(a.Files())))
}

func (a *archiveDATWacky) updateFileCount(n uint16) error {
	c := a.Content()
	if _, err := c.Seek(wackyFileCountOffset, io.SeekStart); err != nil {
		return err
	}
	return writeU16LE(c, n)
}

var (
	_ Format     = formatDATWacky{}
	_ Archive    = (*archiveDATWacky)(nil)
	_ FATAdapter = (*archiveDATWacky)(nil)
)
