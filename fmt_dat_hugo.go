package gamearchive

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/retrodos/gamearchive/stream"
)

// Hugo scenery .DAT. No header: the file opens straight onto 8-byte
// FAT rows (u32le offset, u32le size), so the offset in the first row
// doubles as the FAT length. Files are nameless. The scenery data is
// split over two files whose rows share one FAT in scenery1.dat; when
// that FAT is supplied as a supplementary stream, the archive exposes
// the second file's entries.
//
// Layout reference: the Hugo DAT notes on the ModdingWiki.
const (
	hugoFATEntryLen     = 8
	hugoFirstFileOffset = 0
)

func hugoFATEntryOffset(e *Entry) int64 { return int64(e.Index) * hugoFATEntryLen }

// hugoExtra records which of the two scenery files an entry's
// payload lives in.
type hugoExtra struct {
	file int
}

type formatDATHugo struct{}

func init() { RegisterFormat(formatDATHugo{}) }

func (formatDATHugo) Code() string         { return "dat-hugo" }
func (formatDATHugo) FriendlyName() string { return "Hugo DAT File" }
func (formatDATHugo) Extensions() []string { return []string{"dat"} }
func (formatDATHugo) Games() []string {
	return []string{"Hugo II, Whodunit?", "Hugo III, Jungle of Doom!"}
}

func (formatDATHugo) Match(s stream.ReadStream) (Certainty, error) {
	lenArchive := s.Size()

	// With no header at all, an empty file could be this format.
	if lenArchive == 0 {
		return PossiblyYes, nil
	}
	if lenArchive < hugoFATEntryLen {
		return DefinitelyNo, nil // too short
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	fatEnd, err := readU32LE(s)
	if err != nil {
		return DefinitelyNo, err
	}
	firstLen, err := readU32LE(s)
	if err != nil {
		return DefinitelyNo, err
	}
	if int64(fatEnd)+int64(firstLen) > lenArchive {
		return DefinitelyNo, nil // first file finishes after EOF
	}
	if fatEnd%hugoFATEntryLen != 0 {
		return DefinitelyNo, nil // last FAT row is truncated
	}

	numFiles := fatEnd / hugoFATEntryLen
	var offEntry, lenEntry uint32
	for i := uint32(1); i < numFiles; i++ {
		if offEntry, err = readU32LE(s); err != nil {
			return DefinitelyNo, err
		}
		if lenEntry, err = readU32LE(s); err != nil {
			return DefinitelyNo, err
		}
		if int64(offEntry)+int64(lenEntry) > lenArchive {
			return DefinitelyNo, nil // row points past EOF
		}
	}
	if int64(offEntry)+int64(lenEntry) != lenArchive {
		// Trailing data; could be one of the similar formats.
		return Unsure, nil
	}
	return DefinitelyYes, nil
}

func (f formatDATHugo) Create(content stream.Stream, supp SuppData) (Archive, error) {
	return f.Open(content, nil)
}

func (formatDATHugo) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archiveDATHugo{}
	a.FATArchive = NewFATArchive(content, a, hugoFirstFileOffset, Caps{})

	var fat stream.Stream = a.Content()
	haveSupp := false
	if s, ok := supp[SuppFAT]; ok && s != nil {
		fat = stream.NewSeg(s)
		haveSupp = true
	}

	lenFAT := fat.Size()
	lenArchive := a.Content().Size()

	// Empty files are empty archives; only parse when there is data.
	if lenFAT == 0 && lenArchive == 0 {
		return a, nil
	}
	if lenFAT < hugoFATEntryLen {
		return nil, fmt.Errorf("%w: archive too short, no FAT terminator", ErrInvalidFormat)
	}
	if _, err := fat.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	fatEnd, err := readU32LE(fat)
	if err != nil {
		return nil, err
	}
	if int64(fatEnd) > lenFAT {
		return nil, fmt.Errorf("%w: FAT truncated", ErrInvalidFormat)
	}
	numFiles := fatEnd / hugoFATEntryLen

	if _, err := fat.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var lastOffset uint32
	curFile := 1
	for i := uint32(0); i < numFiles; i++ {
		offset, err := readU32LE(fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		size, err := readU32LE(fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}

		// When the offsets drop back we have crossed into the rows of
		// the second scenery file.
		if offset != 0 || size != 0 {
			if offset < lastOffset {
				curFile++
			}
			lastOffset = offset
		}

		wantFile := 1
		if haveSupp {
			wantFile = 2
		}
		if curFile != wantFile {
			continue
		}
		a.AddParsedEntry(&Entry{
			StoredSize: int64(size),
			RealSize:   int64(size),
			Offset:     int64(offset),
			Extra:      hugoExtra{file: curFile},
		})
	}
	return a, nil
}

func (formatDATHugo) RequiredSupps(content stream.ReadStream, archiveName string) SuppFilenames {
	// scenery2.dat keeps its directory rows in scenery1.dat.
	base := path.Base(strings.ToLower(archiveName))
	if base == "scenery2.dat" {
		first := archiveName[:len(archiveName)-5] + "1" + archiveName[len(archiveName)-4:]
		return SuppFilenames{SuppFAT: first}
	}
	return nil
}

type archiveDATHugo struct {
	*FATArchive
}

func (a *archiveDATHugo) UpdateFileName(e *Entry, newName string) error {
	return fmt.Errorf("%w: this archive format has no filenames", ErrInvalidOperation)
}

func (a *archiveDATHugo) UpdateFileOffset(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(hugoFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.Offset))
}

func (a *archiveDATHugo) UpdateFileSize(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(hugoFATEntryOffset(e)+4, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.StoredSize))
}

func (a *archiveDATHugo) PreInsert(before, newEntry *Entry) error {
	newEntry.HeaderLen = 0
	newEntry.Extra = hugoExtra{file: 1}
	// The new FAT row pushes every payload along.
	newEntry.Offset += hugoFATEntryLen

	c := a.Content()
	if _, err := c.Seek(hugoFATEntryOffset(newEntry), io.SeekStart); err != nil {
		return err
	}
	c.Insert(hugoFATEntryLen)

	if err := writeU32LE(c, uint32(newEntry.Offset)); err != nil {
		return err
	}
	if err := writeU32LE(c, uint32(newEntry.StoredSize)); err != nil {
		return err
	}

	return a.ShiftFiles(nil,
		int64(len(a.Files()))*hugoFATEntryLen,
		hugoFATEntryLen, 0)
}

func (a *archiveDATHugo) PostInsert(newEntry *Entry) error { return nil }

func (a *archiveDATHugo) PreRemove(e *Entry) error {
	// Shift before erasing the row, or the new offsets would land in
	// the row being removed.
	if err := a.ShiftFiles(nil,
		int64(len(a.Files()))*hugoFATEntryLen,
		-hugoFATEntryLen, 0); err != nil {
		return err
	}
	c := a.Content()
	if _, err := c.Seek(hugoFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	c.Remove(hugoFATEntryLen)
	return nil
}

func (a *archiveDATHugo) PostRemove(e *Entry) error { return nil }

var (
	_ Format     = formatDATHugo{}
	_ Archive    = (*archiveDATHugo)(nil)
	_ FATAdapter = (*archiveDATHugo)(nil)
)
