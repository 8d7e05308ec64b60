package gamearchive

import (
	"io"

	"github.com/retrodos/gamearchive/stream"
)

// SkyRoads roads file. The FAT is a run of 4-byte rows (u16le offset,
// u16le decompressed size); the offset in the first row marks the end
// of the FAT, which is how the file count is derived. Stored sizes
// are not recorded: each is the gap to the next offset (or EOF).
// Files are nameless.
const (
	srrFATEntryLen     = 4
	srrFirstFileOffset = 0
)

type formatRoadsSkyRoads struct{}

func init() { RegisterFormat(formatRoadsSkyRoads{}) }

func (formatRoadsSkyRoads) Code() string         { return "roads-skyroads" }
func (formatRoadsSkyRoads) FriendlyName() string { return "SkyRoads Roads File" }
func (formatRoadsSkyRoads) Extensions() []string { return []string{"lzs"} }
func (formatRoadsSkyRoads) Games() []string      { return []string{"SkyRoads"} }

func (formatRoadsSkyRoads) Match(s stream.ReadStream) (Certainty, error) {
	lenArchive := s.Size()
	if lenArchive < 2 {
		return DefinitelyNo, nil
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	lenFAT, err := readU16LE(s)
	if err != nil {
		return DefinitelyNo, err
	}
	if int64(lenFAT) > lenArchive {
		return DefinitelyNo, nil // FAT bigger than the whole file
	}
	if lenFAT < srrFATEntryLen {
		return DefinitelyNo, nil // too small for one row
	}
	if lenFAT%srrFATEntryLen != 0 {
		return DefinitelyNo, nil // not a whole number of rows
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	var offPrev uint16
	for i := 0; i < int(lenFAT)/srrFATEntryLen; i++ {
		offEntry, err := readU16LE(s)
		if err != nil {
			return DefinitelyNo, err
		}
		lenDecomp, err := readU16LE(s)
		if err != nil {
			return DefinitelyNo, err
		}
		if int64(offEntry) > lenArchive {
			return DefinitelyNo, nil // row points past EOF
		}
		if offEntry < offPrev {
			return DefinitelyNo, nil // offsets must not go backwards
		}
		// Zero-length files assumed impossible; this avoids false
		// positives against similar formats.
		if lenDecomp == 0 {
			return DefinitelyNo, nil
		}
		offPrev = offEntry
	}
	return DefinitelyYes, nil
}

func (f formatRoadsSkyRoads) Create(content stream.Stream, supp SuppData) (Archive, error) {
	return f.Open(content, supp)
}

func (formatRoadsSkyRoads) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archiveRoadsSkyRoads{}
	a.FATArchive = NewFATArchive(content, a, srrFirstFileOffset, Caps{})

	c := a.Content()
	lenArchive := c.Size()
	if lenArchive == 0 {
		return a, nil
	}
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	offCur, err := readU16LE(c)
	if err != nil {
		return nil, err
	}
	numFiles := int(offCur) / srrFATEntryLen

	for i := 0; i < numFiles; i++ {
		lenDecomp, err := readU16LE(c)
		if err != nil {
			return nil, err
		}
		offNext := uint16(lenArchive)
		if i < numFiles-1 {
			if offNext, err = readU16LE(c); err != nil {
				return nil, err
			}
		}
		a.AddParsedEntry(&Entry{
			Type:       "map/skyroads",
			StoredSize: int64(offNext) - int64(offCur),
			RealSize:   int64(lenDecomp),
			Offset:     int64(offCur),
		})
		offCur = offNext
	}
	return a, nil
}

func (formatRoadsSkyRoads) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

type archiveRoadsSkyRoads struct {
	*FATArchive
}

func (a *archiveRoadsSkyRoads) UpdateFileName(e *Entry, newName string) error {
	return errNameless()
}

func (a *archiveRoadsSkyRoads) UpdateFileOffset(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(int64(e.Index)*srrFATEntryLen, io.SeekStart); err != nil {
		return err
	}
	return writeU16LE(c, uint16(e.Offset))
}

func (a *archiveRoadsSkyRoads) UpdateFileSize(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(int64(e.Index)*srrFATEntryLen+2, io.SeekStart); err != nil {
		return err
	}
	return writeU16LE(c, uint16(e.RealSize))
}

func (a *archiveRoadsSkyRoads) PreInsert(before, newEntry *Entry) error {
	newEntry.HeaderLen = 0
	// The new FAT row pushes every payload along.
	newEntry.Offset += srrFATEntryLen

	c := a.Content()
	if _, err := c.Seek(int64(newEntry.Index)*srrFATEntryLen, io.SeekStart); err != nil {
		return err
	}
	c.Insert(srrFATEntryLen)
	if err := writeU16LE(c, uint16(newEntry.Offset)); err != nil {
		return err
	}
	if err := writeU16LE(c, uint16(newEntry.StoredSize)); err != nil {
		return err
	}

	return a.ShiftFiles(nil,
		int64(len(a.Files()))*srrFATEntryLen,
		srrFATEntryLen, 0)
}

func (a *archiveRoadsSkyRoads) PostInsert(newEntry *Entry) error { return nil }

func (a *archiveRoadsSkyRoads) PreRemove(e *Entry) error {
	if err := a.ShiftFiles(nil,
		int64(len(a.Files()))*srrFATEntryLen,
		-srrFATEntryLen, 0); err != nil {
		return err
	}
	c := a.Content()
	if _, err := c.Seek(int64(e.Index)*srrFATEntryLen, io.SeekStart); err != nil {
		return err
	}
	c.Remove(srrFATEntryLen)
	return nil
}

func (a *archiveRoadsSkyRoads) PostRemove(e *Entry) error { return nil }

var (
	_ Format     = formatRoadsSkyRoads{}
	_ Archive    = (*archiveRoadsSkyRoads)(nil)
	_ FATAdapter = (*archiveRoadsSkyRoads)(nil)
)
