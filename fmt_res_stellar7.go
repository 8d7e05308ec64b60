package gamearchive

import (
	"fmt"
	"io"
	"strings"

	"github.com/retrodos/gamearchive/stream"
)

// Stellar 7 .RES. A chain of 8-byte headers (4-byte name, u32le with
// the top bit flagging a folder and the rest the size) each followed
// by its payload. Folder entries contain a whole .RES archive, which
// OpenFolder exposes as an archive in its own right.
//
// Layout reference: the Stellar 7 RES notes on the ModdingWiki.
const (
	resFirstFileOffset    = 0
	resMaxFilenameLen     = 4
	resFATFilesizeOff     = 4
	resFATEntryLen        = 8
	resSafetyMaxFileCount = 8192
	resFolderFlag         = 0x80000000
)

type formatRESStellar7 struct{}

func init() { RegisterFormat(formatRESStellar7{}) }

func (formatRESStellar7) Code() string         { return "res-stellar7" }
func (formatRESStellar7) FriendlyName() string { return "Stellar 7 Resource File" }
func (formatRESStellar7) Extensions() []string { return []string{"res"} }
func (formatRESStellar7) Games() []string      { return []string{"Stellar 7"} }

func (formatRESStellar7) Match(s stream.ReadStream) (Certainty, error) {
	lenArchive := s.Size()
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}

	var offNext int64
	i := 0
	for ; i < resSafetyMaxFileCount && offNext+resFATEntryLen <= lenArchive; i++ {
		var name [resMaxFilenameLen]byte
		if _, err := io.ReadFull(s, name[:]); err != nil {
			return DefinitelyNo, err
		}
		for _, c := range name {
			if c == 0 {
				break
			}
			if c < 32 {
				return DefinitelyNo, nil // control char in filename
			}
		}
		v, err := readU32LE(s)
		if err != nil {
			return DefinitelyNo, err
		}
		size := int64(v &^ resFolderFlag)
		offNext += resFATEntryLen + size
		if offNext > lenArchive {
			return DefinitelyNo, nil // runs past EOF
		}
		if _, err := s.Seek(size, io.SeekCurrent); err != nil {
			return DefinitelyNo, err
		}
	}
	if i == resSafetyMaxFileCount {
		return PossiblyYes, nil
	}
	return DefinitelyYes, nil
}

func (f formatRESStellar7) Create(content stream.Stream, supp SuppData) (Archive, error) {
	return f.Open(content, supp)
}

func (formatRESStellar7) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archiveRESStellar7{}
	a.FATArchive = NewFATArchive(content, a, resFirstFileOffset, Caps{
		MaxNameLen: resMaxFilenameLen,
		Folders:    true,
	})

	c := a.Content()
	lenArchive := c.Size()
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	offNext := int64(resFirstFileOffset)
	for i := 0; i < resSafetyMaxFileCount && offNext+resFATEntryLen <= lenArchive; i++ {
		name, err := readNamePadded(c, resMaxFilenameLen)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header chain", ErrInvalidFormat)
		}
		v, err := readU32LE(c)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header chain", ErrInvalidFormat)
		}

		e := &Entry{
			Name:       name,
			StoredSize: int64(v &^ resFolderFlag),
			Offset:     offNext,
			HeaderLen:  resFATEntryLen,
		}
		e.RealSize = e.StoredSize
		if v&resFolderFlag != 0 {
			e.Attr |= AttrFolder
		}
		a.AddParsedEntry(e)

		offNext += resFATEntryLen + e.StoredSize
		if offNext > lenArchive {
			Log.Warn("res-stellar7: file truncated or not in RES format, file list may be incomplete")
			break
		}
		if _, err := c.Seek(e.StoredSize, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (formatRESStellar7) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

type archiveRESStellar7 struct {
	*FATArchive
}

// OpenFolder reopens a folder entry's payload as a RES archive of
// its own. Edits inside it must be flushed before the outer archive.
func (a *archiveRESStellar7) OpenFolder(e *Entry) (Archive, error) {
	if e.Attr&AttrFolder == 0 {
		return nil, fmt.Errorf("%w: entry is not a folder", ErrInvalidArgument)
	}
	contents, err := a.Open(e, true)
	if err != nil {
		return nil, err
	}
	return formatRESStellar7{}.Open(contents, nil)
}

func (a *archiveRESStellar7) UpdateFileName(e *Entry, newName string) error {
	c := a.Content()
	if _, err := c.Seek(e.Offset, io.SeekStart); err != nil {
		return err
	}
	return writeNamePadded(c, newName, resMaxFilenameLen)
}

func (a *archiveRESStellar7) UpdateFileOffset(e *Entry, delta int64) error {
	// The header travels with the payload; nothing stores an offset.
	return nil
}

func (a *archiveRESStellar7) UpdateFileSize(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(e.Offset+resFATFilesizeOff, io.SeekStart); err != nil {
		return err
	}
	v := uint32(e.StoredSize)
	if e.Attr&AttrFolder != 0 {
		v |= resFolderFlag
	}
	return writeU32LE(c, v)
}

func (a *archiveRESStellar7) PreInsert(before, newEntry *Entry) error {
	newEntry.HeaderLen = resFATEntryLen
	newEntry.Name = strings.ToUpper(newEntry.Name)
	return nil
}

func (a *archiveRESStellar7) PostInsert(newEntry *Entry) error {
	c := a.Content()
	if _, err := c.Seek(newEntry.Offset, io.SeekStart); err != nil {
		return err
	}
	if err := writeNamePadded(c, newEntry.Name, resMaxFilenameLen); err != nil {
		return err
	}
	v := uint32(newEntry.StoredSize)
	if newEntry.Attr&AttrFolder != 0 {
		v |= resFolderFlag
	}
	return writeU32LE(c, v)
}

func (a *archiveRESStellar7) PreRemove(e *Entry) error  { return nil }
func (a *archiveRESStellar7) PostRemove(e *Entry) error { return nil }

var (
	_ Format     = formatRESStellar7{}
	_ Archive    = (*archiveRESStellar7)(nil)
	_ FATAdapter = (*archiveRESStellar7)(nil)
)
