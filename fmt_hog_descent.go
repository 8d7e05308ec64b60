package gamearchive

import (
	"fmt"
	"io"

	"github.com/retrodos/gamearchive/stream"
)

// Descent .HOG. A three-byte "DHF" signature, then each file is
// preceded in-band by a 17-byte header: a 13-byte NUL-padded name and
// a u32le size. There is no central directory; the chain of headers
// is walked to list the archive.
//
// Layout reference: the HOG format notes on the ModdingWiki.
const (
	hogHeaderLen        = 3
	hogMaxFilenameLen   = 12
	hogFilenameFieldLen = 13 // one more, it must always end in a NUL
	hogFATFilesizeOff   = 13
	hogFATEntryLen      = 17
	hogFirstFileOffset  = hogHeaderLen

	hogMaxFileCount       = 250  // most Descent will load
	hogSafetyMaxFileCount = 1024 // most we will parse
)

type formatHOGDescent struct{}

func init() { RegisterFormat(formatHOGDescent{}) }

func (formatHOGDescent) Code() string         { return "hog-descent" }
func (formatHOGDescent) FriendlyName() string { return "Descent HOG file" }
func (formatHOGDescent) Extensions() []string { return []string{"hog"} }
func (formatHOGDescent) Games() []string      { return []string{"Descent"} }

func (formatHOGDescent) Match(s stream.ReadStream) (Certainty, error) {
	if s.Size() < hogHeaderLen {
		return DefinitelyNo, nil // too short
	}
	var sig [hogHeaderLen]byte
	if err := stream.ReadFullAt(s, 0, sig[:]); err != nil {
		return DefinitelyNo, err
	}
	if string(sig[:]) == "DHF" {
		return DefinitelyYes, nil
	}
	return DefinitelyNo, nil
}

func (f formatHOGDescent) Create(content stream.Stream, supp SuppData) (Archive, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := content.Write([]byte("DHF")); err != nil {
		return nil, err
	}
	return f.Open(content, supp)
}

func (formatHOGDescent) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archiveHOGDescent{}
	a.FATArchive = NewFATArchive(content, a, hogFirstFileOffset, Caps{
		MaxNameLen: hogMaxFilenameLen,
	})

	c := a.Content()
	lenArchive := c.Size()
	if lenArchive < hogFirstFileOffset {
		return nil, fmt.Errorf("%w: file too short", ErrInvalidFormat)
	}
	if _, err := c.Seek(hogFirstFileOffset, io.SeekStart); err != nil {
		return nil, err
	}

	offNext := int64(hogFirstFileOffset)
	for i := 0; offNext+hogFATEntryLen <= lenArchive; i++ {
		name, err := readNamePadded(c, hogFilenameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header chain", ErrInvalidFormat)
		}
		size, err := readU32LE(c)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header chain", ErrInvalidFormat)
		}

		e := &Entry{
			Name:       name,
			StoredSize: int64(size),
			RealSize:   int64(size),
			Offset:     offNext,
			HeaderLen:  hogFATEntryLen,
		}
		a.AddParsedEntry(e)

		offNext += hogFATEntryLen + int64(size)
		if offNext > lenArchive {
			Log.Warn("hog-descent: file truncated or not in HOG format, file list may be incomplete")
			break
		}
		if _, err := c.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, err
		}
		if i >= hogSafetyMaxFileCount {
			return nil, fmt.Errorf("%w: too many files or corrupted archive", ErrInvalidFormat)
		}
	}
	return a, nil
}

func (formatHOGDescent) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

type archiveHOGDescent struct {
	*FATArchive
}

func (a *archiveHOGDescent) UpdateFileName(e *Entry, newName string) error {
	c := a.Content()
	if _, err := c.Seek(e.Offset, io.SeekStart); err != nil {
		return err
	}
	return writeNamePadded(c, newName, hogFilenameFieldLen)
}

func (a *archiveHOGDescent) UpdateFileOffset(e *Entry, delta int64) error {
	// The header travels with the payload; nothing stores an offset.
	return nil
}

func (a *archiveHOGDescent) UpdateFileSize(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(e.Offset+hogFATFilesizeOff, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.StoredSize))
}

func (a *archiveHOGDescent) PreInsert(before, newEntry *Entry) error {
	if len(a.Files())+1 > hogMaxFileCount {
		return fmt.Errorf("%w: too many files, maximum is %d", ErrInvalidOperation, hogMaxFileCount)
	}
	// The 17-byte header sits in front of the payload; the engine
	// reserves space for both together.
	newEntry.HeaderLen = hogFATEntryLen
	return nil
}

func (a *archiveHOGDescent) PostInsert(newEntry *Entry) error {
	c := a.Content()
	if _, err := c.Seek(newEntry.Offset, io.SeekStart); err != nil {
		return err
	}
	if err := writeNamePadded(c, newEntry.Name, hogFilenameFieldLen); err != nil {
		return err
	}
	return writeU32LE(c, uint32(newEntry.StoredSize))
}

func (a *archiveHOGDescent) PreRemove(e *Entry) error  { return nil }
func (a *archiveHOGDescent) PostRemove(e *Entry) error { return nil }

var (
	_ Format     = formatHOGDescent{}
	_ Archive    = (*archiveHOGDescent)(nil)
	_ FATAdapter = (*archiveHOGDescent)(nil)
)
