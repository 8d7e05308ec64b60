package gamearchive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/retrodos/gamearchive/stream"
)

// PCX Library v2 (.PCL). A 128-byte header (version word, copyright
// notice, label, file count), then 26-byte FAT rows: a sync byte, an
// 8-byte space-padded name, a 5-byte space-padded ".EXT" field, u32le
// offset and size, and DOS date/time words.
//
// Layout reference: the PCX Library notes on the ModdingWiki.
const (
	pcxMaxFiles        = 65535
	pcxFATOffset       = 2 + 50 + 42 + 2 + 32
	pcxFileCountOffset = 2 + 50 + 42
	pcxFATEntryLen     = 1 + 13 + 4 + 4 + 2 + 2
	pcxMaxFilenameLen  = 12
	pcxFirstFileOffset = pcxFATOffset
	pcxVersion         = 0xCA01
)

func pcxFATEntryOffset(e *Entry) int64 {
	return pcxFATOffset + int64(e.Index)*pcxFATEntryLen
}

type formatPCXLib struct{}

func init() { RegisterFormat(formatPCXLib{}) }

func (formatPCXLib) Code() string         { return "pcxlib" }
func (formatPCXLib) FriendlyName() string { return "PCX Library (v2)" }
func (formatPCXLib) Extensions() []string { return []string{"pcl"} }
func (formatPCXLib) Games() []string      { return []string{"Word Rescue"} }

func (formatPCXLib) Match(s stream.ReadStream) (Certainty, error) {
	lenArchive := s.Size()
	if lenArchive < pcxFATOffset {
		return DefinitelyNo, nil // too short for the header
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	version, err := readU16LE(s)
	if err != nil {
		return DefinitelyNo, err
	}
	if version != pcxVersion {
		return DefinitelyNo, nil // unknown version
	}

	if _, err := s.Seek(pcxFileCountOffset, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	numFiles, err := readU16LE(s)
	if err != nil {
		return DefinitelyNo, err
	}
	if lenArchive < pcxFATOffset+int64(numFiles)*pcxFATEntryLen {
		return DefinitelyNo, nil // too short for the FAT
	}

	if _, err := s.Seek(pcxFATOffset, io.SeekStart); err != nil {
		return DefinitelyNo, err
	}
	for i := 0; i < int(numFiles); i++ {
		var row [pcxFATEntryLen]byte
		if _, err := io.ReadFull(s, row[:]); err != nil {
			return DefinitelyNo, err
		}
		sync := row[0]
		ext := row[9:14]
		offset := int64(uint32(row[14]) | uint32(row[15])<<8 | uint32(row[16])<<16 | uint32(row[17])<<24)
		size := int64(uint32(row[18]) | uint32(row[19])<<8 | uint32(row[20])<<16 | uint32(row[21])<<24)

		if sync != 0x00 {
			return DefinitelyNo, nil // bad sync byte
		}
		if ext[0] != '.' {
			return DefinitelyNo, nil // bad filename
		}
		if offset <= pcxFATOffset+pcxFATEntryLen {
			return DefinitelyNo, nil // file inside the FAT
		}
		if offset+size > lenArchive {
			return DefinitelyNo, nil // truncated file
		}
	}
	return DefinitelyYes, nil
}

func (f formatPCXLib) Create(content stream.Stream, supp SuppData) (Archive, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	header := make([]byte, pcxFATOffset)
	copy(header, "\x01\xCA"+"Copyright (c) Genus Microprogramming, Inc. 1988-90")
	if _, err := content.Write(header); err != nil {
		return nil, err
	}
	return f.Open(content, supp)
}

func (formatPCXLib) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archivePCXLib{}
	a.FATArchive = NewFATArchive(content, a, pcxFirstFileOffset, Caps{
		MaxNameLen: pcxMaxFilenameLen,
	})

	c := a.Content()
	if c.Size() < pcxFATOffset {
		return nil, fmt.Errorf("%w: truncated file", ErrInvalidFormat)
	}
	if _, err := c.Seek(pcxFileCountOffset, io.SeekStart); err != nil {
		return nil, err
	}
	numFiles, err := readU16LE(c)
	if err != nil {
		return nil, err
	}
	// Skip the rest of the header, up to the FAT.
	if _, err := c.Seek(32, io.SeekCurrent); err != nil {
		return nil, err
	}

	for i := 0; i < int(numFiles); i++ {
		if _, err := readU8(c); err != nil { // sync byte
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		base, err := readNamePadded(c, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		ext, err := readNamePadded(c, 5)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		offset, err := readU32LE(c)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		size, err := readU32LE(c)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		if _, err := c.Seek(4, io.SeekCurrent); err != nil { // date, time
			return nil, err
		}

		name := strings.TrimRight(base, " ") + strings.TrimRight(ext, " ")
		a.AddParsedEntry(&Entry{
			Name:       name,
			StoredSize: int64(size),
			RealSize:   int64(size),
			Offset:     int64(offset),
		})
	}
	return a, nil
}

func (formatPCXLib) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

type archivePCXLib struct {
	*FATArchive
}

// Header text fields exposed as attributes.
const (
	pcxCopyrightOffset = 2
	pcxCopyrightLen    = 50
	pcxLabelOffset     = 2 + 50
	pcxLabelLen        = 42
)

func (a *archivePCXLib) readHeaderText(off int64, n int) string {
	buf := make([]byte, n)
	if err := stream.ReadFullAt(a.Content(), off, buf); err != nil {
		return ""
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

func (a *archivePCXLib) Attributes() []Attribute {
	return []Attribute{
		{
			Name: "copyright", Type: AttributeText,
			TextValue:  a.readHeaderText(pcxCopyrightOffset, pcxCopyrightLen),
			TextMaxLen: pcxCopyrightLen,
		},
		{
			Name: "label", Type: AttributeText,
			TextValue:  a.readHeaderText(pcxLabelOffset, pcxLabelLen),
			TextMaxLen: pcxLabelLen,
		},
	}
}

func (a *archivePCXLib) SetAttribute(index int, value any) error {
	attrs := a.Attributes()
	if index < 0 || index >= len(attrs) {
		return fmt.Errorf("%w: no attribute %d", ErrInvalidArgument, index)
	}
	attr := &attrs[index]
	if err := checkAttributeValue(attr, value); err != nil {
		return err
	}
	// Both fields are fixed-size header regions, so updating one
	// never moves the FAT.
	field := make([]byte, attr.TextMaxLen)
	copy(field, value.(string))
	var off int64 = pcxCopyrightOffset
	if index == 1 {
		off = pcxLabelOffset
	}
	return stream.WriteAllAt(a.Content(), off, field)
}

func (a *archivePCXLib) writeName(pos int64, name string) error {
	base, ext, err := splitDOSName(name, 8, 5)
	if err != nil {
		return err
	}
	c := a.Content()
	if _, err := c.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	if _, err := c.Write([]byte(base)); err != nil {
		return err
	}
	_, err = c.Write([]byte(ext))
	return err
}

func (a *archivePCXLib) UpdateFileName(e *Entry, newName string) error {
	return a.writeName(pcxFATEntryOffset(e)+1, newName)
}

func (a *archivePCXLib) UpdateFileOffset(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(pcxFATEntryOffset(e)+14, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.Offset))
}

func (a *archivePCXLib) UpdateFileSize(e *Entry, delta int64) error {
	c := a.Content()
	if _, err := c.Seek(pcxFATEntryOffset(e)+18, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(c, uint32(e.StoredSize))
}

func (a *archivePCXLib) PreInsert(before, newEntry *Entry) error {
	if len(a.Files()) >= pcxMaxFiles {
		return fmt.Errorf("%w: too many files, maximum is %d", ErrInvalidOperation, pcxMaxFiles)
	}
	newEntry.HeaderLen = 0
	// The new FAT row pushes every payload along.
	newEntry.Offset += pcxFATEntryLen
	newEntry.Name = strings.ToUpper(newEntry.Name)

	c := a.Content()
	if _, err := c.Seek(pcxFATEntryOffset(newEntry), io.SeekStart); err != nil {
		return err
	}
	c.Insert(pcxFATEntryLen)

	if err := writeU8(c, 0); err != nil { // sync byte
		return err
	}
	base, ext, err := splitDOSName(newEntry.Name, 8, 5)
	if err != nil {
		return err
	}
	if _, err := c.Write([]byte(base + ext)); err != nil {
		return err
	}
	if err := writeU32LE(c, uint32(newEntry.Offset)); err != nil {
		return err
	}
	if err := writeU32LE(c, uint32(newEntry.StoredSize)); err != nil {
		return err
	}
	var date, time uint16 // zero DOS timestamps
	if err := writeU16LE(c, date); err != nil {
		return err
	}
	if err := writeU16LE(c, time); err != nil {
		return err
	}

	return a.ShiftFiles(nil,
		pcxFATOffset+int64(len(a.Files()))*pcxFATEntryLen,
		pcxFATEntryLen, 0)
}

func (a *archivePCXLib) PostInsert(newEntry *Entry) error {
	return a.updateFileCount(uint16(len(a.Files())))
}

func (a *archivePCXLib) PreRemove(e *Entry) error {
	if err := a.ShiftFiles(nil,
		pcxFATOffset+int64(len(a.Files()))*pcxFATEntryLen,
		-pcxFATEntryLen, 0); err != nil {
		return err
	}
	c := a.Content()
	if _, err := c.Seek(pcxFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	c.Remove(pcxFATEntryLen)
	return nil
}

func (a *archivePCXLib) PostRemove(e *Entry) error {
	return a.updateFileCount(uint16(len(a.Files())))
}

func (a *archivePCXLib) updateFileCount(n uint16) error {
	c := a.Content()
	if _, err := c.Seek(pcxFileCountOffset, io.SeekStart); err != nil {
		return err
	}
	return writeU16LE(c, n)
}

var (
	_ Format     = formatPCXLib{}
	_ Archive    = (*archivePCXLib)(nil)
	_ FATAdapter = (*archivePCXLib)(nil)
)
