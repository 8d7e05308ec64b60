package gamearchive

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/transform"

	"github.com/retrodos/gamearchive/filter"
	"github.com/retrodos/gamearchive/stream"
)

// Raptor .GLB. A 28-byte header (magic, u32le file count) followed by
// 28-byte FAT rows (u32le flags, offset, size, 16-byte name), all of
// it enciphered with the additive cipher restarting every 28 bytes.
// The FAT is held deciphered in memory and re-enciphered on flush.
// Flag 0x01 marks a file enciphered with the same key, unreset.
//
// Layout reference: the GLB format notes on the ModdingWiki.
const (
	glbFileCountOffset   = 4
	glbHeaderLen         = 28 // sized like a FAT row
	glbFATOffset         = glbHeaderLen
	glbFilenameFieldLen  = 16
	glbMaxFilenameLen    = glbFilenameFieldLen - 1
	glbFATEntryLen       = 28
	glbFirstFileOffset   = glbFATOffset // empty archive only
	glbSafetyMaxFiles    = 8192
	glbEncryptedFlag     = 0x01
)

// The enciphered form of an all-zero header, as written into new
// archives.
var glbEmptyHeader = []byte{
	0x64, 0x9B, 0xD1, 0x09, 0x50, 0x9C, 0xDE, 0x11,
	0x43, 0x7A, 0xB0, 0xE8, 0x2F, 0x7B, 0xBD, 0xF0,
	0x22, 0x59, 0x8F, 0xC7, 0x0E, 0x5A, 0x9C, 0xCF,
	0x01, 0x38, 0x6E, 0xA6,
}

func glbFATEntryOffset(e *Entry) int64 {
	return glbHeaderLen + int64(e.Index)*glbFATEntryLen
}

type formatGLBRaptor struct{}

func init() { RegisterFormat(formatGLBRaptor{}) }

func (formatGLBRaptor) Code() string         { return "glb-raptor" }
func (formatGLBRaptor) FriendlyName() string { return "Raptor GLB File" }
func (formatGLBRaptor) Extensions() []string { return []string{"glb"} }
func (formatGLBRaptor) Games() []string      { return []string{"Raptor"} }

func (formatGLBRaptor) Match(s stream.ReadStream) (Certainty, error) {
	var sig [4]byte
	if err := stream.ReadFullAt(s, 0, sig[:]); err != nil {
		return DefinitelyNo, nil // too short
	}
	// The signature alone is strong enough; no need to validate the
	// offsets beyond it.
	if sig == [4]byte{0x64, 0x9B, 0xD1, 0x09} {
		return DefinitelyYes, nil
	}
	return DefinitelyNo, nil
}

func (f formatGLBRaptor) Create(content stream.Stream, supp SuppData) (Archive, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := content.Write(glbEmptyHeader); err != nil {
		return nil, err
	}
	return f.Open(content, supp)
}

func (formatGLBRaptor) Open(content stream.Stream, supp SuppData) (Archive, error) {
	a := &archiveGLBRaptor{}
	a.FATArchive = NewFATArchive(content, a, glbFirstFileOffset, Caps{
		MaxNameLen: glbMaxFilenameLen,
	})

	// Decipher just the header to learn the FAT size.
	c := a.Content()
	header := make([]byte, glbHeaderLen)
	if err := stream.ReadFullAt(c, 0, header); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidFormat)
	}
	plainHeader, _, err := transform.Bytes(filter.NewAddDecrypt(glbKey, glbBlockLen), header)
	if err != nil {
		return nil, err
	}
	numFiles := uint32(plainHeader[4]) | uint32(plainHeader[5])<<8 |
		uint32(plainHeader[6])<<16 | uint32(plainHeader[7])<<24
	if numFiles >= glbSafetyMaxFiles {
		return nil, fmt.Errorf("%w: too many files or corrupted archive", ErrInvalidFormat)
	}

	// Decipher the whole FAT into memory; edits run against the
	// plaintext copy until flush.
	raw := make([]byte, glbHeaderLen+int64(numFiles)*glbFATEntryLen)
	if err := stream.ReadFullAt(c, 0, raw); err != nil {
		return nil, fmt.Errorf("%w: truncated FAT", ErrInvalidFormat)
	}
	plain, _, err := transform.Bytes(filter.NewAddDecrypt(glbKey, glbBlockLen), raw)
	if err != nil {
		return nil, err
	}
	a.fat = stream.NewSeg(stream.NewMemory(plain))

	if _, err := a.fat.Seek(glbFATOffset, io.SeekStart); err != nil {
		return nil, err
	}
	for i := uint32(0); i < numFiles; i++ {
		flags, err := readU32LE(a.fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		offset, err := readU32LE(a.fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		size, err := readU32LE(a.fat)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}
		name, err := readNamePadded(a.fat, glbFilenameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated directory", ErrInvalidFormat)
		}

		e := &Entry{
			Name:       name,
			StoredSize: int64(size),
			RealSize:   int64(size),
			Offset:     int64(offset),
		}
		if flags == glbEncryptedFlag {
			e.Attr |= AttrEncrypted
			e.Filter = "glb-raptor"
		}
		a.AddParsedEntry(e)
	}
	return a, nil
}

func (formatGLBRaptor) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

type archiveGLBRaptor struct {
	*FATArchive
	fat *stream.Seg // deciphered directory copy
}

// Flush re-enciphers the in-memory FAT over the directory region of
// the backing stream, then commits everything in one pass.
func (a *archiveGLBRaptor) Flush() error {
	var result *multierror.Error

	lenFAT := glbHeaderLen + int64(len(a.Files()))*glbFATEntryLen
	plain := make([]byte, lenFAT)
	if _, err := a.fat.Seek(0, io.SeekStart); err != nil {
		result = multierror.Append(result, err)
	} else if _, err := io.ReadFull(a.fat, plain); err != nil {
		result = multierror.Append(result, err)
	} else {
		ciphered, _, err := transform.Bytes(filter.NewAddEncrypt(glbKey, glbBlockLen), plain)
		if err != nil {
			result = multierror.Append(result, err)
		} else if err := stream.WriteAllAt(a.Content(), 0, ciphered); err != nil {
			result = multierror.Append(result, err)
		}
	}

	result = multierror.Append(result, a.FATArchive.Flush())
	return result.ErrorOrNil()
}

func (a *archiveGLBRaptor) rewriteRow(e *Entry) error {
	if _, err := a.fat.Seek(glbFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	var flags uint32
	if e.Attr&AttrEncrypted != 0 {
		flags = glbEncryptedFlag
	}
	if err := writeU32LE(a.fat, flags); err != nil {
		return err
	}
	if err := writeU32LE(a.fat, uint32(e.Offset)); err != nil {
		return err
	}
	if err := writeU32LE(a.fat, uint32(e.StoredSize)); err != nil {
		return err
	}
	return writeNamePadded(a.fat, e.Name, glbFilenameFieldLen)
}

// RewriteEntry refreshes a whole FAT row; Move relies on it because
// the rows carry a flags field the narrower hooks never touch.
func (a *archiveGLBRaptor) RewriteEntry(e *Entry) error { return a.rewriteRow(e) }

func (a *archiveGLBRaptor) UpdateFileName(e *Entry, newName string) error {
	if _, err := a.fat.Seek(glbFATEntryOffset(e)+12, io.SeekStart); err != nil {
		return err
	}
	return writeNamePadded(a.fat, newName, glbFilenameFieldLen)
}

func (a *archiveGLBRaptor) UpdateFileOffset(e *Entry, delta int64) error {
	if _, err := a.fat.Seek(glbFATEntryOffset(e)+4, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(a.fat, uint32(e.Offset))
}

func (a *archiveGLBRaptor) UpdateFileSize(e *Entry, delta int64) error {
	if _, err := a.fat.Seek(glbFATEntryOffset(e)+8, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(a.fat, uint32(e.StoredSize))
}

func (a *archiveGLBRaptor) PreInsert(before, newEntry *Entry) error {
	newEntry.HeaderLen = 0
	// The new FAT row pushes every payload along.
	newEntry.Offset += glbFATEntryLen
	newEntry.Name = strings.ToUpper(newEntry.Name)
	if newEntry.Attr&AttrEncrypted != 0 {
		newEntry.Filter = "glb-raptor"
	}

	// Grow both copies of the directory: the plaintext FAT and the
	// enciphered region of the backing stream.
	if _, err := a.fat.Seek(glbFATEntryOffset(newEntry), io.SeekStart); err != nil {
		return err
	}
	a.fat.Insert(glbFATEntryLen)
	c := a.Content()
	if _, err := c.Seek(glbFATEntryOffset(newEntry), io.SeekStart); err != nil {
		return err
	}
	c.Insert(glbFATEntryLen)

	if err := a.rewriteRow(newEntry); err != nil {
		return err
	}

	return a.ShiftFiles(nil,
		glbFATOffset+int64(len(a.Files()))*glbFATEntryLen,
		glbFATEntryLen, 0)
}

func (a *archiveGLBRaptor) PostInsert(newEntry *Entry) error {
	return a.updateFileCount(uint32(len(a.Files())))
}

func (a *archiveGLBRaptor) PreRemove(e *Entry) error {
	if err := a.ShiftFiles(nil,
		glbFATOffset+int64(len(a.Files()))*glbFATEntryLen,
		-glbFATEntryLen, 0); err != nil {
		return err
	}
	if _, err := a.fat.Seek(glbFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	a.fat.Remove(glbFATEntryLen)
	c := a.Content()
	if _, err := c.Seek(glbFATEntryOffset(e), io.SeekStart); err != nil {
		return err
	}
	c.Remove(glbFATEntryLen)
	return nil
}

func (a *archiveGLBRaptor) PostRemove(e *Entry) error {
	return a.updateFileCount(uint32(len(a.Files())))
}

func (a *archiveGLBRaptor) updateFileCount(n uint32) error {
	if _, err := a.fat.Seek(glbFileCountOffset, io.SeekStart); err != nil {
		return err
	}
	return writeU32LE(a.fat, n)
}

var (
	_ Format     = formatGLBRaptor{}
	_ Archive    = (*archiveGLBRaptor)(nil)
	_ FATAdapter = (*archiveGLBRaptor)(nil)
)
