package gamearchive

import (
	"fmt"
	"strings"

	"github.com/retrodos/gamearchive/stream"
)

// FixedFile declares one pre-carved slot of a fixed archive: assets
// embedded at known offsets in a game executable.
type FixedFile struct {
	Offset int64
	Size   int64
	Name   string
	Filter string

	// Resize is consulted when the slot's contents change size. With
	// both sizes negative it is a query for the slot's current
	// decoded size; otherwise it records the new sizes (for example
	// updating a decompressed-length prefix) and returns the decoded
	// size now in effect. Slots without a callback cannot change
	// size.
	Resize func(content stream.Stream, e *Entry, newStored, newReal int64) (int64, error)
}

// FixedArchive is the read-mostly engine for archives whose entries
// are pre-declared. Bytes inside existing slots can be edited (and
// slots with a resize callback re-sized), but entries cannot be
// inserted, removed, renamed or reordered.
type FixedArchive struct {
	content stream.Stream
	files   []FixedFile
	entries []*Entry
}

// NewFixedArchive builds an archive over the declared slots.
func NewFixedArchive(content stream.Stream, files []FixedFile) (*FixedArchive, error) {
	a := &FixedArchive{content: content, files: files}
	for i := range files {
		f := &files[i]
		e := &Entry{
			Name:       f.Name,
			StoredSize: f.Size,
			RealSize:   f.Size,
			Offset:     f.Offset,
			Filter:     f.Filter,
			Valid:      true,
			Index:      i,
		}
		if f.Filter != "" {
			e.Attr |= AttrCompressed
		}
		if f.Resize != nil {
			real, err := f.Resize(content, e, -1, -1)
			if err != nil {
				return nil, err
			}
			e.RealSize = real
		}
		a.entries = append(a.entries, e)
	}
	return a, nil
}

func (a *FixedArchive) Files() []*Entry { return a.entries }

func (a *FixedArchive) Find(name string) *Entry {
	for _, e := range a.entries {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

func (a *FixedArchive) IsValid(e *Entry) bool {
	return e != nil && e.Index < len(a.entries) && a.entries[e.Index] == e
}

func (a *FixedArchive) Open(e *Entry, applyFilter bool) (stream.Stream, error) {
	if !a.IsValid(e) {
		return nil, fmt.Errorf("%w: handle is not a member of this archive", ErrInvalidArgument)
	}
	sub := stream.NewSub(a.content, e.Offset, e.StoredSize)
	if applyFilter && e.Filter != "" {
		return applyFilterCode(e.Filter, sub, func(realSize, storedSize int64) error {
			return a.Resize(e, storedSize, realSize)
		})
	}
	return sub, nil
}

func (a *FixedArchive) OpenFolder(e *Entry) (Archive, error) {
	return nil, fmt.Errorf("%w: fixed archives have no folders", ErrInvalidOperation)
}

func (a *FixedArchive) Insert(before *Entry, name string, storedSize int64, typ string, attr Attr) (*Entry, error) {
	return nil, fmt.Errorf("%w: files cannot be inserted into a fixed archive", ErrInvalidOperation)
}

func (a *FixedArchive) Remove(e *Entry) error {
	return fmt.Errorf("%w: files cannot be removed from a fixed archive", ErrInvalidOperation)
}

func (a *FixedArchive) Rename(e *Entry, newName string) error {
	return fmt.Errorf("%w: files cannot be renamed in a fixed archive", ErrInvalidOperation)
}

func (a *FixedArchive) Move(before, e *Entry) error {
	return fmt.Errorf("%w: files cannot be moved in a fixed archive", ErrInvalidOperation)
}

// Resize changes sizes only on slots declared with a resize callback
// (a slot without one accepts only its current stored size), and
// never moves other entries; the slot itself is a fixed region.
func (a *FixedArchive) Resize(e *Entry, newStored, newReal int64) error {
	if !a.IsValid(e) {
		return fmt.Errorf("%w: handle is not a member of this archive", ErrInvalidArgument)
	}
	f := &a.files[e.Index]
	if f.Resize == nil {
		if newStored == e.StoredSize {
			return nil
		}
		return fmt.Errorf("%w: slot is fixed at %d bytes (tried %d)",
			ErrInvalidOperation, e.StoredSize, newStored)
	}
	real, err := f.Resize(a.content, e, newStored, newReal)
	if err != nil {
		return err
	}
	e.RealSize = real
	return nil
}

func (a *FixedArchive) Flush() error { return a.content.Flush() }

func (a *FixedArchive) Attributes() []Attribute { return nil }

func (a *FixedArchive) SetAttribute(index int, value any) error {
	return fmt.Errorf("%w: format declares no attributes", ErrInvalidOperation)
}

var _ Archive = (*FixedArchive)(nil)
