// Package gamearchive reads, modifies and writes the archive files
// used by DOS-era video games. Each supported title packs its assets
// into a container with a bespoke directory layout, often with a
// bespoke compression or encryption transform on individual entries;
// this package exposes one archive abstraction across all of them so
// tools can treat every format identically.
package gamearchive

import (
	"github.com/retrodos/gamearchive/stream"
)

// Attr is the per-entry attribute bitset.
type Attr uint8

const (
	// AttrCompressed marks an entry stored through a compression
	// filter.
	AttrCompressed Attr = 1 << iota

	// AttrEncrypted marks an entry stored through a cipher filter.
	AttrEncrypted

	// AttrFolder marks an entry whose payload is itself an archive;
	// open it with OpenFolder.
	AttrFolder

	// AttrHidden marks an entry games skip over.
	AttrHidden
)

// TypeGeneric is the entry type tag for plain data.
const TypeGeneric = ""

// Entry is one member of an archive. Entries are handed out as
// handles: the pointer stays stable for the life of the archive, and
// Valid turns false once the entry has been removed.
type Entry struct {
	// Name is the entry's filename; empty for nameless formats.
	// Comparisons are case-insensitive unless the format says
	// otherwise.
	Name string

	// Type is an opaque tag ("" = generic); some formats use it to
	// drive filter selection or directory fields.
	Type string

	// StoredSize is the bytes the entry occupies in the backing
	// stream, after any filter.
	StoredSize int64

	// RealSize is the bytes after decoding the filter; equal to
	// StoredSize for unfiltered entries.
	RealSize int64

	// Offset is the byte position of the entry's first byte (header
	// included) in the backing stream.
	Offset int64

	// HeaderLen is the bytes reserved ahead of the payload that belong
	// to the directory, not the payload.
	HeaderLen int64

	// Attr is the entry's attribute bitset.
	Attr Attr

	// Filter names the codec pair to apply on open; empty for none.
	Filter string

	// Valid is true while the entry is a member of its archive.
	Valid bool

	// Index is the entry's position in stored order. Maintained by
	// the engine; adapters use it to address directory rows.
	Index int

	// Extra carries per-format data the engine does not interpret.
	Extra any
}

// Archive is the uniform view over one container. Operations a
// format cannot express fail with ErrInvalidOperation. Inserts and
// removes are held back until Flush materialises them into the
// backing stream; writes over bytes that already exist there can
// reach it straight away.
type Archive interface {
	// Files returns the current entries in stored order. The slice is
	// a live view; do not modify it.
	Files() []*Entry

	// Find returns the entry with the given name, or nil. Matching is
	// case-insensitive unless the format declares otherwise.
	Find(name string) *Entry

	// IsValid reports whether the handle is still a member of this
	// archive.
	IsValid(e *Entry) bool

	// Open returns a stream bounded to the entry's payload. With
	// applyFilter set and a filter code on the entry, the stream
	// decodes on read and encodes on flush, updating the entry's real
	// size. The stream stays pinned to its entry while other entries
	// are inserted, removed or resized.
	Open(e *Entry, applyFilter bool) (stream.Stream, error)

	// OpenFolder opens an entry carrying AttrFolder as an archive in
	// its own right.
	OpenFolder(e *Entry) (Archive, error)

	// Insert creates a new entry before the given one (at the end if
	// before is nil) with storedSize bytes of reserved space. Write
	// the payload through Open.
	Insert(before *Entry, name string, storedSize int64, typ string, attr Attr) (*Entry, error)

	// Remove deletes the entry and reclaims its space. Open streams on
	// the entry become invalid.
	Remove(e *Entry) error

	// Rename changes the entry's name, subject to the format's length
	// and character rules.
	Rename(e *Entry, newName string) error

	// Move reorders the entry to sit before the given one without
	// changing any entry's payload bytes as seen through Open.
	Move(before, e *Entry) error

	// Resize grows or shrinks the entry's slot to newStored bytes and
	// records newReal as its decoded size; subsequent entries shift.
	Resize(e *Entry, newStored, newReal int64) error

	// Flush materialises all pending changes to the backing stream.
	Flush() error

	// Attributes returns the format's declared attributes with their
	// current values.
	Attributes() []Attribute

	// SetAttribute updates one attribute by position in Attributes.
	SetAttribute(index int, value any) error
}

// Caps declares what a format can express. The engine refuses
// operations outside these with ErrInvalidOperation.
type Caps struct {
	// MaxNameLen is the longest filename the directory can hold; zero
	// means the format has no filenames.
	MaxNameLen int

	// CaseSensitive makes Find match names exactly.
	CaseSensitive bool

	// Folders is set when entries can carry AttrFolder.
	Folders bool

	// FixedCount is set when the directory has a fixed number of
	// slots and entries cannot be inserted or removed.
	FixedCount bool
}
