package gamearchive

import (
	"io"

	"github.com/retrodos/gamearchive/stream"
)

// Certainty grades how sure a format is that a stream is one of its
// archives.
type Certainty int

const (
	// DefinitelyNo: the stream cannot be this format.
	DefinitelyNo Certainty = iota

	// Unsure: the format has no identifying information to check.
	Unsure

	// PossiblyYes: nothing contradicts the format, but nothing
	// confirms it either.
	PossiblyYes

	// DefinitelyYes: signature or structure confirmed.
	DefinitelyYes
)

func (c Certainty) String() string {
	switch c {
	case DefinitelyNo:
		return "no"
	case Unsure:
		return "unsure"
	case PossiblyYes:
		return "possibly"
	case DefinitelyYes:
		return "yes"
	}
	return "unknown"
}

// SuppItem identifies a supplementary stream a format needs besides
// the archive itself.
type SuppItem int

const (
	// SuppFAT is a directory stored outside the archive file (a
	// sibling data file or a game executable).
	SuppFAT SuppItem = iota
)

// SuppData maps required supplementary items to open streams.
type SuppData map[SuppItem]stream.Stream

// SuppFilenames maps required supplementary items to the filenames
// the caller should open, relative to the archive.
type SuppFilenames map[SuppItem]string

// Format describes one archive format and constructs archives in it.
type Format interface {
	// Code is the format's unique short string, e.g. "glb-raptor".
	Code() string

	// FriendlyName is the format's human-readable name.
	FriendlyName() string

	// Extensions lists conventional file extensions, without dots.
	Extensions() []string

	// Games lists the titles known to use this format.
	Games() []string

	// Match probes whether the stream is an archive in this format.
	// It reads only what it needs and may seek freely; the caller's
	// position is not preserved.
	Match(s stream.ReadStream) (Certainty, error)

	// Open parses an existing archive from the backing stream.
	Open(content stream.Stream, supp SuppData) (Archive, error)

	// Create initialises an empty archive in the backing stream.
	Create(content stream.Stream, supp SuppData) (Archive, error)

	// RequiredSupps names the supplementary streams this format needs
	// for the given archive filename, e.g. a FAT inside "doofus.exe".
	RequiredSupps(content stream.ReadStream, archiveName string) SuppFilenames
}

// Filter describes one codec pair and applies it to entry streams.
type Filter interface {
	// Code is the filter's unique short string, e.g. "lzw-bash".
	Code() string

	// FriendlyName is the filter's human-readable name.
	FriendlyName() string

	// Games lists the titles known to use this filter.
	Games() []string

	// Apply wraps target so reads decode and flush re-encodes. The
	// resize callback receives the true pre-filtered size and the
	// stored size when the stream flushes; the archive engine uses it
	// to fix up the directory. Filters with no encoder still open,
	// but flushing written data fails with stream.ErrUnsupportedWrite.
	Apply(target stream.Stream, resize stream.NotifyPrefiltered) (stream.Stream, error)

	// ApplyRead wraps target with just the decoder, streaming.
	ApplyRead(target stream.ReadStream) (io.Reader, error)
}
