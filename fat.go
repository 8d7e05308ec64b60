package gamearchive

import (
	"fmt"
	"io"
	"strings"

	"github.com/retrodos/gamearchive/stream"
)

// FATAdapter is the contract between the generic FAT engine and a
// format adapter. The engine moves payload bytes and keeps entry
// offsets consistent; the adapter owns the on-disk directory layout
// and is called back whenever a directory field must change.
//
// Hooks write through the same segmented stream the engine uses, so
// directory edits and payload edits are serialised by one Flush.
type FATAdapter interface {
	// PreInsert runs after the engine computed the new entry's slot
	// but before any payload bytes are inserted. The adapter reserves
	// directory space (shifting entries with ShiftFiles as needed),
	// sets the entry's HeaderLen, and adjusts the entry's Offset if
	// reserving directory space moved the payload region.
	PreInsert(before, newEntry *Entry) error

	// PostInsert runs once the entry is in place; header bytes and
	// counters can be written now.
	PostInsert(newEntry *Entry) error

	// PreRemove runs before the entry's bytes are removed; the
	// adapter drops its directory row here.
	PreRemove(e *Entry) error

	// PostRemove runs after removal, for header counters.
	PostRemove(e *Entry) error

	// UpdateFileName writes the entry's new name into the directory.
	UpdateFileName(e *Entry, newName string) error

	// UpdateFileOffset writes the entry's (already updated) offset
	// into the directory.
	UpdateFileOffset(e *Entry, delta int64) error

	// UpdateFileSize writes the entry's (already updated) size into
	// the directory.
	UpdateFileSize(e *Entry, delta int64) error
}

// entryRewriter is implemented by adapters whose directory rows hold
// more than name/offset/size; Move uses it to rewrite whole rows when
// entries change position.
type entryRewriter interface {
	RewriteEntry(e *Entry) error
}

// openSub pairs a handed-out sub-stream with its entry so edits can
// relocate or invalidate it.
type openSub struct {
	e   *Entry
	sub *stream.Sub
}

// FATArchive is the generic mutable archive engine for formats with
// a file allocation table. Format adapters embed it and implement
// FATAdapter; the engine translates the Archive operations into byte
// moves on a segmented stream and hook calls on the adapter.
type FATArchive struct {
	content *stream.Seg
	raw     stream.Stream
	adapter FATAdapter

	firstFileOffset int64
	caps            Caps

	entries  []*Entry
	openSubs []*openSub

	broken error
}

// NewFATArchive layers the engine over the backing stream.
// firstFileOffset is the lowest offset payloads may occupy (the
// format header plus, for in-band directories, the FAT region).
func NewFATArchive(content stream.Stream, adapter FATAdapter, firstFileOffset int64, caps Caps) *FATArchive {
	return &FATArchive{
		content:         stream.NewSeg(content),
		raw:             content,
		adapter:         adapter,
		firstFileOffset: firstFileOffset,
		caps:            caps,
	}
}

// Content is the segmented stream all edits go through. Adapters use
// it to read and write directory bytes.
func (a *FATArchive) Content() *stream.Seg { return a.content }

// Caps returns the format capabilities the engine enforces.
func (a *FATArchive) Caps() Caps { return a.caps }

// FirstFileOffset returns the lowest payload offset for this format.
func (a *FATArchive) FirstFileOffset() int64 { return a.firstFileOffset }

// AddParsedEntry appends an entry during directory parsing. Entries
// must be added in stored order.
func (a *FATArchive) AddParsedEntry(e *Entry) {
	e.Valid = true
	e.Index = len(a.entries)
	a.entries = append(a.entries, e)
}

func (a *FATArchive) ok() error {
	if a.broken != nil {
		return fmt.Errorf("archive poisoned by earlier flush failure: %w", a.broken)
	}
	return nil
}

func (a *FATArchive) checkHandle(e *Entry) error {
	if e == nil || !e.Valid || e.Index >= len(a.entries) || a.entries[e.Index] != e {
		return fmt.Errorf("%w: handle is not a member of this archive", ErrInvalidArgument)
	}
	return nil
}

func (a *FATArchive) Files() []*Entry { return a.entries }

func (a *FATArchive) Find(name string) *Entry {
	for _, e := range a.entries {
		if a.caps.CaseSensitive {
			if e.Name == name {
				return e
			}
		} else if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

func (a *FATArchive) IsValid(e *Entry) bool {
	return e != nil && e.Valid && a.checkHandle(e) == nil
}

// Open returns a sub-stream bounded to the entry's payload,
// registered with the engine so later edits keep it aligned. With
// applyFilter set and a filter code present, the sub-stream is
// wrapped in the codec pair; the encoder's flush reports the true
// sizes back, which resizes the entry to fit.
func (a *FATArchive) Open(e *Entry, applyFilter bool) (stream.Stream, error) {
	if err := a.ok(); err != nil {
		return nil, err
	}
	if err := a.checkHandle(e); err != nil {
		return nil, err
	}
	sub := stream.NewSub(a.content, e.Offset+e.HeaderLen, e.StoredSize)
	a.openSubs = append(a.openSubs, &openSub{e: e, sub: sub})
	if applyFilter && e.Filter != "" {
		return applyFilterCode(e.Filter, sub, func(realSize, storedSize int64) error {
			return a.Resize(e, storedSize, realSize)
		})
	}
	return sub, nil
}

// OpenFolder fails unless the format adapter overrides it.
func (a *FATArchive) OpenFolder(e *Entry) (Archive, error) {
	return nil, fmt.Errorf("%w: format has no folders", ErrInvalidOperation)
}

// Attributes returns no attributes unless the adapter overrides it.
func (a *FATArchive) Attributes() []Attribute { return nil }

// SetAttribute fails unless the format adapter overrides it.
func (a *FATArchive) SetAttribute(index int, value any) error {
	return fmt.Errorf("%w: format declares no attributes", ErrInvalidOperation)
}

// ShiftFiles adds deltaOffset to the offset (and deltaIndex to the
// index) of every entry in range of the edit that starts at offStart,
// and relocates their open streams. An entry is in range when its
// offset is beyond offStart, or exactly at offStart when it sorts
// after skip in stored order (skip nil shifts everything at the
// boundary; index order disambiguates stacks of zero-length entries).
//
// Adapters call this when they grow or shrink the directory region.
func (a *FATArchive) ShiftFiles(skip *Entry, offStart, deltaOffset int64, deltaIndex int) error {
	for _, e := range a.entries {
		if e == skip || !a.entryInRange(e, offStart, skip) {
			continue
		}
		e.Offset += deltaOffset
		e.Index += deltaIndex
		if err := a.adapter.UpdateFileOffset(e, deltaOffset); err != nil {
			return err
		}
		a.relocateSubs(e, deltaOffset)
	}
	return nil
}

func (a *FATArchive) entryInRange(e *Entry, offStart int64, skip *Entry) bool {
	if e.Offset > offStart {
		return true
	}
	if e.Offset == offStart {
		if skip == nil {
			return true
		}
		return e.Index > skip.Index
	}
	return false
}

func (a *FATArchive) relocateSubs(e *Entry, delta int64) {
	for _, os := range a.openSubs {
		if os.e == e && os.sub.Valid() {
			os.sub.Relocate(delta)
		}
	}
}

func (a *FATArchive) resizeSubs(e *Entry, newLen int64) {
	for _, os := range a.openSubs {
		if os.e == e && os.sub.Valid() {
			os.sub.Resize(newLen)
		}
	}
}

func (a *FATArchive) invalidateSubs(e *Entry) {
	for _, os := range a.openSubs {
		if os.e == e {
			os.sub.Invalidate()
		}
	}
}

// shiftFrom shifts every entry at vector position idx or later by
// delta bytes, updating directory offsets and open streams. Working
// by position rather than offset keeps stacks of zero-length entries
// correct: the ones that sort before the edit keep their offset.
func (a *FATArchive) shiftFrom(idx int, delta int64) error {
	for _, e := range a.entries[idx:] {
		e.Offset += delta
		if err := a.adapter.UpdateFileOffset(e, delta); err != nil {
			return err
		}
		a.relocateSubs(e, delta)
	}
	return nil
}

func (a *FATArchive) renumber() {
	for i, e := range a.entries {
		e.Index = i
	}
}

// Insert creates a new entry before the given one (at the end when
// before is nil), reserving storedSize bytes of payload space.
func (a *FATArchive) Insert(before *Entry, name string, storedSize int64, typ string, attr Attr) (*Entry, error) {
	if err := a.ok(); err != nil {
		return nil, err
	}
	if before != nil {
		if err := a.checkHandle(before); err != nil {
			return nil, err
		}
	}
	if storedSize < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidArgument)
	}
	if a.caps.FixedCount {
		return nil, fmt.Errorf("%w: fixed-slot archive", ErrInvalidOperation)
	}
	if a.caps.MaxNameLen > 0 && len(name) > a.caps.MaxNameLen {
		return nil, fmt.Errorf("%w: filename %q longer than %d", ErrInvalidArgument, name, a.caps.MaxNameLen)
	}
	if a.caps.MaxNameLen == 0 && name != "" {
		return nil, fmt.Errorf("%w: format has no filenames", ErrInvalidOperation)
	}

	var offset int64
	var idx int
	if before == nil {
		idx = len(a.entries)
		offset = a.firstFileOffset
		if n := len(a.entries); n > 0 {
			last := a.entries[n-1]
			offset = last.Offset + last.HeaderLen + last.StoredSize
		}
	} else {
		idx = before.Index
		offset = before.Offset
	}

	e := &Entry{
		Name:       name,
		Type:       typ,
		StoredSize: storedSize,
		RealSize:   storedSize,
		Offset:     offset,
		Attr:       attr,
		Valid:      true,
		Index:      idx,
	}

	if err := a.adapter.PreInsert(before, e); err != nil {
		return nil, err
	}

	total := e.HeaderLen + e.StoredSize
	if _, err := a.content.Seek(e.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	a.content.Insert(total)

	// Splice and renumber before shifting, so the adapter's directory
	// writes land in the rows' new positions.
	a.entries = append(a.entries, nil)
	copy(a.entries[idx+1:], a.entries[idx:])
	a.entries[idx] = e
	a.renumber()

	if err := a.shiftFrom(idx+1, total); err != nil {
		return nil, err
	}

	if err := a.adapter.PostInsert(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Remove deletes the entry, reclaims its bytes and invalidates any
// open streams on it.
func (a *FATArchive) Remove(e *Entry) error {
	if err := a.ok(); err != nil {
		return err
	}
	if err := a.checkHandle(e); err != nil {
		return err
	}
	if a.caps.FixedCount {
		return fmt.Errorf("%w: fixed-slot archive", ErrInvalidOperation)
	}

	if err := a.adapter.PreRemove(e); err != nil {
		return err
	}

	total := e.HeaderLen + e.StoredSize
	if _, err := a.content.Seek(e.Offset, io.SeekStart); err != nil {
		return err
	}
	a.content.Remove(total)

	idx := e.Index
	a.entries = append(a.entries[:idx], a.entries[idx+1:]...)
	a.renumber()
	if err := a.shiftFrom(idx, -total); err != nil {
		return err
	}

	e.Valid = false
	a.invalidateSubs(e)

	return a.adapter.PostRemove(e)
}

// Rename changes the entry's name, enforcing the format's limits.
func (a *FATArchive) Rename(e *Entry, newName string) error {
	if err := a.ok(); err != nil {
		return err
	}
	if err := a.checkHandle(e); err != nil {
		return err
	}
	if a.caps.MaxNameLen == 0 {
		return fmt.Errorf("%w: format has no filenames", ErrInvalidOperation)
	}
	if len(newName) > a.caps.MaxNameLen {
		return fmt.Errorf("%w: filename %q longer than %d", ErrInvalidArgument, newName, a.caps.MaxNameLen)
	}
	if err := a.adapter.UpdateFileName(e, newName); err != nil {
		return err
	}
	e.Name = newName
	return nil
}

// Resize changes the entry's stored size to newStored (shifting
// everything after it) and records newReal as its decoded size.
func (a *FATArchive) Resize(e *Entry, newStored, newReal int64) error {
	if err := a.ok(); err != nil {
		return err
	}
	if err := a.checkHandle(e); err != nil {
		return err
	}
	if newStored < 0 || newReal < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidArgument)
	}

	delta := newStored - e.StoredSize
	if delta != 0 {
		// Grow at the end of the current payload; shrink from the end
		// of the would-be payload.
		point := e.Offset + e.HeaderLen + min(e.StoredSize, newStored)
		if _, err := a.content.Seek(point, io.SeekStart); err != nil {
			return err
		}
		if delta > 0 {
			a.content.Insert(delta)
		} else {
			a.content.Remove(-delta)
		}
	}

	e.StoredSize = newStored
	e.RealSize = newReal
	if err := a.adapter.UpdateFileSize(e, delta); err != nil {
		return err
	}
	if delta != 0 {
		if err := a.shiftFrom(e.Index+1, delta); err != nil {
			return err
		}
		a.resizeSubs(e, newStored)
	}
	return nil
}

// Move reorders the entry to sit before the given one. Payload bytes
// move inside the backing stream, but every handle's payload is
// unchanged as seen through its own streams.
func (a *FATArchive) Move(before, e *Entry) error {
	if err := a.ok(); err != nil {
		return err
	}
	if err := a.checkHandle(e); err != nil {
		return err
	}
	if before != nil {
		if err := a.checkHandle(before); err != nil {
			return err
		}
	}

	srcIdx := e.Index
	dstIdx := len(a.entries)
	if before != nil {
		dstIdx = before.Index
	}
	if dstIdx == srcIdx || dstIdx == srcIdx+1 {
		return nil
	}

	oldOffsets := make(map[*Entry]int64, len(a.entries))
	for _, x := range a.entries {
		oldOffsets[x] = x.Offset
	}

	total := e.HeaderLen + e.StoredSize
	buf := make([]byte, total)
	if _, err := a.content.Seek(e.Offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(a.content, buf); err != nil {
		return err
	}

	var dstOff int64
	if before == nil {
		last := a.entries[len(a.entries)-1]
		dstOff = last.Offset + last.HeaderLen + last.StoredSize
	} else {
		dstOff = before.Offset
	}

	// Make room at the destination.
	if _, err := a.content.Seek(dstOff, io.SeekStart); err != nil {
		return err
	}
	a.content.Insert(total)
	for _, x := range a.entries {
		if x != e && x.Index >= dstIdx {
			x.Offset += total
		}
	}
	if e.Offset >= dstOff {
		e.Offset += total
	}

	// Copy the entry in, then close the hole it came from.
	if _, err := a.content.Seek(dstOff, io.SeekStart); err != nil {
		return err
	}
	if _, err := a.content.Write(buf); err != nil {
		return err
	}
	oldOff := e.Offset
	if _, err := a.content.Seek(oldOff, io.SeekStart); err != nil {
		return err
	}
	a.content.Remove(total)
	for _, x := range a.entries {
		if x != e && x.Offset > oldOff {
			x.Offset -= total
		}
	}
	if dstOff > oldOff {
		e.Offset = dstOff - total
	} else {
		e.Offset = dstOff
	}

	// Reorder the vector and renumber.
	a.entries = append(a.entries[:srcIdx], a.entries[srcIdx+1:]...)
	insertAt := dstIdx
	if dstIdx > srcIdx {
		insertAt--
	}
	a.entries = append(a.entries, nil)
	copy(a.entries[insertAt+1:], a.entries[insertAt:])
	a.entries[insertAt] = e
	a.renumber()

	// Rewrite the directory rows across the affected range and keep
	// open streams pointing at their entries' bytes.
	lo, hi := insertAt, srcIdx
	if lo > hi {
		lo, hi = srcIdx, insertAt
	}
	rewriter, hasRewriter := a.adapter.(entryRewriter)
	for _, x := range a.entries[lo:min(hi+1, len(a.entries))] {
		if hasRewriter {
			if err := rewriter.RewriteEntry(x); err != nil {
				return err
			}
			continue
		}
		if a.caps.MaxNameLen > 0 {
			if err := a.adapter.UpdateFileName(x, x.Name); err != nil {
				return err
			}
		}
		if err := a.adapter.UpdateFileSize(x, 0); err != nil {
			return err
		}
		if err := a.adapter.UpdateFileOffset(x, 0); err != nil {
			return err
		}
	}
	for _, os := range a.openSubs {
		if !os.sub.Valid() {
			continue
		}
		if d := os.e.Offset - oldOffsets[os.e]; d != 0 {
			os.sub.Relocate(d)
		}
	}
	return nil
}

// Flush materialises every pending edit into the backing stream. A
// failure leaves the backing stream possibly half-updated and
// poisons the handle; every later operation reports the same error.
func (a *FATArchive) Flush() error {
	if err := a.ok(); err != nil {
		return err
	}
	if err := a.content.Commit(a.raw.Truncate); err != nil {
		a.broken = err
		return err
	}
	return nil
}
