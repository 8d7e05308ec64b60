package gamearchive

import (
	"fmt"

	"github.com/retrodos/gamearchive/stream"
)

// Dark Ages level sets. Each episode file is exactly ten levels of
// 1152 bytes back to back, with nothing to identify the format
// beyond that length.
const (
	daLevelLen   = 1152
	daLevelCount = 10
)

type formatDALevels struct{}

func init() { RegisterFormat(formatDALevels{}) }

func (formatDALevels) Code() string         { return "da-levels" }
func (formatDALevels) FriendlyName() string { return "Dark Ages levels" }
func (formatDALevels) Extensions() []string { return []string{"da1", "da2", "da3"} }
func (formatDALevels) Games() []string      { return []string{"Dark Ages"} }

func (formatDALevels) Match(s stream.ReadStream) (Certainty, error) {
	if s.Size() == daLevelLen*daLevelCount {
		return PossiblyYes, nil
	}
	return DefinitelyNo, nil
}

func (formatDALevels) Create(content stream.Stream, supp SuppData) (Archive, error) {
	// Not a true archive, so new ones cannot be created.
	return nil, fmt.Errorf("%w: cannot create archives in this format", ErrInvalidOperation)
}

func (formatDALevels) Open(content stream.Stream, supp SuppData) (Archive, error) {
	files := make([]FixedFile, daLevelCount)
	for i := range files {
		files[i] = FixedFile{
			Offset: int64(i) * daLevelLen,
			Size:   daLevelLen,
			Name:   fmt.Sprintf("l%02d.dal", i+1),
		}
	}
	return NewFixedArchive(content, files)
}

func (formatDALevels) RequiredSupps(stream.ReadStream, string) SuppFilenames { return nil }

var _ Format = formatDALevels{}
