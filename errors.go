package gamearchive

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the library. Wrap sites add context with
// fmt.Errorf("...: %w", err); callers test with errors.Is.
var (
	// ErrNoMatch is returned by Identify when no registered format
	// recognises the stream.
	ErrNoMatch = errors.New("no formats matched")

	// ErrInvalidFormat reports a recognised header with inconsistent
	// data beyond it: truncated directory, offset past EOF, corrupt
	// codeword.
	ErrInvalidFormat = errors.New("invalid or corrupt archive")

	// ErrInvalidArgument reports a violated call contract: a name too
	// long for the format, an illegal character, a negative size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation reports an operation the format does not
	// support: insert on a fixed archive, rename on a nameless format.
	ErrInvalidOperation = errors.New("operation not supported by this format")

	// ErrUnsupported reports a recognised format whose writer is not
	// implemented.
	ErrUnsupported = errors.New("not implemented for this format")
)

func errNameless() error {
	return fmt.Errorf("%w: this archive format has no filenames", ErrInvalidOperation)
}
