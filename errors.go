package zipstream

import "errors"

// Error taxonomy. A source stream error is deliberately not modeled as a
// distinct type: an entry's stream error is propagated as-is (wrapped with
// %w) so callers can still errors.Is/errors.As through to the original
// cause instead of unwrapping a private wrapper type.
var (
	// ErrDuplicateName is returned by Writer.Add when the entry's name was
	// already accepted earlier in this archive.
	ErrDuplicateName = errors.New("zipstream: duplicate entry name")

	// ErrBadFormat is returned by Reader construction or iteration when the
	// blob is not a well-formed ZIP archive: too small, no EOCD signature
	// found, or a central directory record extends past the blob.
	ErrBadFormat = errors.New("zipstream: not a valid zip archive")

	// ErrUnsupportedMethod is returned by File.Open/Bytes/WriteTo when the
	// entry's compression method is neither STORE (0) nor DEFLATE (8).
	ErrUnsupportedMethod = errors.New("zipstream: unsupported compression method")

	// ErrTypeError is returned when a caller assigns a wrong-typed value to
	// a settable property on a read-side File (SetName, SetLastModified).
	ErrTypeError = errors.New("zipstream: invalid value type")
)
