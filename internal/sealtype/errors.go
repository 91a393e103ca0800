package sealtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for seal operations.
var (
	// ErrWalk is returned when the source tree cannot be traversed.
	ErrWalk = errors.New("seal: walk failed")

	// ErrCorruptArchive is returned when the archive framing cannot be parsed.
	ErrCorruptArchive = errors.New("seal: corrupt archive")

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = errors.New("seal: decompression failed")

	// ErrDecryption is returned when the body fails authentication, either
	// because the key is wrong or because the ciphertext was modified.
	ErrDecryption = errors.New("seal: decryption failed")

	// ErrIntegrity is returned when the body digest does not match the manifest.
	ErrIntegrity = errors.New("seal: integrity check failed")

	// ErrRestore is returned when files cannot be written to the destination.
	ErrRestore = errors.New("seal: restore failed")

	// ErrInvalidKey is returned when a key has the wrong length.
	ErrInvalidKey = errors.New("seal: invalid key")

	// ErrKeyRequired is returned when an encrypted archive is opened without a key.
	ErrKeyRequired = errors.New("seal: archive is encrypted and no key was supplied")

	// ErrUnsupportedVersion is returned for archives written by a newer format.
	ErrUnsupportedVersion = errors.New("seal: unsupported format version")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("seal: size overflow")

	// ErrTooManyFiles is returned when the source tree exceeds the file limit.
	ErrTooManyFiles = errors.New("seal: too many files")
)

// ErrAuthentication is an alias for ErrDecryption.
var ErrAuthentication = ErrDecryption

// WalkError reports a traversal failure on a specific path.
type WalkError struct {
	Path string
	Err  error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walk %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrWalk and the underlying cause.
func (e *WalkError) Unwrap() []error {
	return []error{ErrWalk, e.Err}
}

// CorruptError reports a structural parse failure at a byte offset.
// Offset is relative to the start of the section being parsed (the manifest
// or the uncompressed body).
type CorruptError struct {
	Offset uint64
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt archive at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt archive at offset %d: %s", e.Offset, e.Reason)
}

// Unwrap returns ErrCorruptArchive and the underlying cause, if any.
func (e *CorruptError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptArchive}
	}
	return []error{ErrCorruptArchive, e.Err}
}

// Corruptf builds a CorruptError with a formatted reason.
func Corruptf(offset uint64, format string, args ...any) *CorruptError {
	return &CorruptError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a digest mismatch, or a body that could not be
// decoded far enough to compute one.
type IntegrityError struct {
	Expected string
	Actual   string
	Err      error
}

func (e *IntegrityError) Error() string {
	switch {
	case e.Err != nil && e.Actual == "":
		return fmt.Sprintf("integrity check failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("integrity check failed: digest %s, expected %s: %v", e.Actual, e.Expected, e.Err)
	default:
		return fmt.Sprintf("integrity check failed: digest %s, expected %s", e.Actual, e.Expected)
	}
}

// Unwrap returns ErrIntegrity and the underlying cause, if any.
func (e *IntegrityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIntegrity}
	}
	return []error{ErrIntegrity, e.Err}
}

// RestoreError reports a failure materializing an entry.
// Index is the position of the failed record; LastPath is the last record
// that was fully restored, or empty if none was.
type RestoreError struct {
	Path     string
	Index    int
	LastPath string
	Err      error
}

func (e *RestoreError) Error() string {
	if e.LastPath == "" {
		return fmt.Sprintf("restore %s (entry %d, nothing restored): %v", e.Path, e.Index, e.Err)
	}
	return fmt.Sprintf("restore %s (entry %d, last restored %s): %v", e.Path, e.Index, e.LastPath, e.Err)
}

// Unwrap returns ErrRestore and the underlying cause.
func (e *RestoreError) Unwrap() []error {
	return []error{ErrRestore, e.Err}
}

// Warning records a best-effort operation that failed without aborting
// the restore, such as applying permissions or creating a symlink.
type Warning struct {
	Path string
	Op   string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %v", w.Op, w.Path, w.Err)
}
