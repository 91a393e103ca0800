package seal

import (
	"errors"
	"io/fs"

	"github.com/meigma/seal/internal/sealtype"
)

// Sentinel errors re-exported from internal/sealtype.
var (
	// ErrWalk is returned when the source tree cannot be traversed.
	ErrWalk = sealtype.ErrWalk

	// ErrCorruptArchive is returned when the archive framing cannot be parsed.
	ErrCorruptArchive = sealtype.ErrCorruptArchive

	// ErrDecompression is returned when the body fails to decompress.
	ErrDecompression = sealtype.ErrDecompression

	// ErrDecryption is returned when the body fails authentication.
	ErrDecryption = sealtype.ErrDecryption

	// ErrAuthentication is an alias for ErrDecryption.
	ErrAuthentication = sealtype.ErrAuthentication

	// ErrIntegrity is returned when the body digest does not match the manifest.
	ErrIntegrity = sealtype.ErrIntegrity

	// ErrRestore is returned when entries cannot be written to the destination.
	ErrRestore = sealtype.ErrRestore

	// ErrInvalidKey is returned when a key has the wrong length.
	ErrInvalidKey = sealtype.ErrInvalidKey

	// ErrKeyRequired is returned when an encrypted archive is opened without a key.
	ErrKeyRequired = sealtype.ErrKeyRequired

	// ErrUnsupportedVersion is returned for archives written by a newer format.
	ErrUnsupportedVersion = sealtype.ErrUnsupportedVersion

	// ErrSizeOverflow is returned when a size exceeds supported limits.
	ErrSizeOverflow = sealtype.ErrSizeOverflow

	// ErrTooManyFiles is returned when the source tree exceeds the file limit.
	ErrTooManyFiles = sealtype.ErrTooManyFiles
)

// Typed errors re-exported from internal/sealtype.
type (
	// WalkError reports a traversal failure on a source path.
	WalkError = sealtype.WalkError

	// CorruptError reports a structural parse failure at a byte offset.
	CorruptError = sealtype.CorruptError

	// IntegrityError reports a digest mismatch.
	IntegrityError = sealtype.IntegrityError

	// RestoreError reports a failure materializing an entry.
	RestoreError = sealtype.RestoreError
)

// ErrorKind groups errors by what an operator should do about them.
type ErrorKind uint8

// Error kinds returned by Classify.
const (
	ErrorKindNone ErrorKind = iota
	ErrorKindOther
	ErrorKindIO
	ErrorKindCorrupt
	ErrorKindIntegrity
	ErrorKindCrypto
)

// String returns the human-readable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindIO:
		return "io"
	case ErrorKindCorrupt:
		return "corrupt"
	case ErrorKindIntegrity:
		return "integrity"
	case ErrorKindCrypto:
		return "crypto"
	default:
		return "other"
	}
}

// Classify maps an error returned by this package to its kind.
//
// Cryptographic failures (wrong key, tampered ciphertext, bad or missing
// key) take precedence, then integrity failures, then structural corruption,
// then filesystem I/O.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrDecryption), errors.Is(err, ErrInvalidKey), errors.Is(err, ErrKeyRequired):
		return ErrorKindCrypto
	case errors.Is(err, ErrIntegrity):
		return ErrorKindIntegrity
	case errors.Is(err, ErrCorruptArchive), errors.Is(err, ErrDecompression):
		return ErrorKindCorrupt
	case errors.Is(err, ErrWalk), errors.Is(err, ErrRestore):
		return ErrorKindIO
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrorKindIO
	}
	return ErrorKindOther
}
