package seal

import (
	"github.com/meigma/seal/internal/cipher"
	"github.com/meigma/seal/internal/digest"
	"github.com/meigma/seal/internal/manifest"
	"github.com/meigma/seal/internal/pack"
	"github.com/meigma/seal/internal/sealtype"
)

// --- Re-exports from internal packages ---

// Manifest is the fixed-size archive header.
type Manifest = manifest.Manifest

// Digest is a SHA-256 content digest.
type Digest = digest.Digest

// Compression identifies the body compression algorithm.
type Compression = sealtype.Compression

// Cipher identifies the body encryption algorithm.
type Cipher = sealtype.Cipher

// Warning records a best-effort restore step that failed without aborting
// the restore.
type Warning = sealtype.Warning

// Compression constants.
const (
	CompressionNone    = sealtype.CompressionNone
	CompressionDeflate = sealtype.CompressionDeflate
	CompressionZstd    = sealtype.CompressionZstd
	CompressionLZ4     = sealtype.CompressionLZ4
)

// Cipher constants.
const (
	CipherNone             = sealtype.CipherNone
	CipherAES256GCM        = sealtype.CipherAES256GCM
	CipherChaCha20Poly1305 = sealtype.CipherChaCha20Poly1305
)

const (
	// ManifestSize is the encoded manifest length in bytes.
	ManifestSize = manifest.Size

	// FormatVersion is the archive format version written by this package.
	FormatVersion = manifest.Version

	// KeySize is the required key length in bytes.
	KeySize = cipher.KeySize
)

// Summary describes a packed or verified archive.
type Summary struct {
	// Manifest is the archive header.
	Manifest Manifest

	// Files, Dirs and Symlinks count the entries by kind.
	Files    int
	Dirs     int
	Symlinks int

	// ContentBytes is the total size of all file contents.
	ContentBytes uint64
}

// Entries returns the total number of entries.
func (s *Summary) Entries() int {
	return s.Files + s.Dirs + s.Symlinks
}

// ArchiveSize returns the total archive length in bytes.
func (s *Summary) ArchiveSize() uint64 {
	return ManifestSize + s.Manifest.BodySize
}

func newSummary(m *Manifest, stats *pack.Stats) *Summary {
	return &Summary{
		Manifest:     *m,
		Files:        stats.Files,
		Dirs:         stats.Dirs,
		Symlinks:     stats.Symlinks,
		ContentBytes: stats.ContentBytes,
	}
}

// UnpackResult describes a completed restore.
type UnpackResult struct {
	Summary

	// Warnings lists permission and symlink steps that could not be applied.
	Warnings []Warning
}
