package sealtype

import "io/fs"

// Kind identifies the type of filesystem object a Record describes.
type Kind uint8

// Kind tags as written to the archive body.
const (
	KindFile    Kind = 1
	KindDir     Kind = 2
	KindSymlink Kind = 3

	// KindEnd tags the sentinel record that terminates the body.
	KindEnd Kind = 0xFF
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Valid reports whether k may appear as a regular (non-sentinel) record.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindDir || k == KindSymlink
}

// Record describes one filesystem object in the archive.
type Record struct {
	// Path is the slash-separated path relative to the archive root (e.g., "src/main.go").
	Path string

	// Kind is the type of object.
	Kind Kind

	// Size is the content length: file bytes for files, target length for
	// symlinks, zero for directories.
	Size uint64

	// Mode holds the permission bits.
	Mode fs.FileMode

	// Target is the symlink target. Empty for other kinds.
	Target string

	// Offset is the position of the record header within the uncompressed body.
	// It is set by the packager and reader.
	Offset uint64
}
