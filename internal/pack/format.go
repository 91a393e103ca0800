package pack

import (
	"encoding/binary"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/meigma/seal/internal/sealtype"
)

// Record is an alias for sealtype.Record.
type Record = sealtype.Record

// Kind is an alias for sealtype.Kind.
type Kind = sealtype.Kind

const (
	// MaxPathLen is the longest path a record can carry.
	MaxPathLen = 65535

	// fixedSize is the header length following the path.
	fixedSize = 1 + 4 + 8

	// EndMarkerSize is the encoded length of the end marker.
	EndMarkerSize = 4 + fixedSize
)

// ValidPath reports whether p may appear in a record: non-empty, UTF-8,
// relative, slash-separated, without "." or ".." elements.
func ValidPath(p string) bool {
	if p == "" || p == "." || len(p) > MaxPathLen {
		return false
	}
	if !utf8.ValidString(p) || strings.ContainsRune(p, 0) {
		return false
	}
	return fs.ValidPath(p)
}

// HeaderSize returns the encoded header length for a record with the given path.
func HeaderSize(path string) uint64 {
	return 4 + uint64(len(path)) + fixedSize
}

// EncodedSize returns the body length the records serialize to, including
// the end marker.
func EncodedSize(records []Record) uint64 {
	total := uint64(EndMarkerSize)
	for i := range records {
		rec := &records[i]
		total += HeaderSize(rec.Path)
		switch rec.Kind {
		case sealtype.KindFile:
			total += rec.Size
		case sealtype.KindSymlink:
			total += uint64(len(rec.Target))
		}
	}
	return total
}

func appendHeader(buf []byte, path string, kind Kind, mode fs.FileMode, size uint64) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(path))) //nolint:gosec // length validated by caller
	buf = append(buf, path...)
	buf = append(buf, byte(kind))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(mode.Perm()))
	buf = binary.LittleEndian.AppendUint64(buf, size)
	return buf
}

// Stats summarizes the records written or read.
type Stats struct {
	Files        int
	Dirs         int
	Symlinks     int
	ContentBytes uint64
	BodySize     uint64
}

// Entries returns the total number of records.
func (s *Stats) Entries() int {
	return s.Files + s.Dirs + s.Symlinks
}

// Add counts rec.
func (s *Stats) Add(rec *Record) {
	switch rec.Kind {
	case sealtype.KindFile:
		s.Files++
		s.ContentBytes += rec.Size
	case sealtype.KindDir:
		s.Dirs++
	case sealtype.KindSymlink:
		s.Symlinks++
	}
}
