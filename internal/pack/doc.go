// Package pack serializes a walked tree into the archive body and restores
// a body onto the filesystem.
//
// The body is a sequence of records followed by an end marker. Each record
// is encoded as (little-endian):
//
//	[4] path length in bytes (1..65535)
//	[n] path, UTF-8, slash-separated, relative
//	[1] kind: 1 file, 2 directory, 3 symlink
//	[4] permission bits
//	[8] content length
//	[m] content: file bytes, or the symlink target; empty for directories
//
// The end marker is a record header with path length 0, kind 0xFF, zero
// permission bits and zero content length. Paths appear in strictly
// increasing byte order, which is the order the walker produces.
package pack
