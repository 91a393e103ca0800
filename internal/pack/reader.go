package pack

import (
	"bufio"
	"encoding/binary"
	"io"
	"io/fs"

	"github.com/meigma/seal/internal/ioutil"
	"github.com/meigma/seal/internal/sealtype"
)

// Reader decodes records from a body stream.
//
// Structural problems are reported as *sealtype.CorruptError with the offset
// of the offending record. Errors from the underlying stream that are not a
// premature end of input are returned unchanged.
type Reader struct {
	r      *ioutil.CountingReader
	size   uint64
	remain uint64
	last   string
	leaves map[string]struct{}
	count  int
	hdr    [fixedSize]byte
	err    error
}

// NewReader returns a Reader for a body declared to be size bytes long.
func NewReader(r io.Reader, size uint64) *Reader {
	return &Reader{
		r:    &ioutil.CountingReader{R: bufio.NewReaderSize(r, ioutil.DefaultBufferSize)},
		size: size,
	}
}

// Offset returns the number of body bytes consumed so far.
func (r *Reader) Offset() uint64 {
	return r.r.N
}

// Count returns the number of records decoded so far.
func (r *Reader) Count() int {
	return r.count
}

// Next advances to the next record, skipping any unread content of the
// current one. It returns io.EOF after a well-formed end marker.
func (r *Reader) Next() (*Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
		return nil, err
	}
	return rec, nil
}

func (r *Reader) next() (*Record, error) {
	if r.remain > 0 {
		if _, err := io.CopyN(io.Discard, r.r, int64(r.remain)); err != nil { //nolint:gosec // remain bounded by a validated int64-sized record
			return nil, r.mapErr(err)
		}
		r.remain = 0
	}

	off := r.r.N
	if r.size-off < 4 {
		return nil, sealtype.Corruptf(off, "body ends without an end marker")
	}
	var lenBuf [4]byte
	if err := r.readFull(lenBuf[:]); err != nil {
		return nil, err
	}
	pathLen := binary.LittleEndian.Uint32(lenBuf[:])
	if pathLen == 0 {
		return nil, r.end(off)
	}
	if pathLen > MaxPathLen {
		return nil, sealtype.Corruptf(off, "path length %d exceeds %d", pathLen, MaxPathLen)
	}
	if r.size-r.r.N < uint64(pathLen)+fixedSize {
		return nil, sealtype.Corruptf(off, "record header extends past the end of the body")
	}

	pathBuf := make([]byte, pathLen)
	if err := r.readFull(pathBuf); err != nil {
		return nil, err
	}
	if err := r.readFull(r.hdr[:]); err != nil {
		return nil, err
	}
	path := string(pathBuf)
	kind := sealtype.Kind(r.hdr[0])
	mode := binary.LittleEndian.Uint32(r.hdr[1:5])
	size := binary.LittleEndian.Uint64(r.hdr[5:])

	if !ValidPath(path) {
		return nil, sealtype.Corruptf(off, "invalid path %q", path)
	}
	if r.count > 0 && path <= r.last {
		return nil, sealtype.Corruptf(off, "path %q does not sort after %q", path, r.last)
	}
	if parent, ok := r.leafAncestor(path); ok {
		return nil, sealtype.Corruptf(off, "%s: parent %q is not a directory", path, parent)
	}
	if !kind.Valid() || kind == sealtype.KindEnd {
		return nil, sealtype.Corruptf(off, "%s: invalid kind %d", path, byte(kind))
	}
	if mode&^uint32(fs.ModePerm) != 0 {
		return nil, sealtype.Corruptf(off, "%s: invalid permission bits %#o", path, mode)
	}
	if size > r.size-r.r.N {
		return nil, sealtype.Corruptf(off, "%s: content length %d extends past the end of the body", path, size)
	}

	rec := &Record{Path: path, Kind: kind, Mode: fs.FileMode(mode), Size: size, Offset: off}
	switch kind {
	case sealtype.KindDir:
		if size != 0 {
			return nil, sealtype.Corruptf(off, "%s: directory with content length %d", path, size)
		}
	case sealtype.KindSymlink:
		if size == 0 || size > MaxPathLen {
			return nil, sealtype.Corruptf(off, "%s: symlink target length %d", path, size)
		}
		target := make([]byte, size)
		if err := r.readFull(target); err != nil {
			return nil, err
		}
		rec.Target = string(target)
	case sealtype.KindFile:
		r.remain = size
	}

	if kind != sealtype.KindDir {
		if r.leaves == nil {
			r.leaves = make(map[string]struct{})
		}
		r.leaves[path] = struct{}{}
	}
	r.last = path
	r.count++
	return rec, nil
}

// leafAncestor returns the first ancestor of path that an earlier record
// declared as a file or symlink. Restoring below such an entry would
// follow the symlink or fail on the file.
func (r *Reader) leafAncestor(path string) (string, bool) {
	if len(r.leaves) == 0 {
		return "", false
	}
	for i := range len(path) {
		if path[i] != '/' {
			continue
		}
		if _, ok := r.leaves[path[:i]]; ok {
			return path[:i], true
		}
	}
	return "", false
}

// end validates the end marker and that nothing follows it.
func (r *Reader) end(off uint64) error {
	if r.size-r.r.N < fixedSize {
		return sealtype.Corruptf(off, "truncated end marker")
	}
	if err := r.readFull(r.hdr[:]); err != nil {
		return err
	}
	kind := sealtype.Kind(r.hdr[0])
	mode := binary.LittleEndian.Uint32(r.hdr[1:5])
	size := binary.LittleEndian.Uint64(r.hdr[5:])
	if kind != sealtype.KindEnd || mode != 0 || size != 0 {
		return sealtype.Corruptf(off, "record with empty path is not an end marker")
	}
	if r.r.N != r.size {
		return sealtype.Corruptf(r.r.N, "%d bytes follow the end marker", r.size-r.r.N)
	}
	var probe [1]byte
	n, err := io.ReadFull(r.r, probe[:])
	if n > 0 {
		return sealtype.Corruptf(r.size, "data beyond the declared body length")
	}
	if err != nil && err != io.EOF {
		return err
	}
	return io.EOF
}

// Read reads content of the current file record.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.remain == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > r.remain {
		p = p[:r.remain]
	}
	n, err := r.r.Read(p)
	r.remain -= uint64(n) //nolint:gosec // n is non-negative
	switch {
	case err == io.EOF && r.remain > 0:
		r.err = r.mapErr(io.ErrUnexpectedEOF)
		return n, r.err
	case err == io.EOF:
		return n, nil
	case err != nil:
		r.err = err
		return n, err
	}
	return n, nil
}

func (r *Reader) readFull(p []byte) error {
	if _, err := io.ReadFull(r.r, p); err != nil {
		return r.mapErr(err)
	}
	return nil
}

// mapErr reports a premature end of input as corruption.
func (r *Reader) mapErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &sealtype.CorruptError{
			Offset: r.r.N,
			Reason: "body ends before its declared length",
			Err:    io.ErrUnexpectedEOF,
		}
	}
	return err
}
