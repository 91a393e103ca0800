package pack

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/seal/internal/ioutil"
	"github.com/meigma/seal/internal/sealtype"
	"github.com/meigma/seal/internal/sizing"
)

// Writer encodes records onto a stream.
type Writer struct {
	w      *ioutil.CountingWriter
	hdr    []byte
	buf    []byte
	last   string
	count  int
	closed bool
}

// NewWriter returns a Writer that encodes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   &ioutil.CountingWriter{W: w},
		hdr: make([]byte, 0, 64),
		buf: make([]byte, ioutil.DefaultBufferSize),
	}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() uint64 {
	return w.w.N
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// WriteRecord encodes rec and, for files, exactly rec.Size bytes read from
// content. rec.Offset is set to the record's position in the body.
//
// A file whose content is shorter or longer than rec.Size is reported as a
// *sealtype.WalkError: the source changed after it was walked.
func (w *Writer) WriteRecord(ctx context.Context, rec *Record, content io.Reader) error {
	if w.closed {
		return errors.New("pack: write after close")
	}
	if !ValidPath(rec.Path) {
		return fmt.Errorf("pack: invalid path %q", rec.Path)
	}
	if w.count > 0 && rec.Path <= w.last {
		return fmt.Errorf("pack: path %q does not sort after %q", rec.Path, w.last)
	}

	var size uint64
	switch rec.Kind {
	case sealtype.KindFile:
		if content == nil {
			return fmt.Errorf("pack: %s: missing content", rec.Path)
		}
		size = rec.Size
	case sealtype.KindDir:
	case sealtype.KindSymlink:
		if len(rec.Target) > MaxPathLen {
			return fmt.Errorf("pack: %s: symlink target too long", rec.Path)
		}
		size = uint64(len(rec.Target))
	default:
		return fmt.Errorf("pack: %s: invalid kind %s", rec.Path, rec.Kind)
	}

	rec.Offset = w.w.N
	w.hdr = appendHeader(w.hdr[:0], rec.Path, rec.Kind, rec.Mode, size)
	if _, err := w.w.Write(w.hdr); err != nil {
		return err
	}

	switch rec.Kind {
	case sealtype.KindSymlink:
		if _, err := io.WriteString(w.w, rec.Target); err != nil {
			return err
		}
	case sealtype.KindFile:
		if err := w.copyContent(ctx, rec, content); err != nil {
			return err
		}
	}

	w.last = rec.Path
	w.count++
	return nil
}

func (w *Writer) copyContent(ctx context.Context, rec *Record, content io.Reader) error {
	limit, err := sizing.ToInt64(rec.Size, sealtype.ErrSizeOverflow)
	if err != nil {
		return &sealtype.WalkError{Path: rec.Path, Err: err}
	}
	src := &ioutil.ErrReader{R: content}
	n, err := ioutil.CopyWithContext(ctx, w.w, io.LimitReader(src, limit), w.buf)
	if err != nil {
		if src.Err != nil {
			return &sealtype.WalkError{Path: rec.Path, Err: src.Err}
		}
		return err
	}
	if n != rec.Size {
		return &sealtype.WalkError{
			Path: rec.Path,
			Err:  fmt.Errorf("file shrank during packing: read %d of %d bytes", n, rec.Size),
		}
	}
	var probe [1]byte
	if k, _ := io.ReadFull(content, probe[:]); k > 0 { //nolint:errcheck // only the byte count matters
		return &sealtype.WalkError{Path: rec.Path, Err: fmt.Errorf("file grew during packing beyond %d bytes", rec.Size)}
	}
	return nil
}

// Close writes the end marker. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.hdr = appendHeader(w.hdr[:0], "", sealtype.KindEnd, 0, 0)
	_, err := w.w.Write(w.hdr)
	return err
}
