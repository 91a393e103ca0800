// Package compress wraps the archive body in a streaming, lossless
// compression transform selected by the algorithm id recorded in the
// manifest.
package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/seal/internal/ioutil"
	"github.com/meigma/seal/internal/sealtype"
)

// Algorithm is an alias for sealtype.Compression.
type Algorithm = sealtype.Compression

// Re-export algorithm ids.
const (
	None    = sealtype.CompressionNone
	Deflate = sealtype.CompressionDeflate
	Zstd    = sealtype.CompressionZstd
	LZ4     = sealtype.CompressionLZ4
)

// DefaultLevel selects each algorithm's default compression level.
const DefaultLevel = 0

// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// NewWriter returns a compressing writer for alg that writes to w.
// The caller must Close the writer to flush the final block; Close does not
// close w.
//
// Level is algorithm specific: 1-9 for deflate and lz4, 1-22 for zstd.
// DefaultLevel picks the algorithm default.
func NewWriter(w io.Writer, alg Algorithm, level int) (io.WriteCloser, error) {
	switch alg {
	case None:
		return nopWriteCloser{w}, nil
	case Deflate:
		if level == DefaultLevel {
			level = flate.DefaultCompression
		}
		fw, err := flate.NewWriter(w, level)
		if err != nil {
			return nil, fmt.Errorf("create deflate writer: %w", err)
		}
		return fw, nil
	case Zstd:
		opts := []zstd.EOption{zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true)}
		if level != DefaultLevel {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		enc, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return enc, nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if level != DefaultLevel {
			if level < 1 || level > 9 {
				return nil, fmt.Errorf("invalid lz4 level %d", level)
			}
			if err := zw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(1 << (8 + level)))); err != nil {
				return nil, fmt.Errorf("configure lz4 writer: %w", err)
			}
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm: %d", alg)
	}
}

type readerConfig struct {
	maxDecoderMemory uint64
}

// ReaderOption configures a decompressing reader.
type ReaderOption func(*readerConfig)

// WithMaxDecoderMemory caps zstd decoder memory.
// Set to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) ReaderOption {
	return func(c *readerConfig) {
		c.maxDecoderMemory = limit
	}
}

// NewReader returns a decompressing reader for alg that reads from r.
//
// Malformed or truncated input is reported as sealtype.ErrDecompression.
// Errors returned by r itself are passed through unchanged, so failures of
// an upstream stage (such as decryption) keep their identity.
func NewReader(r io.Reader, alg Algorithm, opts ...ReaderOption) (io.ReadCloser, error) {
	cfg := readerConfig{maxDecoderMemory: DefaultMaxDecoderMemory}
	for _, opt := range opts {
		opt(&cfg)
	}

	src := &ioutil.ErrReader{R: r}
	switch alg {
	case None:
		return io.NopCloser(r), nil
	case Deflate:
		fr := flate.NewReader(src)
		return &reader{src: src, dec: fr, close: fr.Close}, nil
	case Zstd:
		dopts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
		if cfg.maxDecoderMemory != 0 {
			dopts = append(dopts, zstd.WithDecoderMaxMemory(cfg.maxDecoderMemory))
		}
		dec, err := zstd.NewReader(src, dopts...)
		if err != nil {
			if src.Err != nil {
				return nil, src.Err
			}
			return nil, fmt.Errorf("%w: %v", sealtype.ErrDecompression, err)
		}
		return &reader{src: src, dec: dec, close: func() error {
			dec.Close()
			return nil
		}}, nil
	case LZ4:
		return &reader{src: src, dec: lz4.NewReader(src), close: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm: %d", alg)
	}
}

// reader maps decoder failures onto ErrDecompression.
type reader struct {
	src   *ioutil.ErrReader
	dec   io.Reader
	close func() error
	err   error
}

// Read implements io.Reader.
func (r *reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.dec.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	if r.src.Err != nil {
		r.err = r.src.Err
	} else {
		r.err = fmt.Errorf("%w: %v", sealtype.ErrDecompression, err)
	}
	return n, r.err
}

// Close releases decoder resources. It does not close the source.
func (r *reader) Close() error {
	return r.close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
