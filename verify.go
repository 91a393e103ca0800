package seal

import (
	"bytes"
	"context"
	"io"

	"github.com/meigma/seal/internal/manifest"
)

// Verify checks archive completely without writing anything: the manifest,
// authentication of every cipher chunk, decompression, the body digest and
// the record framing. It returns the archive summary on success.
func Verify(ctx context.Context, archive []byte, opts ...UnpackOption) (*Summary, error) {
	cfg := newUnpackConfig(opts)
	return verify(ctx, bytes.NewReader(archive), int64(len(archive)), &cfg)
}

// VerifyFile checks the archive at path. See Verify.
func VerifyFile(ctx context.Context, path string, opts ...UnpackOption) (*Summary, error) {
	cfg := newUnpackConfig(opts)
	f, size, err := openArchiveFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return verify(ctx, f, size, &cfg)
}

func verify(ctx context.Context, r io.ReaderAt, size int64, cfg *unpackConfig) (*Summary, error) {
	a, err := openArchive(r, size, cfg)
	if err != nil {
		return nil, err
	}
	stats, err := a.verify(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newSummary(a.m, stats), nil
}

// ReadManifest reads and validates only the manifest at the start of r.
// It does not need a key and does not check the body.
func ReadManifest(r io.Reader) (*Manifest, error) {
	return manifest.Read(r)
}
