package seal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/seal/internal/cipher"
	"github.com/meigma/seal/internal/compress"
	"github.com/meigma/seal/internal/digest"
	"github.com/meigma/seal/internal/manifest"
	"github.com/meigma/seal/internal/pack"
	"github.com/meigma/seal/internal/sealtype"
)

// Unpack verifies archive and restores its tree under dest.
//
// The whole body is authenticated, decompressed, hashed and parsed before
// dest is touched; any failure in that pass leaves dest unchanged (it is
// not even created). Entries are then restored in archive order. Existing
// regular files at an entry's path are replaced; an existing entry of a
// different kind fails the restore with a *RestoreError.
func Unpack(ctx context.Context, archive []byte, dest string, opts ...UnpackOption) (*UnpackResult, error) {
	cfg := newUnpackConfig(opts)
	return unpack(ctx, bytes.NewReader(archive), int64(len(archive)), dest, &cfg)
}

// UnpackFile verifies the archive at path and restores its tree under dest.
// See Unpack.
func UnpackFile(ctx context.Context, path, dest string, opts ...UnpackOption) (*UnpackResult, error) {
	cfg := newUnpackConfig(opts)
	f, size, err := openArchiveFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return unpack(ctx, f, size, dest, &cfg)
}

func unpack(ctx context.Context, r io.ReaderAt, size int64, dest string, cfg *unpackConfig) (*UnpackResult, error) {
	a, err := openArchive(r, size, cfg)
	if err != nil {
		return nil, err
	}
	stats, err := a.verify(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a.materialize(ctx, dest, cfg, stats)
}

func openArchiveFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// archive is a parsed manifest plus random access to the body.
type archive struct {
	m *Manifest
	r io.ReaderAt
}

// openArchive reads the manifest and checks the body length against the
// bytes actually present.
func openArchive(r io.ReaderAt, size int64, cfg *unpackConfig) (*archive, error) {
	m, err := manifest.Read(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, err
	}
	available := uint64(size) - ManifestSize //nolint:gosec // size >= ManifestSize once the manifest was read
	switch {
	case m.BodySize > available:
		return nil, sealtype.Corruptf(uint64(size), //nolint:gosec // size is non-negative
			"body truncated: manifest declares %d bytes, %d present", m.BodySize, available)
	case m.BodySize < available:
		return nil, sealtype.Corruptf(ManifestSize+m.BodySize,
			"%d bytes of trailing data after the body", available-m.BodySize)
	}
	if limit := cfg.maxBodySize; limit > 0 && (m.BodySize > limit || m.UncompressedSize > limit) {
		return nil, fmt.Errorf("%w: body of %d bytes (%d uncompressed) exceeds limit of %d",
			ErrSizeOverflow, m.BodySize, m.UncompressedSize, limit)
	}
	if m.Encrypted() {
		if cfg.key == nil {
			return nil, ErrKeyRequired
		}
		if err := cipher.ValidateKey(m.Cipher, cfg.key); err != nil {
			return nil, err
		}
	} else if cfg.key != nil {
		cfg.log().Debug("archive is not encrypted; ignoring key")
	}
	return &archive{m: m, r: r}, nil
}

// stream holds the read side of one pass over the body.
type stream struct {
	dec io.Reader     // decrypted body
	zr  io.ReadCloser // decompressed body
	dg  *digest.Digester
	rd  *pack.Reader
}

// open starts a pass: decrypt, then decompress, then hash and parse.
func (a *archive) open(cfg *unpackConfig) (*stream, error) {
	body := io.NewSectionReader(a.r, ManifestSize, int64(a.m.BodySize)) //nolint:gosec // BodySize <= archive size
	dec, err := cipher.NewReader(body, a.m.Cipher, cfg.key, a.m.IV, a.m.AAD(), a.m.BodySize)
	if err != nil {
		return nil, err
	}
	zr, err := compress.NewReader(dec, a.m.Compression, compress.WithMaxDecoderMemory(cfg.maxDecoderMemory))
	if err != nil {
		if errors.Is(err, ErrDecompression) {
			return nil, a.integrityError(digest.Digest{}, err)
		}
		return nil, err
	}
	dg := digest.New()
	return &stream{
		dec: dec,
		zr:  zr,
		dg:  dg,
		rd:  pack.NewReader(io.TeeReader(zr, dg), a.m.UncompressedSize),
	}, nil
}

func (a *archive) integrityError(actual digest.Digest, err error) *IntegrityError {
	ie := &IntegrityError{Expected: a.m.Digest.String(), Err: err}
	if !actual.IsZero() {
		ie.Actual = actual.String()
	}
	return ie
}

// verify runs the verification pass: every record is parsed and every byte
// authenticated, decompressed and hashed, without touching the filesystem.
func (a *archive) verify(ctx context.Context, cfg *unpackConfig) (*pack.Stats, error) {
	s, err := a.open(cfg)
	if err != nil {
		return nil, err
	}
	defer s.zr.Close()

	var stats pack.Stats
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, a.parseFailure(s, err)
		}
		stats.Add(rec)
		emit(cfg.progress, ProgressEvent{
			Stage:       StageVerifying,
			Path:        rec.Path,
			BytesDone:   s.rd.Offset(),
			BytesTotal:  a.m.UncompressedSize,
			EntriesDone: stats.Entries(),
		})
	}

	// Anything the decompressor left unread must still be authenticated,
	// and must not exist at all.
	n, err := io.Copy(io.Discard, s.dec)
	if err != nil {
		return nil, a.streamFailure(err)
	}
	if n > 0 {
		return nil, a.integrityError(digest.Digest{}, fmt.Errorf("%d bytes of data after the end of the compressed body", n))
	}

	if got := s.dg.Sum(); got != a.m.Digest {
		return nil, a.integrityError(got, nil)
	}
	stats.BodySize = a.m.UncompressedSize
	cfg.log().Debug("verified archive",
		"entries", stats.Entries(),
		"digest", a.m.Digest.String(),
		"compression", a.m.Compression.String(),
		"cipher", a.m.Cipher.String())
	return &stats, nil
}

// streamFailure classifies an error raised below the record parser.
func (a *archive) streamFailure(err error) error {
	if errors.Is(err, ErrDecompression) {
		return a.integrityError(digest.Digest{}, err)
	}
	return err
}

// parseFailure classifies a verification-pass error. Cipher and I/O errors
// are returned as they are. A structural error is reported as an integrity
// failure when the body no longer matches its digest, and as corruption
// only when the digest matches (the archive was written malformed).
func (a *archive) parseFailure(s *stream, err error) error {
	if !errors.Is(err, ErrCorruptArchive) || errors.Is(err, ErrDecryption) {
		return a.streamFailure(err)
	}
	// Hash the rest of the decompressed output. Reading more than the
	// declared length already guarantees a mismatch.
	if _, drainErr := io.Copy(s.dg, io.LimitReader(s.zr, int64(min(a.m.UncompressedSize, 1<<62))+1)); drainErr != nil { //nolint:gosec // clamped
		if errors.Is(drainErr, ErrDecryption) {
			return drainErr
		}
		return a.integrityError(digest.Digest{}, errors.Join(err, drainErr))
	}
	if got := s.dg.Sum(); got != a.m.Digest {
		return a.integrityError(got, err)
	}
	return err
}

// materialize runs the restore pass. The digest is recomputed so that an
// archive modified between the two passes is still detected.
func (a *archive) materialize(ctx context.Context, dest string, cfg *unpackConfig, verified *pack.Stats) (*UnpackResult, error) {
	log := cfg.log()
	mat, err := pack.NewMaterializer(dest,
		pack.WithStrictPermissions(cfg.strictPermissions),
		pack.WithRestoreLogger(log),
	)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	s, err := a.open(cfg)
	if err != nil {
		return nil, err
	}
	defer s.zr.Close()

	var stats pack.Stats
	for {
		rec, err := s.rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, a.changedDuringUnpack(err)
		}
		if err := mat.Restore(ctx, rec, s.rd); err != nil {
			if errors.Is(err, ErrRestore) {
				return nil, err
			}
			return nil, a.changedDuringUnpack(err)
		}
		stats.Add(rec)
		emit(cfg.progress, ProgressEvent{
			Stage:        StageMaterializing,
			Path:         rec.Path,
			BytesDone:    stats.ContentBytes,
			BytesTotal:   verified.ContentBytes,
			EntriesDone:  stats.Entries(),
			EntriesTotal: verified.Entries(),
		})
	}
	if got := s.dg.Sum(); got != a.m.Digest {
		return nil, a.integrityError(got, errors.New("archive changed between verification and restore"))
	}
	if err := mat.Finish(ctx); err != nil {
		return nil, err
	}

	res := &UnpackResult{Summary: *newSummary(a.m, &stats), Warnings: mat.Warnings()}
	log.Debug("restored archive", "dest", dest, "entries", stats.Entries(), "warnings", len(res.Warnings))
	return res, nil
}

// changedDuringUnpack reports a failure in the restore pass of a body that
// passed verification.
func (a *archive) changedDuringUnpack(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrDecryption) {
		return err
	}
	if errors.Is(err, ErrCorruptArchive) || errors.Is(err, ErrDecompression) {
		return a.integrityError(digest.Digest{}, fmt.Errorf("archive changed between verification and restore: %w", err))
	}
	return err
}
