package seal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meigma/seal/internal/cipher"
	"github.com/meigma/seal/internal/compress"
	"github.com/meigma/seal/internal/digest"
	"github.com/meigma/seal/internal/ioutil"
	"github.com/meigma/seal/internal/manifest"
	"github.com/meigma/seal/internal/pack"
	"github.com/meigma/seal/internal/sealtype"
	"github.com/meigma/seal/internal/walk"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = walk.DefaultMaxFiles

// Pack walks dir and returns the complete archive.
//
// The archive is assembled in memory; use PackFile or PackTo for trees
// whose archive should not be held in memory.
func Pack(ctx context.Context, dir string, opts ...PackOption) ([]byte, error) {
	cfg := newPackConfig(opts)

	var buf bytes.Buffer
	buf.Write(make([]byte, ManifestSize))
	sum, err := build(ctx, dir, &buf, &cfg)
	if err != nil {
		return nil, err
	}
	out := buf.Bytes()
	copy(out, sum.Manifest.Encode())
	emit(cfg.progress, ProgressEvent{
		Stage:      StageEmitting,
		BytesDone:  uint64(len(out)),
		BytesTotal: uint64(len(out)),
	})
	return out, nil
}

// PackTo walks dir and writes the complete archive to w.
//
// The manifest precedes the body but depends on it, so the body is spooled
// to a temporary file before anything is written to w.
func PackTo(ctx context.Context, dir string, w io.Writer, opts ...PackOption) (*Summary, error) {
	cfg := newPackConfig(opts)

	spool, err := os.CreateTemp("", "seal-body-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()           //nolint:errcheck // best-effort cleanup
		_ = os.Remove(spool.Name()) //nolint:errcheck // best-effort cleanup
	}()

	sum, err := build(ctx, dir, spool, &cfg)
	if err != nil {
		return nil, err
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spool file: %w", err)
	}

	if _, err := sum.Manifest.WriteTo(w); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if _, err := ioutil.CopyWithContext(ctx, w, spool, nil); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	emit(cfg.progress, ProgressEvent{
		Stage:      StageEmitting,
		BytesDone:  sum.ArchiveSize(),
		BytesTotal: sum.ArchiveSize(),
	})
	return sum, nil
}

// PackFile walks dir and writes the archive to the file dest.
//
// The archive is written to a temporary file in the same directory and
// renamed to dest once complete, so dest never holds a partial archive.
// The file is created with mode 0600.
func PackFile(ctx context.Context, dir, dest string, opts ...PackOption) (*Summary, error) {
	cfg := newPackConfig(opts)

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".seal-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (*Summary, error) {
		_ = tmp.Close()        //nolint:errcheck // best-effort cleanup
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	if _, err := tmp.Write(make([]byte, ManifestSize)); err != nil {
		return fail(fmt.Errorf("reserve manifest: %w", err))
	}
	sum, err := build(ctx, dir, tmp, &cfg)
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.WriteAt(sum.Manifest.Encode(), 0); err != nil {
		return fail(fmt.Errorf("write manifest: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync archive: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("rename archive into place: %w", err)
	}

	emit(cfg.progress, ProgressEvent{
		Stage:      StageEmitting,
		Path:       dest,
		BytesDone:  sum.ArchiveSize(),
		BytesTotal: sum.ArchiveSize(),
	})
	cfg.log().Debug("wrote archive", "path", dest, "bytes", sum.ArchiveSize())
	return sum, nil
}

// build walks dir and writes the transformed body to body. It returns the
// completed manifest; the caller places it in front of the body.
func build(ctx context.Context, dir string, body io.Writer, cfg *packConfig) (*Summary, error) {
	log := cfg.log()
	alg := cfg.resolvedCipher()
	if !cfg.compression.Valid() {
		return nil, fmt.Errorf("seal: unknown compression algorithm %d", cfg.compression)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("seal: unknown cipher %d", alg)
	}
	if alg != CipherNone {
		if cfg.key == nil {
			return nil, ErrKeyRequired
		}
		if err := cipher.ValidateKey(alg, cfg.key); err != nil {
			return nil, err
		}
	}

	tree, err := walk.Walk(ctx, dir, walk.WithMaxFiles(cfg.maxFiles), walk.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	records := tree.Records()
	var contentTotal uint64
	for i := range records {
		if records[i].Kind == sealtype.KindFile {
			contentTotal += records[i].Size
		}
	}
	emit(cfg.progress, ProgressEvent{
		Stage:        StageWalking,
		BytesTotal:   contentTotal,
		EntriesTotal: len(records),
	})

	m := &Manifest{Version: manifest.Version, Compression: cfg.compression, Cipher: alg}
	if alg != CipherNone {
		if m.IV, err = cipher.NewIV(); err != nil {
			return nil, err
		}
	}

	stored := &ioutil.CountingWriter{W: body}
	enc, err := cipher.NewWriter(stored, alg, cfg.key, m.IV, m.AAD())
	if err != nil {
		return nil, err
	}
	comp, err := compress.NewWriter(enc, cfg.compression, cfg.level)
	if err != nil {
		return nil, err
	}
	dg := digest.New()

	stats, err := pack.Serialize(ctx, tree, io.MultiWriter(dg, comp),
		pack.WithWorkers(cfg.workers),
		pack.WithReadAheadBytes(cfg.readAheadBytes),
		pack.WithLogger(log),
		pack.WithOnRecord(func(rec *pack.Record, s *pack.Stats) {
			emit(cfg.progress, ProgressEvent{
				Stage:        StageSerializing,
				Path:         rec.Path,
				BytesDone:    s.ContentBytes,
				BytesTotal:   contentTotal,
				EntriesDone:  s.Entries(),
				EntriesTotal: len(records),
			})
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := comp.Close(); err != nil {
		return nil, fmt.Errorf("finish compression: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish encryption: %w", err)
	}

	m.Digest = dg.Sum()
	m.UncompressedSize = stats.BodySize
	m.BodySize = stored.N

	log.Debug("packed tree",
		"dir", dir,
		"entries", stats.Entries(),
		"digest", m.Digest.String(),
		"compression", m.Compression.String(),
		"cipher", m.Cipher.String(),
		"body_bytes", m.UncompressedSize,
		"stored_bytes", m.BodySize)
	return newSummary(m, &stats), nil
}
