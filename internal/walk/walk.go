// Package walk enumerates a directory tree in canonical order.
//
// Every entry below the root is collected first and then sorted once by its
// full slash-separated relative path, so the resulting sequence does not
// depend on the order the operating system returns directory entries in.
// Symbolic links are recorded with their target and never followed.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/meigma/seal/internal/platform"
	"github.com/meigma/seal/internal/sealtype"
	"github.com/meigma/seal/internal/sizing"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// MaxPathLen is the longest relative path the archive format can carry.
const MaxPathLen = 65535

// Record is an alias for sealtype.Record.
type Record = sealtype.Record

type config struct {
	maxFiles int
	logger   *slog.Logger
}

// Option configures a walk.
type Option func(*config)

// WithMaxFiles limits the number of entries collected.
// Zero uses DefaultMaxFiles. Negative means no limit.
func WithMaxFiles(n int) Option {
	return func(c *config) {
		c.maxFiles = n
	}
}

// WithLogger sets the logger for skipped entries.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Tree is the sorted result of one walk. It keeps the source root open so
// file contents can be read lazily; callers must Close it.
type Tree struct {
	dir     string
	root    *os.Root
	records []Record
}

// Walk enumerates dir recursively and returns its entries in canonical order.
//
// Regular files, directories and symbolic links are recorded. Sockets, named
// pipes and device files are skipped. The root directory itself is not
// recorded. Any traversal failure aborts the walk with a *sealtype.WalkError.
func Walk(ctx context.Context, dir string, opts ...Option) (*Tree, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	maxFiles := cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}
	log := cfg.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, &sealtype.WalkError{Path: dir, Err: err}
	}

	records := make([]Record, 0, 256)
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return &sealtype.WalkError{Path: path, Err: walkErr}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		rec, ok, err := recordFor(root, path)
		if err != nil {
			return err
		}
		if !ok {
			log.Debug("skipped irregular file", "path", path, "type", d.Type().String())
			return nil
		}
		if maxFiles > 0 && len(records) >= maxFiles {
			return sealtype.ErrTooManyFiles
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(a.Path, b.Path)
	})

	log.Debug("walked source tree", "dir", dir, "entries", len(records))
	return &Tree{dir: dir, root: root, records: records}, nil
}

// recordFor builds the record for a single entry using Lstat semantics.
// Returns ok=false for entries that are not archived.
func recordFor(root *os.Root, path string) (Record, bool, error) {
	if len(path) > MaxPathLen {
		return Record{}, false, &sealtype.WalkError{Path: path, Err: errors.New("path too long")}
	}
	if !utf8.ValidString(path) {
		return Record{}, false, &sealtype.WalkError{Path: path, Err: errors.New("path is not valid UTF-8")}
	}

	fsPath := filepath.FromSlash(path)
	info, err := root.Lstat(fsPath)
	if err != nil {
		return Record{}, false, &sealtype.WalkError{Path: path, Err: err}
	}

	rec := Record{Path: path, Mode: info.Mode().Perm()}
	switch mode := info.Mode(); {
	case mode.IsRegular():
		size, err := sizing.FromInt64(info.Size(), sealtype.ErrSizeOverflow)
		if err != nil {
			return Record{}, false, &sealtype.WalkError{Path: path, Err: err}
		}
		rec.Kind = sealtype.KindFile
		rec.Size = size
	case mode.IsDir():
		rec.Kind = sealtype.KindDir
	case mode&fs.ModeSymlink != 0:
		target, err := root.Readlink(fsPath)
		if err != nil {
			return Record{}, false, &sealtype.WalkError{Path: path, Err: err}
		}
		target = filepath.ToSlash(target)
		if len(target) > MaxPathLen {
			return Record{}, false, &sealtype.WalkError{Path: path, Err: errors.New("symlink target too long")}
		}
		rec.Kind = sealtype.KindSymlink
		rec.Target = target
		rec.Size = uint64(len(target))
	default:
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Records returns the entries in canonical order.
// The returned slice must not be modified.
func (t *Tree) Records() []Record {
	return t.records
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.records)
}

// Dir returns the directory the tree was walked from.
func (t *Tree) Dir() string {
	return t.dir
}

// Open opens the content of a file record without following symlinks.
// Failures are reported as *sealtype.WalkError since they mean the tree
// changed after it was walked.
func (t *Tree) Open(rec *Record) (io.ReadCloser, error) {
	if rec.Kind != sealtype.KindFile {
		return nil, fmt.Errorf("open %s: not a regular file", rec.Path)
	}
	f, err := platform.OpenRegular(t.root, filepath.FromSlash(rec.Path))
	if err != nil {
		return nil, &sealtype.WalkError{Path: rec.Path, Err: err}
	}
	return f, nil
}

// Close releases the source root.
func (t *Tree) Close() error {
	return t.root.Close()
}
