package pack

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/meigma/seal/internal/ioutil"
	"github.com/meigma/seal/internal/platform"
	"github.com/meigma/seal/internal/sealtype"
)

// ErrKindConflict is returned when the destination already holds an entry
// of a different kind at a record's path.
var ErrKindConflict = errors.New("destination entry has a different kind")

// tempPrefix names in-progress files in the destination.
const tempPrefix = ".seal-"

type materializeConfig struct {
	strictPermissions bool
	logger            *slog.Logger
}

// MaterializeOption configures a Materializer.
type MaterializeOption func(*materializeConfig)

// WithStrictPermissions turns permission and symlink failures into restore
// errors. By default they are recorded as warnings.
func WithStrictPermissions(strict bool) MaterializeOption {
	return func(c *materializeConfig) {
		c.strictPermissions = strict
	}
}

// WithRestoreLogger sets the logger for restore warnings.
// If not set, logging is disabled.
func WithRestoreLogger(logger *slog.Logger) MaterializeOption {
	return func(c *materializeConfig) {
		c.logger = logger
	}
}

// Materializer recreates records under a destination directory.
//
// All filesystem access goes through an os.Root, so no record can create or
// modify anything outside the destination, including through symlinks it
// restored earlier. Files are written to a temporary name and renamed into
// place. Directory permissions are applied by Finish, deepest first, so a
// read-only directory does not block restoring its children.
type Materializer struct {
	root     *os.Root
	strict   bool
	log      *slog.Logger
	buf      []byte
	dirs     []pendingDir
	warnings []sealtype.Warning
	count    int
	last     string
	warned   bool

	chmod   func(name string, mode fs.FileMode) error
	symlink func(target, name string) error
}

type pendingDir struct {
	path string
	mode fs.FileMode
}

// NewMaterializer creates dest if needed and returns a Materializer for it.
func NewMaterializer(dest string, opts ...MaterializeOption) (*Materializer, error) {
	cfg := materializeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, &sealtype.RestoreError{Path: dest, Err: err}
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return nil, &sealtype.RestoreError{Path: dest, Err: err}
	}
	return &Materializer{
		root:    root,
		strict:  cfg.strictPermissions,
		log:     cfg.logger,
		buf:     make([]byte, ioutil.DefaultBufferSize),
		chmod:   root.Chmod,
		symlink: root.Symlink,
	}, nil
}

// Count returns the number of records restored.
func (m *Materializer) Count() int {
	return m.count
}

// Warnings returns the best-effort failures recorded so far.
func (m *Materializer) Warnings() []sealtype.Warning {
	return slices.Clone(m.warnings)
}

// Restore recreates rec. For files, content supplies exactly rec.Size bytes.
// Failures are reported as *sealtype.RestoreError naming the record's index
// and the last record restored before it.
func (m *Materializer) Restore(ctx context.Context, rec *Record, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidPath(rec.Path) {
		return m.fail(rec.Path, fmt.Errorf("invalid path %q", rec.Path))
	}
	if err := m.restore(ctx, rec, filepath.FromSlash(rec.Path), content); err != nil {
		return m.fail(rec.Path, err)
	}
	m.count++
	m.last = rec.Path
	return nil
}

func (m *Materializer) restore(ctx context.Context, rec *Record, rel string, content io.Reader) error {
	if dir := filepath.Dir(rel); dir != "." {
		if err := m.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	}

	existing, err := m.root.Lstat(rel)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err != nil {
		existing = nil
	}

	switch rec.Kind {
	case sealtype.KindDir:
		return m.restoreDir(rec, rel, existing)
	case sealtype.KindFile:
		if existing != nil && !existing.Mode().IsRegular() {
			return conflict(rec, existing)
		}
		return m.restoreFile(ctx, rec, rel, content)
	case sealtype.KindSymlink:
		return m.restoreSymlink(rec, rel, existing)
	default:
		return fmt.Errorf("invalid kind %s", rec.Kind)
	}
}

func (m *Materializer) restoreDir(rec *Record, rel string, existing fs.FileInfo) error {
	switch {
	case existing == nil:
		if err := m.root.Mkdir(rel, 0o755); err != nil {
			return err
		}
	case !existing.IsDir():
		return conflict(rec, existing)
	}
	m.dirs = append(m.dirs, pendingDir{path: rec.Path, mode: rec.Mode})
	return nil
}

func (m *Materializer) restoreFile(ctx context.Context, rec *Record, rel string, content io.Reader) error {
	if content == nil {
		return errors.New("missing content")
	}
	f, tempRel, err := createTempFile(m.root, filepath.Dir(rel), tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	discard := func() {
		_ = f.Close()              //nolint:errcheck // best-effort cleanup
		_ = m.root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
	}

	n, err := ioutil.CopyWithContext(ctx, f, content, m.buf)
	if err != nil {
		discard()
		return err
	}
	if n != rec.Size {
		discard()
		return fmt.Errorf("wrote %d of %d bytes", n, rec.Size)
	}
	if err := f.Close(); err != nil {
		_ = m.root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := m.applyMode(rec.Path, tempRel, rec.Mode); err != nil {
		_ = m.root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := m.root.Rename(tempRel, rel); err != nil {
		_ = m.root.Remove(tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (m *Materializer) restoreSymlink(rec *Record, rel string, existing fs.FileInfo) error {
	if existing != nil {
		if existing.Mode()&fs.ModeSymlink == 0 {
			return conflict(rec, existing)
		}
		if err := m.root.Remove(rel); err != nil {
			return fmt.Errorf("replace symlink: %w", err)
		}
	}
	if err := m.symlink(filepath.FromSlash(rec.Target), rel); err != nil {
		if m.strict {
			return fmt.Errorf("symlink: %w", err)
		}
		m.warn(rec.Path, "symlink", err)
	}
	return nil
}

// applyMode sets permission bits on rel. Failures are warnings unless strict.
func (m *Materializer) applyMode(path, rel string, mode fs.FileMode) error {
	if !platform.SupportsPermissions() {
		if !m.warned {
			m.warned = true
			m.warn(".", "chmod", errors.ErrUnsupported)
		}
		return nil
	}
	if err := m.chmod(rel, mode.Perm()); err != nil {
		if m.strict {
			return fmt.Errorf("chmod: %w", err)
		}
		m.warn(path, "chmod", err)
	}
	return nil
}

// Finish applies deferred directory permissions, deepest directories first.
func (m *Materializer) Finish(ctx context.Context) error {
	for i := len(m.dirs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := m.dirs[i]
		if err := m.applyMode(d.path, filepath.FromSlash(d.path), d.mode); err != nil {
			return &sealtype.RestoreError{Path: d.path, Index: m.count, LastPath: m.last, Err: err}
		}
	}
	m.dirs = nil
	return nil
}

// Close releases the destination root.
func (m *Materializer) Close() error {
	return m.root.Close()
}

func (m *Materializer) warn(path, op string, err error) {
	m.log.Warn("restore warning", "path", path, "op", op, "error", err)
	m.warnings = append(m.warnings, sealtype.Warning{Path: path, Op: op, Err: err})
}

func (m *Materializer) fail(path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &sealtype.RestoreError{Path: path, Index: m.count, LastPath: m.last, Err: err}
}

func conflict(rec *Record, existing fs.FileInfo) error {
	return fmt.Errorf("%w: %s exists as %s, archive has %s", ErrKindConflict, rec.Path, describe(existing.Mode()), rec.Kind)
}

func describe(mode fs.FileMode) string {
	switch {
	case mode.IsRegular():
		return "file"
	case mode.IsDir():
		return "dir"
	case mode&fs.ModeSymlink != 0:
		return "symlink"
	default:
		return mode.Type().String()
	}
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
