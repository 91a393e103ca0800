// Package testutil provides helpers for building and inspecting directory
// trees in tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Dir marks an entry in a tree map as an empty directory.
const Dir = "\x00dir"

// WriteTree creates files under root. Keys are slash-separated paths; a
// value equal to Dir creates a directory instead of a file.
func WriteTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if content == Dir {
			require.NoError(tb, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(tb, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(tb, os.WriteFile(full, []byte(content), 0o644))
	}
}

// ReadTree returns every file and directory under root keyed by
// slash-separated relative path. Directories map to Dir; symlinks map to
// "-> target".
func ReadTree(tb testing.TB, root string) map[string]string {
	tb.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = "-> " + filepath.ToSlash(target)
		case d.IsDir():
			out[rel] = Dir
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[rel] = string(data)
		}
		return nil
	})
	require.NoError(tb, err)
	return out
}

// CountEntries returns the number of entries under root, excluding root.
func CountEntries(tb testing.TB, root string) int {
	tb.Helper()
	return len(ReadTree(tb, root))
}

// Key returns a deterministic 32-byte key derived from seed.
func Key(seed byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return key
}
