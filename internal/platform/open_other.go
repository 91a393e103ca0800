//go:build !unix

package platform

import (
	"io/fs"
	"os"
)

// OpenRegular opens name under root for reading, rejecting symlinks with
// ErrSymlink and other non-regular files with ErrNotRegular. The symlink
// check is an Lstat before the open, so a concurrent swap can slip past it;
// os.Root still keeps the open inside root.
func OpenRegular(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	return checkRegular(f)
}

// SupportsPermissions reports whether the platform stores POSIX permission bits.
// Only the owner write bit survives on Windows, so permission restore is
// skipped and reported as a warning instead.
func SupportsPermissions() bool {
	return false
}
