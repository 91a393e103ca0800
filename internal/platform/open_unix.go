//go:build unix

package platform

import (
	"errors"
	"os"
	"syscall"
)

// OpenRegular opens name under root for reading. It does not follow a
// symlink in the final element and does not block if name was replaced by
// a named pipe; anything but a regular file is rejected with ErrSymlink or
// ErrNotRegular.
func OpenRegular(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, err
	}
	return checkRegular(f)
}

// SupportsPermissions reports whether the platform stores POSIX permission bits.
func SupportsPermissions() bool {
	return true
}
