// Package platform isolates the few filesystem behaviors that differ between
// Unix and other systems: opening archived files without following links or
// blocking on special files, and whether permission bits can be restored.
package platform

import "errors"

var (
	// ErrSymlink is returned when a path expected to be a regular file is a
	// symbolic link.
	ErrSymlink = errors.New("refusing to follow symbolic link")

	// ErrNotRegular is returned when a path expected to be a regular file
	// is a directory, pipe, socket or device.
	ErrNotRegular = errors.New("not a regular file")
)
