//go:build linux

package ring

import "golang.org/x/sys/unix"

// fdatasync syncs file data without forcing a metadata write.
func fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
