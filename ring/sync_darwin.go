//go:build darwin

package ring

import "golang.org/x/sys/unix"

// fdatasync forces data to stable storage. On macOS a plain fsync may stop
// at the drive cache, so F_FULLFSYNC is used, falling back to fsync on
// filesystems that reject it.
func fdatasync(fd int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0); err == nil {
		return nil
	}
	return unix.Fsync(fd)
}
