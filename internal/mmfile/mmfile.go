// Package mmfile maps ring backing files into memory read-write.
package mmfile

import (
	"errors"
	"os"
)

// ErrSizeMismatch indicates an existing file whose size does not match the
// requested mapping size. The file was created with different geometry.
var ErrSizeMismatch = errors.New("mmfile: file size mismatch")

// ErrUnsupported indicates the platform has no shared-mmap support.
var ErrUnsupported = errors.New("mmfile: memory-mapped files not supported on this platform")

// File is a read-write, shared memory mapping of a backing file.
// Writes to Data land in the OS page cache and reach the file via
// msync or normal writeback.
type File struct {
	f     *os.File
	data  []byte
	fresh bool
}

// Data returns the mapped bytes. Valid until Close.
func (m *File) Data() []byte { return m.data }

// Fresh reports whether the backing file was created (or zero-sized) when
// mapped, meaning its contents are all zero and need initialization.
func (m *File) Fresh() bool { return m.fresh }

// FD returns the underlying file descriptor, or -1 after Close.
func (m *File) FD() int {
	if m == nil || m.f == nil {
		return -1
	}
	return int(m.f.Fd())
}
