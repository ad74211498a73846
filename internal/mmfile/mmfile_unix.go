//go:build linux || darwin

package mmfile

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Map opens (or, when create is true, creates) the file at path and maps
// exactly size bytes of it read-write, shared.
//
// A missing or zero-sized file is truncated up to size and reported as
// fresh. An existing file of any other size than size fails with
// ErrSizeMismatch: the geometry it was created with does not match.
func Map(path string, size int64, create bool) (*File, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	fresh := st.Size() == 0
	switch {
	case fresh:
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmfile: truncate to %d bytes: %w", size, err)
		}
	case st.Size() != size:
		_ = f.Close()
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrSizeMismatch, st.Size(), size)
	}

	data, err := syscall.Mmap(
		int(f.Fd()),
		0,
		int(size),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmfile: mmap failed: %w", err)
	}

	return &File{f: f, data: data, fresh: fresh}, nil
}

// Close unmaps and closes the file. Safe to call more than once.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	if m.data != nil {
		err := syscall.Munmap(m.data)
		m.data = nil
		if err != nil && !errors.Is(err, syscall.EINVAL) {
			// EINVAL here means an already-gone mapping; treat as no-op.
			_ = m.f.Close()
			m.f = nil
			return err
		}
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}
