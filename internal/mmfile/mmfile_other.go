//go:build !linux && !darwin

package mmfile

// Map is unavailable on platforms without shared mmap. A private read-back
// buffer would silently drop the durability the ring depends on, so there
// is no fallback.
func Map(path string, size int64, create bool) (*File, error) {
	return nil, ErrUnsupported
}

// Close is a no-op on unsupported platforms.
func (m *File) Close() error { return nil }
