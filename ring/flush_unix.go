//go:build linux || darwin

package ring

import "golang.org/x/sys/unix"

// Flush schedules writeback of the whole mapped range without waiting for
// it. Cost scales with the number of dirty pages; callers should not issue
// it per write. NextFree calls it opportunistically while stalled, and
// persist checkpoints call it explicitly.
func (r *Ring) Flush() {
	if r == nil || r.m == nil {
		return
	}
	_ = unix.Msync(r.data(), unix.MS_ASYNC)
}

// Sync flushes the mapped range synchronously and syncs the file
// descriptor. Used at clean shutdown and by callers needing a durable
// checkpoint.
func (r *Ring) Sync() error {
	if r == nil || r.m == nil {
		return nil
	}
	if err := unix.Msync(r.data(), unix.MS_SYNC); err != nil {
		return err
	}
	return fdatasync(r.m.FD())
}
