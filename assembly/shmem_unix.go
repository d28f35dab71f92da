// shmem_unix.go - memory-mapped backing store for shared ethers
//
// One region per shared ether, created or attached by path. The mapping is
// ephemeral: nothing here survives a reboot usefully, and a process that
// attaches a stale region without reset fails the ether's signature check.

//go:build unix

package assembly

import (
	"os"

	"golang.org/x/sys/unix"
)

// SharedRegion is one mmap'd backing file.
type SharedRegion struct {
	path string
	data []byte
}

// MapShared opens (creating if needed) path and maps exactly size bytes
// shared and writable. With reset the file is truncated first so the
// mapping starts zeroed; otherwise the existing contents are kept and the
// file is only grown to size if it was shorter.
func MapShared(path string, size int, reset bool) (*SharedRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if reset {
		if err := f.Truncate(0); err != nil {
			return nil, err
		}
	}
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, err
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &SharedRegion{path: path, data: data}, nil
}

// Data returns the mapped bytes.
func (r *SharedRegion) Data() []byte { return r.data }

// Path returns the backing file path.
func (r *SharedRegion) Path() string { return r.path }

// Close unmaps the region. The backing file stays on disk for other
// attachers.
func (r *SharedRegion) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}
