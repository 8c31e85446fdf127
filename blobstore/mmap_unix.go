//go:build unix

package blobstore

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// mapping is a read-only memory-mapped file. close is idempotent.
type mapping struct {
	data   []byte
	closed atomic.Bool
}

func openMapped(path string) (*mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &mapping{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return &mapping{data: data}, nil
}

func (m *mapping) bytes() []byte {
	return m.data
}

func (m *mapping) close() error {
	if m.closed.Swap(true) || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
