//go:build !unix

package blobstore

import "os"

// mapping falls back to reading the whole file on platforms without mmap.
type mapping struct {
	data []byte
}

func openMapped(path string) (*mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &mapping{data: data}, nil
}

func (m *mapping) bytes() []byte {
	return m.data
}

func (m *mapping) close() error {
	m.data = nil
	return nil
}
