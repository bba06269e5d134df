//go:build windows
// +build windows

package image

import "os"

// mappedFile falls back to a plain read on platforms without the unix mmap
// syscalls mmap_unix.go uses;
// Reader only ever consumes Bytes(), so the two implementations are
// interchangeable from its point of view.
type mappedFile struct {
	data []byte
}

func openMapped(path string) (*mappedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &mappedFile{data: data}, nil
}

func (m *mappedFile) Bytes() []byte { return m.data }

func (m *mappedFile) Close() error { return nil }
