//go:build !windows
// +build !windows

package image

import (
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile backs a Reader with a read-only memory map, per spec.md §5's
// "the metadata payload is owned by the reader for the image's lifetime
// and is expected to be backed by a memory map." It calls
// golang.org/x/sys/unix.Mmap directly (there is no mmap library anywhere
// in the retrieval pack, so this calls the syscall rather than adding an
// unrelated dependency).
type mappedFile struct {
	f    *os.File
	data []byte
}

func openMapped(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		f.Close()
		return &mappedFile{f: f, data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mappedFile{f: f, data: data}, nil
}

func (m *mappedFile) Bytes() []byte { return m.data }

func (m *mappedFile) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
	}
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
