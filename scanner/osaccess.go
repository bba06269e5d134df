// Package scanner walks a source tree, orders its entries per spec.md
// §4.4's file_order modes, and feeds regular-file content through a
// segmenter.Manager to build an fsentry.Tree.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OsAccess abstracts directory traversal, per spec.md §4.4: "Walks the
// source tree through an OsAccess interface (open_directory, read_symlink,
// open_file, stat)." Out of scope per spec.md §1 ("OS-abstraction for
// directory traversal" is named only by its interface); the default
// implementation below is the concrete OS binding the builder actually
// runs with.
//
// Grounded on kloset's connectors.Importer interface shape (a small set of
// verbs a concrete backend implements, consumed generically by
// snapshot/backup.go's importerJob).
type OsAccess interface {
	OpenDirectory(path string) (DirHandle, error)
	ReadSymlink(path string) (string, error)
	OpenFile(path string) (fs.File, error)
	Stat(path string) (fs.FileInfo, error)
}

// DirHandle yields a directory's immediate children in the OS's own
// readdir order (spec.md §4.4's NONE mode: "directory walk order").
type DirHandle interface {
	Readdir() ([]fs.DirEntry, error)
	Close() error
}

// osFS is the default OsAccess: the local filesystem via os/io-fs.
type osFS struct{}

// NewOsAccess returns the default local-filesystem OsAccess.
func NewOsAccess() OsAccess { return osFS{} }

func (osFS) OpenDirectory(path string) (DirHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &osDir{f: f}, nil
}

func (osFS) ReadSymlink(path string) (string, error) {
	return os.Readlink(path)
}

func (osFS) OpenFile(path string) (fs.File, error) {
	return os.Open(path)
}

func (osFS) Stat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

type osDir struct {
	f *os.File
}

func (d *osDir) Readdir() ([]fs.DirEntry, error) {
	return d.f.ReadDir(-1)
}

func (d *osDir) Close() error {
	return d.f.Close()
}

// join is filepath.Join wrapped so callers always get '/'-separated paths
// regardless of host OS, matching the slash-separated paths spec.md §4.7's
// find(path) expects inside the frozen image.
func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.ToSlash(filepath.Join(dir, name))
}
