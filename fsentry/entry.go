// Package fsentry implements the in-memory Entry tree spec.md §3 describes:
// files, directories and symlinks discovered by the scanner, with dense
// inode numbers assigned in finalization order and directory children kept
// as a contiguous, name-sorted index range.
//
// Grounded on kloset/snapshot/vfs's Entry/Filesystem (its WalkDirFunc
// visitor shape, reused here as WalkFunc) and objects/fileinfo_unix.go's
// stat extraction, generalized from a B-tree-indexed, content-addressed
// tree to a flat, dense-inode array tree matching the frozen metadata
// layout in spec.md §3.
package fsentry

import "time"

// Kind is the entry type, per spec.md §3's "{regular file, directory,
// symlink, other}".
type Kind uint8

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindOther
)

// Chunk mirrors segmenter.Chunk without importing it, so fsentry has no
// dependency on the segmenting subsystem; the scanner is the only caller
// that needs both types together.
type Chunk struct {
	BlockID uint32
	Offset  uint32
	Length  uint32
}

// Stat carries the subset of POSIX metadata the spec's getattr exposes,
// extracted the way objects.FileInfoFromStat pulls fields out of
// syscall.Stat_t.
type Stat struct {
	Mode    uint32 // raw mode_t, including type bits
	UID     uint32
	GID     uint32
	ModTime time.Time
}

// Entry is one node of the tree. Only the fields relevant to Kind are
// meaningful: Chunks for KindRegular, Target for KindSymlink, FirstChild/
// ChildCount for KindDirectory.
type Entry struct {
	Name   string
	Kind   Kind
	Stat   Stat
	Inode  int // dense, assigned in finalization order; root is 0
	Parent int // parent's Inode; root is its own parent

	Chunks []Chunk // KindRegular
	Target string  // KindSymlink

	FirstChild int // KindDirectory: index into Tree.entries of the first child, once sorted
	ChildCount int // KindDirectory
}

// Size returns the logical size spec.md §4.7's getattr reports: sum of
// chunk lengths for regular files, target length for symlinks, 0 otherwise.
func (e *Entry) Size() int64 {
	switch e.Kind {
	case KindRegular:
		var total int64
		for _, c := range e.Chunks {
			total += int64(c.Length)
		}
		return total
	case KindSymlink:
		return int64(len(e.Target))
	default:
		return 0
	}
}
