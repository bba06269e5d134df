package metadata

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/dwarfs-go/dwarfs/fsentry"
)

// OpenOptions supplies the image-wide defaults getattr needs but the
// frozen payload itself does not carry, per spec.md §4.7: "uid/gid/times
// come from image-wide defaults supplied at open time."
type OpenOptions struct {
	InodeOffset uint32
	UID, GID    uint32
	ModTime     time.Time
}

// Reader answers spec.md §4.7's lookup operations against a decoded
// Metadata payload.
type Reader struct {
	m    *Metadata
	opts OpenOptions
}

// NewReader wraps m for lookups, applying opts as the image-wide attribute
// defaults.
func NewReader(m *Metadata, opts OpenOptions) *Reader {
	return &Reader{m: m, opts: opts}
}

// Stat is the result of Getattr: the read-only-masked, CSR-reconstructed
// attributes of one entry.
type Stat struct {
	Inode    uint32
	Mode     uint32
	Size     int64
	Blocks   int64
	UID, GID uint32
	ModTime  time.Time
}

// Find resolves a slash-separated path to an inode by descending from the
// root (inode 0), binary-searching each directory's contiguous child range
// on name bytes, per spec.md §4.7's find(path).
func (r *Reader) Find(path string) (uint32, bool) {
	cur := uint32(0)
	for _, comp := range strings.Split(strings.Trim(path, "/"), "/") {
		if comp == "" {
			continue
		}
		next, ok := r.FindChild(cur, comp)
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

// FindInode dereferences entry_index[inode - inode_offset], per spec.md
// §4.7's find(inode).
func (r *Reader) FindInode(inode uint32) (EntryRecord, bool) {
	local := inode - r.opts.InodeOffset
	if int(local) >= len(r.m.EntryIndex) {
		return EntryRecord{}, false
	}
	pos := r.m.EntryIndex[local]
	if int(pos) >= len(r.m.Entries) {
		return EntryRecord{}, false
	}
	return r.m.Entries[pos], true
}

// FindChild composes Find and FindInode: look up name within the
// directory identified by dirInode, per spec.md §4.7's find(inode, name).
func (r *Reader) FindChild(dirInode uint32, name string) (uint32, bool) {
	if int(dirInode) >= len(r.m.Directories) {
		return 0, false
	}
	dir := r.m.Directories[dirInode]
	lo, hi := int(dir.FirstEntryIndex), int(dir.FirstEntryIndex)+int(dir.EntryCount)
	if hi > len(r.m.Entries) {
		hi = len(r.m.Entries)
	}

	idx := sort.Search(hi-lo, func(i int) bool {
		return r.m.Names[r.m.Entries[lo+i].NameIndex] >= name
	})
	pos := lo + idx
	if pos >= hi || r.m.Names[r.m.Entries[pos].NameIndex] != name {
		return 0, false
	}
	return r.m.Entries[pos].Inode, true
}

// Getattr computes spec.md §4.7's getattr: "mode is masked to read-only
// (clear all write bits); size is sum of chunk sizes for regular files,
// symlink target length for symlinks, 0 otherwise; st_blocks =
// ceil(size/512); inode is entry.inode + inode_offset; uid/gid/times come
// from image-wide defaults supplied at open time."
func (r *Reader) Getattr(inode uint32) (Stat, error) {
	rec, ok := r.FindInode(inode)
	if !ok {
		return Stat{}, fmt.Errorf("metadata: getattr: inode %d: %w", inode, dwarfserr.ErrInvalidPath)
	}

	pos := r.m.EntryIndex[inode-r.opts.InodeOffset]
	var size int64

	chunkStart, chunkEnd := r.m.ChunkIndex[pos], r.m.ChunkIndex[pos+1]
	for _, c := range r.m.Chunks[chunkStart:chunkEnd] {
		size += int64(c.Size)
	}

	linkStart, linkEnd := r.m.LinkIndex[pos], r.m.LinkIndex[pos+1]
	for _, l := range r.m.Links[linkStart:linkEnd] {
		size += int64(len(l))
	}

	return Stat{
		Inode:   rec.Inode + r.opts.InodeOffset,
		Mode:    fsentry.ReadOnlyMode(r.m.Modes[rec.ModeIndex]),
		Size:    size,
		Blocks:  (size + 511) / 512,
		UID:     r.opts.UID,
		GID:     r.opts.GID,
		ModTime: r.opts.ModTime,
	}, nil
}

// WalkFunc receives each inode in depth-first pre-order during Walk.
type WalkFunc func(inode uint32, name string) error

// Walk performs spec.md §4.7's "walk(visitor): depth-first pre-order
// traversal starting at root."
func (r *Reader) Walk(fn WalkFunc) error {
	return r.walk(0, "", fn)
}

func (r *Reader) walk(inode uint32, name string, fn WalkFunc) error {
	if err := fn(inode, name); err != nil {
		return err
	}
	if int(inode) >= len(r.m.Directories) {
		return nil
	}
	dir := r.m.Directories[inode]
	for i := uint32(0); i < dir.EntryCount; i++ {
		child := r.m.Entries[dir.FirstEntryIndex+i]
		if err := r.walk(child.Inode, r.m.Names[child.NameIndex], fn); err != nil {
			return err
		}
	}
	return nil
}

// ModeString renders mode as DwarFS's 13-character mode string, per
// spec.md §4.7: "SUID/SGID/STICKY (U/G/S or -), type (d/l/-), then three
// rwx triplets" — one character per special bit (3), one for type (1), and
// nine for the three rwx triplets: 3+1+9 = 13.
func ModeString(mode uint32, isDir, isSymlink bool) string {
	const (
		sSUID = 0o4000
		sSGID = 0o2000
		sVTX  = 0o1000
	)
	var b strings.Builder

	if mode&sSUID != 0 {
		b.WriteByte('U')
	} else {
		b.WriteByte('-')
	}
	if mode&sSGID != 0 {
		b.WriteByte('G')
	} else {
		b.WriteByte('-')
	}
	if mode&sVTX != 0 {
		b.WriteByte('S')
	} else {
		b.WriteByte('-')
	}

	switch {
	case isDir:
		b.WriteByte('d')
	case isSymlink:
		b.WriteByte('l')
	default:
		b.WriteByte('-')
	}

	for _, shift := range []uint{6, 3, 0} {
		triplet := (mode >> shift) & 0o7
		if triplet&0o4 != 0 {
			b.WriteByte('r')
		} else {
			b.WriteByte('-')
		}
		if triplet&0o2 != 0 {
			b.WriteByte('w')
		} else {
			b.WriteByte('-')
		}
		if triplet&0o1 != 0 {
			b.WriteByte('x')
		} else {
			b.WriteByte('-')
		}
	}

	return b.String()
}
