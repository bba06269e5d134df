package metadata

import (
	"github.com/cespare/xxhash/v2"

	"github.com/dwarfs-go/dwarfs/fsentry"
)

// Build constructs the frozen Metadata payload from a finalized
// fsentry.Tree (fsentry.Tree.Finalize's return value), per spec.md §4.7:
// "given the finalised entry tree, produces the frozen layout... Names and
// modes are deduplicated via lookup tables built during construction.
// Directory children are sorted by name bytes to enable binary search"
// (already true of entries on input, since fsentry.Tree.Finalize sorts
// each directory's children by name).
//
// Grounded on kloset's packfile_mem.go for the overall "build parallel
// vectors, then binary-encode them" shape; name/mode interning is original
// to this repo (kloset's own packfile format has no analogous string
// table), using xxhash.Sum64 as the dedup map key the way kloset's pebble
// cache uses content hashes as keys.
func Build(entries []fsentry.Entry, blockSizeBits int) *Metadata {
	m := &Metadata{BlockSizeBits: blockSizeBits}

	nameIndex := map[uint64]uint32{}
	modeIndex := map[uint32]uint32{}

	internName := func(name string) uint32 {
		h := xxhash.Sum64String(name)
		if idx, ok := nameIndex[h]; ok && m.Names[idx] == name {
			return idx
		}
		idx := uint32(len(m.Names))
		m.Names = append(m.Names, name)
		nameIndex[h] = idx
		return idx
	}
	internMode := func(mode uint32) uint32 {
		if idx, ok := modeIndex[mode]; ok {
			return idx
		}
		idx := uint32(len(m.Modes))
		m.Modes = append(m.Modes, mode)
		modeIndex[mode] = idx
		return idx
	}

	n := len(entries)
	m.Entries = make([]EntryRecord, n)
	m.EntryIndex = make([]uint32, n)
	m.Directories = make([]DirectoryRecord, n)
	m.ChunkIndex = make([]uint32, n+1)
	m.LinkIndex = make([]uint32, n+1)

	for i, e := range entries {
		nameIdx := internName(e.Name)
		modeIdx := internMode(fsentry.ReadOnlyMode(e.Stat.Mode))

		m.Entries[i] = EntryRecord{NameIndex: nameIdx, ModeIndex: modeIdx, Inode: uint32(e.Inode)}
		// fsentry.Tree.Finalize always assigns entries[i].Inode == i, so
		// entry_index is the identity permutation here; computed via the
		// field anyway (not just i) so a differently-ordered Entries slice
		// would still produce a correct mapping.
		m.EntryIndex[e.Inode] = uint32(i)

		if e.Kind == fsentry.KindDirectory {
			m.Directories[i] = DirectoryRecord{FirstEntryIndex: uint32(e.FirstChild), EntryCount: uint32(e.ChildCount)}
		}

		m.ChunkIndex[i] = uint32(len(m.Chunks))
		if e.Kind == fsentry.KindRegular {
			for _, c := range e.Chunks {
				m.Chunks = append(m.Chunks, ChunkRecord{BlockID: c.BlockID, Offset: c.Offset, Size: c.Length})
			}
		}

		m.LinkIndex[i] = uint32(len(m.Links))
		if e.Kind == fsentry.KindSymlink {
			m.Links = append(m.Links, e.Target)
		}
	}
	m.ChunkIndex[n] = uint32(len(m.Chunks))
	m.LinkIndex[n] = uint32(len(m.Links))

	return m
}
