// Package metadata implements the frozen, index-addressable metadata
// payload spec.md §3/§4.7 describes: parallel vectors over a finalized
// fsentry.Tree, built once by Build and read back by Reader via
// binary-searched path/inode lookups.
package metadata

// ChunkRecord mirrors fsentry.Chunk in the frozen payload's own vocabulary
// (spec.md §3: "chunks[]: (block_id, offset, size) records").
type ChunkRecord struct {
	BlockID uint32
	Offset  uint32
	Size    uint32
}

// EntryRecord is spec.md §3's "fixed-size records (name_index, mode_index,
// inode)".
type EntryRecord struct {
	NameIndex uint32
	ModeIndex uint32
	Inode     uint32
}

// DirectoryRecord is spec.md §3's "per directory-inode record
// (first_entry_index, entry_count)"; present (zeroed) for non-directory
// inodes too, since it is indexed by inode like every other parallel
// vector here.
type DirectoryRecord struct {
	FirstEntryIndex uint32
	EntryCount      uint32
}

// Metadata is the decoded, in-memory form of the frozen payload: every
// parallel vector spec.md §3 names, plus its scalars.
type Metadata struct {
	Entries     []EntryRecord
	EntryIndex  []uint32 // inode -> position in Entries
	Names       []string
	Modes       []uint32
	Directories []DirectoryRecord // indexed by inode
	Chunks      []ChunkRecord
	ChunkIndex  []uint32 // inode -> start offset in Chunks, len N+1 (CSR)
	Links       []string
	LinkIndex   []uint32 // inode -> start offset in Links, len N+1 (CSR)

	ChunkIndexOffset uint64
	LinkIndexOffset  uint64
	BlockSizeBits    int
}

// InodeCount returns the number of entries (dense inodes occupy [0, N)).
func (m *Metadata) InodeCount() int {
	return len(m.Entries)
}
