package metadata

import (
	"fmt"
	"io"
)

// ChunkCallback is invoked once per chunk a regular file owns during Dump,
// per spec.md §4.7's "dump(os, chunk_cb)".
type ChunkCallback func(inode uint32, c ChunkRecord)

// Dump pretty-prints the tree for diagnostics, depth-first, invoking cb
// for every chunk of every regular file encountered. Mirrors the informal
// debug dumps kloset's own CLI subcommands print for inspecting a
// repository's object graph (ls-style path + mode string one-liners).
func (r *Reader) Dump(w io.Writer, cb ChunkCallback) error {
	return r.Walk(func(inode uint32, name string) error {
		rec, ok := r.FindInode(inode)
		if !ok {
			return fmt.Errorf("metadata: dump: inode %d missing", inode)
		}
		mode := r.m.Modes[rec.ModeIndex]
		const sIFMT, sIFDIR, sIFLNK = 0o170000, 0o040000, 0o120000
		isDir := mode&sIFMT == sIFDIR
		isSymlink := mode&sIFMT == sIFLNK

		st, err := r.Getattr(inode)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, "%s %8d %s\n", ModeString(mode, isDir, isSymlink), st.Size, name); err != nil {
			return err
		}

		if cb != nil {
			pos := r.m.EntryIndex[inode-r.opts.InodeOffset]
			cStart, cEnd := r.m.ChunkIndex[pos], r.m.ChunkIndex[pos+1]
			for _, c := range r.m.Chunks[cStart:cEnd] {
				cb(inode, c)
			}
		}
		return nil
	})
}
