package fsentry

import "sort"

// Tree holds every Entry discovered by a scan, plus the finalized,
// dense-inode, sorted-child-range layout spec.md §3 requires of the
// metadata builder's input.
//
// Tree is a builder: call NewTree, add entries in any order via
// AddDirectory/AddFile/AddSymlink/AddOther (each returns a handle usable as
// a parent for further children), then Finalize to assign dense inodes and sort each directory's
// children into a contiguous, name-sorted range.
type Tree struct {
	entries []Entry
	built   bool
}

// handle is the index of an entry inside Tree.entries before Finalize has
// reassigned dense inode numbers; it is distinct from Entry.Inode, which is
// only meaningful after Finalize.
type handle = int

const rootHandle handle = 0

// NewTree returns a Tree containing only the root directory, at handle 0.
func NewTree(rootStat Stat) *Tree {
	t := &Tree{}
	t.entries = append(t.entries, Entry{
		Name:   "",
		Kind:   KindDirectory,
		Stat:   rootStat,
		Parent: rootHandle,
	})
	return t
}

// Root returns the handle of the tree's root directory.
func (t *Tree) Root() handle { return rootHandle }

// AddDirectory appends a new directory entry under parent and returns its
// handle, usable as a parent for further AddDirectory/AddFile/AddSymlink
// calls.
func (t *Tree) AddDirectory(parent handle, name string, stat Stat) handle {
	t.entries = append(t.entries, Entry{
		Name:   name,
		Kind:   KindDirectory,
		Stat:   stat,
		Parent: parent,
	})
	return len(t.entries) - 1
}

// AddFile appends a regular-file entry with its already-segmented chunk
// list (spec.md §4.4: "the scanner feeds each regular file's bytes to the
// Block Manager and records the returned chunk list on the file's entry").
func (t *Tree) AddFile(parent handle, name string, stat Stat, chunks []Chunk) handle {
	t.entries = append(t.entries, Entry{
		Name:   name,
		Kind:   KindRegular,
		Stat:   stat,
		Parent: parent,
		Chunks: chunks,
	})
	return len(t.entries) - 1
}

// AddSymlink appends a symlink entry with its target.
func (t *Tree) AddSymlink(parent handle, name string, stat Stat, target string) handle {
	t.entries = append(t.entries, Entry{
		Name:   name,
		Kind:   KindSymlink,
		Stat:   stat,
		Parent: parent,
		Target: target,
	})
	return len(t.entries) - 1
}

// AddOther appends an entry for anything the scanner declines to carry
// content for (device nodes, sockets, FIFOs): recorded so getattr/stat can
// still see it, but never readable.
func (t *Tree) AddOther(parent handle, name string, stat Stat) handle {
	t.entries = append(t.entries, Entry{
		Name:   name,
		Kind:   KindOther,
		Stat:   stat,
		Parent: parent,
	})
	return len(t.entries) - 1
}

// Finalize assigns dense inodes in the order spec.md §3 requires (parent
// before children, see Walk) is not actually required by the invariant —
// only that inodes occupy [0, N) and entry_index is a permutation of it —
// but a stable deterministic order is required by spec.md §8 scenario 6
// ("order=path produces deterministic inode assignment"). Finalize sorts
// each directory's children by name and assigns inodes by a breadth-first
// walk from the root, laying each directory's children out as a
// contiguous range; the order in which entries were added does not affect
// the result.
func (t *Tree) Finalize() []Entry {
	if t.built {
		return t.entries
	}
	t.built = true

	// Group children by parent handle, then sort each group by name for the
	// binary-searchable range spec.md §3 requires.
	childrenOf := map[handle][]handle{}
	for h, e := range t.entries {
		if h == rootHandle {
			continue
		}
		childrenOf[e.Parent] = append(childrenOf[e.Parent], h)
	}
	for parent, kids := range childrenOf {
		sort.Slice(kids, func(i, j int) bool {
			return t.entries[kids[i]].Name < t.entries[kids[j]].Name
		})
		childrenOf[parent] = kids
	}

	// Lay out a new, dense-inode, child-contiguous entries slice via a
	// breadth-first walk starting at the root: each directory's children
	// are appended as one contiguous run, so FirstChild/ChildCount index
	// directly into the new slice.
	out := make([]Entry, 0, len(t.entries))
	out = append(out, t.entries[rootHandle])
	out[rootHandle].Inode = 0
	out[rootHandle].Parent = 0

	oldToNew := map[handle]int{rootHandle: 0}
	queue := []handle{rootHandle}

	for len(queue) > 0 {
		oldParent := queue[0]
		queue = queue[1:]
		newParent := oldToNew[oldParent]

		kids := childrenOf[oldParent]
		if len(kids) == 0 {
			continue
		}

		firstChild := len(out)
		for _, oldChild := range kids {
			child := t.entries[oldChild]
			child.Inode = len(out)
			child.Parent = newParent
			out = append(out, child)
			oldToNew[oldChild] = child.Inode
		}
		out[newParent].FirstChild = firstChild
		out[newParent].ChildCount = len(kids)

		for _, oldChild := range kids {
			if t.entries[oldChild].Kind == KindDirectory {
				queue = append(queue, oldChild)
			}
		}
	}

	t.entries = out
	return t.entries
}

// Entries returns the finalized entry slice; calling it before Finalize
// returns entries with stale handles rather than dense inodes.
func (t *Tree) Entries() []Entry {
	return t.entries
}

// SetChunks attaches a regular file's chunk list after the fact, for
// callers that must determine processing order (spec.md §4.4's file_order)
// across the whole tree before any content is read, and so cannot supply
// chunks at AddFile time. Must be called before Finalize.
func (t *Tree) SetChunks(h handle, chunks []Chunk) {
	t.entries[h].Chunks = chunks
}
