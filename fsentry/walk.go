package fsentry

import "sort"

// WalkFunc is called once per entry during Walk, receiving the finalized
// entries slice and the current entry's inode. Returning an error aborts
// the walk and is returned from Walk unchanged.
//
// Grounded on kloset's snapshot/vfs/walk.go WalkDirFunc: same depth-first,
// pre-order shape, generalized from path-string visitation to inode
// visitation since fsentry's tree is array-indexed rather than B-tree
// path-indexed.
type WalkFunc func(entries []Entry, inode int) error

// Walk visits every entry reachable from root in depth-first pre-order,
// children visited in their stored (name-sorted) order. entries must
// already be finalized (see Tree.Finalize).
func Walk(entries []Entry, root int, fn WalkFunc) error {
	if err := fn(entries, root); err != nil {
		return err
	}
	e := entries[root]
	if e.Kind != KindDirectory {
		return nil
	}
	for i := 0; i < e.ChildCount; i++ {
		if err := Walk(entries, e.FirstChild+i, fn); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds name within dir's contiguous, name-sorted child range via
// binary search, per spec.md §4.7's find(inode, name).
func Lookup(entries []Entry, dir int, name string) (inode int, ok bool) {
	e := entries[dir]
	lo, hi := e.FirstChild, e.FirstChild+e.ChildCount
	i := sort.Search(hi-lo, func(i int) bool {
		return entries[lo+i].Name >= name
	})
	idx := lo + i
	if idx >= hi || entries[idx].Name != name {
		return 0, false
	}
	return idx, true
}

// LookupPath resolves a slash-separated path from root by repeated Lookup
// on each component, per spec.md §4.7's find(path): "split path at `/`; for
// each component, binary-search the current directory's child range on
// names."
func LookupPath(entries []Entry, root int, path string) (inode int, ok bool) {
	cur := root
	start := 0
	for start <= len(path) {
		end := start
		for end < len(path) && path[end] != '/' {
			end++
		}
		comp := path[start:end]
		if comp != "" {
			next, found := Lookup(entries, cur, comp)
			if !found {
				return 0, false
			}
			cur = next
		}
		start = end + 1
	}
	return cur, true
}
