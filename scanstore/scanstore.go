// Package scanstore is an on-disk staging store for finalized entries and
// their chunk lists, so a scan of a tree larger than
// config.BuilderOptions.MemoryLimit need not hold every fsentry.Entry in
// memory before the metadata builder freezes them. scanner.Scan does not
// use it: the scanner keeps every entry in an in-memory fsentry.Tree.
//
// Grounded on kloset's caching/pebble.cache (Put/Has/Get/Scan/Delete/Close
// over a pebble.DB, with atomic counters for diagnostics) and
// caching.Cache's interface shape; generalized from kloset's MAC-keyed
// blob cache to an inode-keyed entry store, and from raw []byte values to
// msgpack-encoded fsentry.Entry records.
package scanstore

import (
	"encoding/binary"
	"fmt"
	"iter"
	"os"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dwarfs-go/dwarfs/fsentry"
)

// Store stages fsentry.Entry records keyed by their scan-order handle
// (which need not be dense yet — entries are re-keyed to dense inodes by
// fsentry.Tree.Finalize once the whole scan completes).
type Store struct {
	db  *pebble.DB
	dir string

	putCount int64
	getCount int64
}

// Open creates (or reuses) a pebble database rooted at dir.
//
// Grounded directly on caching/pebble.New's options (MemTableSize, a
// no-op Logger) — the staging store has the same "write-heavy, single
// process, ephemeral" access pattern as kloset's object cache.
func Open(dir string) (*Store, error) {
	opts := &pebble.Options{
		MemTableSize: 256 << 20,
		Logger:       noopLogger{},
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("scanstore: open %q: %w", dir, err)
	}
	return &Store{db: db, dir: dir}, nil
}

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...any)  {}
func (noopLogger) Errorf(format string, args ...any) {}
func (noopLogger) Fatalf(format string, args ...any) {}

// wireEntry is fsentry.Entry's on-disk shape. fsentry.Entry itself carries
// no msgpack tags (it has no serialization concerns of its own — only
// scanstore and metadata do), so this is a deliberate, independent mirror.
type wireEntry struct {
	Name       string          `msgpack:"name"`
	Kind       fsentry.Kind    `msgpack:"kind"`
	Mode       uint32          `msgpack:"mode"`
	UID        uint32          `msgpack:"uid"`
	GID        uint32          `msgpack:"gid"`
	ModTimeSec int64           `msgpack:"mtime"`
	Parent     int             `msgpack:"parent"`
	Chunks     []fsentry.Chunk `msgpack:"chunks,omitempty"`
	Target     string          `msgpack:"target,omitempty"`
	FirstChild int             `msgpack:"first_child"`
	ChildCount int             `msgpack:"child_count"`
}

func toWireEntry(e fsentry.Entry) wireEntry {
	return wireEntry{
		Name: e.Name, Kind: e.Kind, Mode: e.Stat.Mode, UID: e.Stat.UID, GID: e.Stat.GID,
		ModTimeSec: e.Stat.ModTime.Unix(), Parent: e.Parent, Chunks: e.Chunks, Target: e.Target,
		FirstChild: e.FirstChild, ChildCount: e.ChildCount,
	}
}

func (w wireEntry) toEntry() fsentry.Entry {
	return fsentry.Entry{
		Name: w.Name, Kind: w.Kind,
		Stat:       fsentry.Stat{Mode: w.Mode, UID: w.UID, GID: w.GID, ModTime: time.Unix(w.ModTimeSec, 0)},
		Parent:     w.Parent,
		Chunks:     w.Chunks,
		Target:     w.Target,
		FirstChild: w.FirstChild,
		ChildCount: w.ChildCount,
	}
}

func keyFor(handle int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(handle))
	return buf[:]
}

// Put stages one entry under handle.
func (s *Store) Put(handle int, e fsentry.Entry) error {
	atomic.AddInt64(&s.putCount, 1)
	data, err := msgpack.Marshal(toWireEntry(e))
	if err != nil {
		return fmt.Errorf("scanstore: marshal entry %d: %w", handle, err)
	}
	return s.db.Set(keyFor(handle), data, pebble.NoSync)
}

// Get retrieves the entry staged under handle.
func (s *Store) Get(handle int) (fsentry.Entry, bool, error) {
	atomic.AddInt64(&s.getCount, 1)
	data, closer, err := s.db.Get(keyFor(handle))
	if err != nil {
		if err == pebble.ErrNotFound {
			return fsentry.Entry{}, false, nil
		}
		return fsentry.Entry{}, false, err
	}
	defer closer.Close()

	var w wireEntry
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return fsentry.Entry{}, false, fmt.Errorf("scanstore: unmarshal entry %d: %w", handle, err)
	}
	return w.toEntry(), true, nil
}

// All iterates every staged entry in ascending handle order, the order the
// metadata builder needs to rebuild the handle-indexed tree before
// fsentry.Tree.Finalize reassigns dense inodes.
func (s *Store) All() iter.Seq2[int, fsentry.Entry] {
	return func(yield func(int, fsentry.Entry) bool) {
		it, err := s.db.NewIter(&pebble.IterOptions{})
		if err != nil {
			return
		}
		defer it.Close()
		for it.First(); it.Valid(); it.Next() {
			handle := int(binary.BigEndian.Uint64(it.Key()))
			var w wireEntry
			if err := msgpack.Unmarshal(it.Value(), &w); err != nil {
				return
			}
			if !yield(handle, w.toEntry()) {
				return
			}
		}
	}
}

// Close closes the underlying database and removes its directory: the
// staging store never outlives a single build.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(s.dir)
}
