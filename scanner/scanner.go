package scanner

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"

	"github.com/dwarfs-go/dwarfs/exclude"
	"github.com/dwarfs-go/dwarfs/fsentry"
	"github.com/dwarfs-go/dwarfs/logging"
	"github.com/dwarfs-go/dwarfs/progress"
	"github.com/dwarfs-go/dwarfs/segmenter"
)

// Config controls one scan run.
type Config struct {
	Root         string
	Order        FileOrder
	Script       ScriptFilter    // required iff Order == OrderScript
	Ignore       *exclude.RuleSet // built-in ignore-glob filter, consulted before Script/similarity ordering
	Access       OsAccess        // defaults to NewOsAccess() if nil
	ReadBufBytes int             // defaults to 1<<20 if 0
	Logger       logging.Logger
	Progress     *progress.Counters // optional; nil disables counting entirely
}

// record is one discovered regular file, gathered during the initial
// directory walk before any ordering or content reading happens; handle is
// the fsentry.Tree handle AddFile returned for it.
type record struct {
	handle int
	path   string // slash-separated, relative to Config.Root
	info   fs.FileInfo
}

// Scan walks cfg.Root through cfg.Access, orders regular files per
// cfg.Order, streams each through seg, and returns the finalized entry
// tree, per spec.md §4.4's full scan pipeline.
func Scan(cfg Config, seg *segmenter.Manager) ([]fsentry.Entry, error) {
	access := cfg.Access
	if access == nil {
		access = NewOsAccess()
	}
	readBuf := cfg.ReadBufBytes
	if readBuf == 0 {
		readBuf = 1 << 20
	}

	rootInfo, err := access.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root %q: %w", cfg.Root, err)
	}
	tree := fsentry.NewTree(fsentry.StatFromFileInfo(rootInfo))

	var regularFiles []record
	if err := walkDir(access, cfg, tree, cfg.Root, "", tree.Root(), &regularFiles); err != nil {
		return nil, err
	}

	byPath := make(map[string]record, len(regularFiles))
	metas := make([]EntryMeta, len(regularFiles))
	for i, r := range regularFiles {
		metas[i] = EntryMeta{Path: r.path, Size: r.info.Size(), Mode: uint32(r.info.Mode())}
		byPath[r.path] = r
	}

	ordered, err := sortEntries(cfg.Order, metas, func(m EntryMeta) (sizedReader, error) {
		return access.OpenFile(join(cfg.Root, m.Path))
	}, cfg.Script)
	if err != nil {
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Trace("scanner", "ordered %d regular files (mode=%d)", len(ordered), cfg.Order)
	}

	for _, m := range ordered {
		r := byPath[m.Path]
		if cfg.Progress != nil {
			cfg.Progress.SetCurrentFile(r.path)
		}
		// Per spec.md §7, a per-file I/O error during the content pass is
		// counted and logged, not fatal: the segmenter state for files
		// already scanned is still good, so the build continues without
		// this file's chunks rather than unwinding the whole scan. A
		// segmenter error, by contrast, means the block stream itself is
		// now in an unknown state and must abort the build.
		if err := scanOneFile(access, seg, tree, cfg.Root, r, readBuf); err != nil {
			if errors.Is(err, errSegment) {
				return nil, err
			}
			if cfg.Progress != nil {
				cfg.Progress.IncErrors()
			}
			if cfg.Logger != nil {
				cfg.Logger.Warn("scanner: skipping %q: %v", r.path, err)
			}
			continue
		}
		if cfg.Progress != nil {
			cfg.Progress.IncFilesScanned()
		}
	}

	return tree.Finalize(), nil
}

// errSegment marks an error returned by the segmenter itself, as opposed
// to one reading the source file, so Scan can tell which errors must
// abort the whole build.
var errSegment = errors.New("scanner: segmenter error")

// scanOneFile streams one regular file's bytes through seg and records the
// returned chunk list on its entry.
func scanOneFile(access OsAccess, seg *segmenter.Manager, tree *fsentry.Tree, root string, r record, readBufBytes int) error {
	f, err := access.OpenFile(join(root, r.path))
	if err != nil {
		return fmt.Errorf("scanner: open %q: %w", r.path, err)
	}
	defer f.Close()

	var chunks []segmenter.Chunk
	buf := make([]byte, readBufBytes)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			got, appendErr := seg.Append(buf[:n])
			if appendErr != nil {
				return fmt.Errorf("scanner: segment %q: %w: %w", r.path, appendErr, errSegment)
			}
			chunks = append(chunks, got...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("scanner: read %q: %w", r.path, err)
		}
	}

	fsChunks := make([]fsentry.Chunk, len(chunks))
	for i, c := range chunks {
		fsChunks[i] = fsentry.Chunk{BlockID: c.BlockID, Offset: c.Offset, Length: c.Length}
	}
	tree.SetChunks(r.handle, fsChunks)
	return nil
}

// walkDir recurses depth-first through cfg.Access, adding every entry to
// tree in name order (Readdir's order, sorted by name below) and collecting regular
// files into *files for later reordering. Per-entry stat/readlink errors
// are counted and skipped (spec.md §7); a directory that can't be opened
// or read is a structural failure and aborts the whole scan.
func walkDir(access OsAccess, cfg Config, tree *fsentry.Tree, fullPath, relPath string, parent int, files *[]record) error {
	ignore := cfg.Ignore

	dh, err := access.OpenDirectory(fullPath)
	if err != nil {
		return fmt.Errorf("scanner: open directory %q: %w", fullPath, err)
	}
	defer dh.Close()

	children, err := dh.Readdir()
	if err != nil {
		return fmt.Errorf("scanner: readdir %q: %w", fullPath, err)
	}
	// Readdir order is OS-dependent; spec.md §4.4's NONE mode is merely
	// "directory walk order" (any consistent order), so we stabilize it by
	// name here rather than leaving it arbitrary across runs.
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	for _, de := range children {
		childFull := join(fullPath, de.Name())
		childRel := join(relPath, de.Name())

		info, err := access.Stat(childFull)
		if err != nil {
			if cfg.Progress != nil {
				cfg.Progress.IncErrors()
			}
			if cfg.Logger != nil {
				cfg.Logger.Warn("scanner: skipping %q: %v", childFull, err)
			}
			continue
		}

		if ignore != nil && ignore.IsExcluded(childRel, info.IsDir()) {
			continue
		}

		st := fsentry.StatFromFileInfo(info)

		switch {
		case info.IsDir():
			h := tree.AddDirectory(parent, de.Name(), st)
			if err := walkDir(access, cfg, tree, childFull, childRel, h, files); err != nil {
				return err
			}
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := access.ReadSymlink(childFull)
			if err != nil {
				if cfg.Progress != nil {
					cfg.Progress.IncErrors()
				}
				if cfg.Logger != nil {
					cfg.Logger.Warn("scanner: skipping symlink %q: %v", childFull, err)
				}
				continue
			}
			tree.AddSymlink(parent, de.Name(), st, target)
		case info.Mode().IsRegular():
			h := tree.AddFile(parent, de.Name(), st, nil)
			*files = append(*files, record{handle: h, path: childRel, info: info})
		default:
			tree.AddOther(parent, de.Name(), st)
		}
	}
	return nil
}
