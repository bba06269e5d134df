package scanner

import "sort"

// FileOrder controls the order in which regular files are handed to the
// segmenter, per spec.md §4.4. Mirrors config.FileOrder's values so the
// CLI's config.BuilderOptions.Order can be passed straight through.
type FileOrder int

const (
	OrderNone FileOrder = iota
	OrderPath
	OrderSimilarity
	OrderScript
)

// EntryMeta is the per-file record exposed to ordering strategies and to
// ScriptFilter, before the entry's content has been read into the
// segmenter. Kept deliberately small: just enough for PATH/SIMILARITY/
// SCRIPT to make their decision.
type EntryMeta struct {
	Path string // slash-separated, relative to the scan root
	Size int64
	Mode uint32
}

// ScriptFilter is the contract spec.md §4.4 describes for order=script:
// "delegates ordering and filtering to a user-provided filter plug-in with
// the contract filter(entry_meta) -> bool and order_key(entry_meta) -> u64".
// Implemented out-of-package by scriptplugin, which hosts the actual user
// script as a subprocess; scanner only depends on this interface to avoid
// importing the plugin-hosting machinery into the core walk.
type ScriptFilter interface {
	Filter(meta EntryMeta) (bool, error)
	OrderKey(meta EntryMeta) (uint64, error)
}

// orderable is one file record carried through sorting; key's meaning
// depends on the active FileOrder (Gray-coded similarity hash, or a
// script's order_key).
type orderable struct {
	meta EntryMeta
	seq  int // original (NONE-mode / walk) order, used as a stable tiebreak
	key  uint64
}

// sortEntries reorders files according to mode, returning them in final
// processing order. Symlinks and directories bypass ordering entirely
// (spec.md §4.4: "After ordering, the scanner feeds each regular file's
// bytes to the Block Manager... symlinks and directories are recorded
// directly"); callers only invoke this with the regular-file subset.
func sortEntries(mode FileOrder, metas []EntryMeta, openForSimilarity func(EntryMeta) (sizedReader, error), script ScriptFilter) ([]EntryMeta, error) {
	switch mode {
	case OrderNone:
		return metas, nil

	case OrderPath:
		out := append([]EntryMeta(nil), metas...)
		sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
		return out, nil

	case OrderSimilarity:
		items := make([]orderable, len(metas))
		for i, m := range metas {
			items[i] = orderable{meta: m, seq: i}
			rc, err := openForSimilarity(m)
			if err != nil {
				return nil, err
			}
			key, err := SimilarityKey(rc, m.Size)
			closeErr := rc.Close()
			if err != nil {
				return nil, err
			}
			if closeErr != nil {
				return nil, closeErr
			}
			items[i].key = uint64(grayCode(key))
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].key != items[j].key {
				return items[i].key < items[j].key
			}
			return items[i].seq < items[j].seq
		})
		out := make([]EntryMeta, len(items))
		for i, it := range items {
			out[i] = it.meta
		}
		return out, nil

	case OrderScript:
		var kept []orderable
		for i, m := range metas {
			ok, err := script.Filter(m)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			key, err := script.OrderKey(m)
			if err != nil {
				return nil, err
			}
			kept = append(kept, orderable{meta: m, seq: i, key: key})
		}
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].key != kept[j].key {
				return kept[i].key < kept[j].key
			}
			return kept[i].seq < kept[j].seq
		})
		out := make([]EntryMeta, len(kept))
		for i, it := range kept {
			out[i] = it.meta
		}
		return out, nil

	default:
		return metas, nil
	}
}

// sizedReader is the minimal io.ReadCloser subset similarity sampling
// needs; kept as its own name so order.go doesn't need to import io just
// for this one signature.
type sizedReader interface {
	Read(p []byte) (int, error)
	Close() error
}
