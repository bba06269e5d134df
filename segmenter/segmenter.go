// Package segmenter implements the Block Manager from spec.md §4.3: given a
// stream of file bytes, it finds duplicate and near-duplicate byte runs
// against the single currently-open block using multi-window rolling
// hashes, and emits (block_id, offset, length) chunks that reconstruct the
// file exactly.
//
// Grounded on kloset/repository/packer's single-active-resource-at-a-time
// packing loop (packer_seq.go): one mutable accumulator, sealed and handed
// off when full. Unlike packer_seq, the Manager does not bound how many
// sealed-but-not-yet-emitted blocks exist at once: it hands each sealed
// block to onSeal and never waits on memory use.
package segmenter

import (
	"fmt"
	"sort"

	"github.com/dwarfs-go/dwarfs/block"
	"github.com/dwarfs-go/dwarfs/logging"
	"github.com/dwarfs-go/dwarfs/rollinghash"
)

// Chunk is one (block_id, offset, length) triple, per spec.md §3.
type Chunk struct {
	BlockID uint32
	Offset  uint32
	Length  uint32
}

// SealFunc hands a sealed block off to the caller (the Filesystem Writer in
// the real pipeline). It must not retain the block's buffer beyond return
// without copying it, since the Manager is free to overwrite it... in
// practice the Manager never reuses a Block after sealing, only drops its
// reference, so retaining is safe; the contract is documented this way to
// mirror the "owned by the writer until emitted" rule in spec.md §5.
type SealFunc func(*block.Block) error

// Config configures one Manager.
type Config struct {
	BlockSizeBits int   // S: blocks are capped at 2^S bytes
	WindowBits    []int // b_i exponents; window sizes are 2^b_i. Empty disables segmentation (matches CLI's "-").
	Logger        logging.Logger
}

// window holds the per-window-size rolling-hash state and the hash table
// scoped to the current active block (discarded on seal, per spec.md §4.3).
type window struct {
	size   int
	hasher *rollinghash.Hasher
	table  map[uint32]int // hash(last `size` bytes) -> first-seen committed offset
	primed bool
}

func newWindow(size int) *window {
	return &window{size: size, hasher: rollinghash.New(size), table: map[uint32]int{}}
}

// Manager is the segmenting block manager. It owns a single active block;
// it is not safe for concurrent use from multiple goroutines, matching
// spec.md §5's "segmenter is single-threaded per active block".
type Manager struct {
	cfg     Config
	windows []*window // sorted largest-first, so matching prefers the largest window on a tie (spec.md §4.3 "Tie-breaks")

	active      *block.Block
	nextBlockID uint32
	onSeal      SealFunc

	logger logging.Logger
}

// New constructs a Manager. onSeal is invoked synchronously whenever a
// block fills or Flush forces a seal; it typically hands the block to a
// worker pool for compression.
func New(cfg Config, onSeal SealFunc) (*Manager, error) {
	if cfg.BlockSizeBits < 12 || cfg.BlockSizeBits > 28 {
		return nil, fmt.Errorf("segmenter: block-size-bits %d out of range [12,28]", cfg.BlockSizeBits)
	}

	sizes := append([]int(nil), cfg.WindowBits...)
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))

	windows := make([]*window, 0, len(sizes))
	for _, b := range sizes {
		if b < 1 {
			return nil, fmt.Errorf("segmenter: window-bits %d must be >= 1", b)
		}
		windows = append(windows, newWindow(1<<uint(b)))
	}

	active, err := block.New(0, cfg.BlockSizeBits)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:     cfg,
		windows: windows,
		active:  active,
		onSeal:  onSeal,
		logger:  cfg.Logger,
	}, nil
}

// lookupWindow returns the largest configured window, W* in spec.md §4.3,
// or 0 if segmentation is disabled (no window sizes configured).
func (m *Manager) lookupWindow() int {
	if len(m.windows) == 0 {
		return 0
	}
	return m.windows[0].size
}

// virtualLen is the length of the conceptual byte stream: committed block
// bytes followed by the not-yet-committed literal tail.
func virtualLen(active *block.Block, pending []byte) int {
	return active.Len() + len(pending)
}

// byteAt returns the byte at a position in the conceptual stream described
// by virtualLen.
func byteAt(active *block.Block, pending []byte, pos int) byte {
	if pos < active.Len() {
		return active.At(pos)
	}
	return pending[pos-active.Len()]
}

func (m *Manager) trace(format string, args ...any) {
	if m.logger != nil {
		m.logger.Trace("segmenter", format, args...)
	}
}
