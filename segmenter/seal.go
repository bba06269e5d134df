package segmenter

import (
	"github.com/dwarfs-go/dwarfs/block"
	"github.com/dwarfs-go/dwarfs/rollinghash"
)

// commit appends data to the active block and indexes every newly-completed
// window-sized suffix within the appended range into each window's hash
// table, honoring "first insertion wins" (spec.md §4.3 "Tie-breaks": the
// oldest instance maximises forward-extension opportunity).
func (m *Manager) commit(data []byte) error {
	start := m.active.Len()
	m.active.Append(data)
	end := m.active.Len()

	for _, w := range m.windows {
		for e := start + 1; e <= end; e++ {
			if e < w.size {
				continue
			}
			off := e - w.size
			h := rollinghash.Sum(m.active.Slice(off, e))
			if _, exists := w.table[h]; !exists {
				w.table[h] = off
			}
		}
	}
	return nil
}

// seal finalizes the active block: hands it to onSeal, discards this
// block's hash tables (spec.md §4.3: "it does not index sealed blocks"),
// and opens a fresh active block with id+1.
func (m *Manager) seal() error {
	m.active.Seal()
	m.trace("sealing block %d (%d bytes)", m.active.ID, m.active.Len())

	if m.onSeal != nil {
		if err := m.onSeal(m.active); err != nil {
			return err
		}
	}

	m.nextBlockID++
	fresh, err := block.New(m.nextBlockID, m.cfg.BlockSizeBits)
	if err != nil {
		return err
	}
	m.active = fresh

	for _, w := range m.windows {
		w.table = map[uint32]int{}
		w.primed = false
		w.hasher.Reset()
	}
	return nil
}

// Flush seals the active block even if it is not yet full, used at
// end-of-scan so the final partial block is still written out.
func (m *Manager) Flush() error {
	if m.active.Len() == 0 {
		return nil
	}
	return m.seal()
}
