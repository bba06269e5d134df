package segmenter

// Append consumes one file's bytes in order and returns the chunk list that
// reconstructs it exactly, per spec.md §4.3's "Append contract for a file".
//
// No window sizes configured means segmentation is disabled ("-" on the
// CLI): every file becomes a single literal chunk (or several, split across
// block boundaries), with no dedup lookups at all.
func (m *Manager) Append(data []byte) ([]Chunk, error) {
	var chunks []Chunk
	var pending []byte

	flushLiteral := func() {
		if len(pending) == 0 {
			return
		}
		start := m.active.Len()
		if err := m.commit(pending); err != nil {
			// commit only fails on capacity overflow, which callers of
			// Append prevent by sealing before pending would overflow;
			// treat as a programmer error like block.Append does.
			panic(err)
		}
		chunks = appendChunk(chunks, Chunk{BlockID: m.active.ID, Offset: uint32(start), Length: uint32(len(pending))})
		pending = nil
	}

	i := 0
	for i < len(data) {
		// Seal before the pending literal plus one more byte would overflow
		// the active block's capacity.
		if m.active.Len()+len(pending)+1 > m.active.Cap() {
			flushLiteral()
			if err := m.seal(); err != nil {
				return nil, err
			}
		}

		b := data[i]
		i++
		pending = append(pending, b)

		w, matchBegin, ok := m.advanceAndProbe(pending)
		if !ok {
			// Nothing before the lookup window's tail can still become the
			// start of a match (this implementation does not extend
			// matches backward), so it is safe to commit it now rather
			// than holding the whole literal run in memory until a match
			// interrupts it or the file ends. This also ensures later
			// positions in a long literal run can find matches against
			// earlier ones from the *same* Append call (spec.md §8
			// scenario 4: a file made of repeated identical buffers).
			if lw := m.lookupWindow(); lw > 0 && len(pending) > lw {
				excess := len(pending) - lw
				start := m.active.Len()
				if err := m.commit(pending[:excess]); err != nil {
					panic(err)
				}
				chunks = appendChunk(chunks, Chunk{BlockID: m.active.ID, Offset: uint32(start), Length: uint32(excess)})
				pending = pending[excess:]
			}
			continue
		}

		matchLen := w.size
		// Forward extension: keep consuming unread file bytes while they
		// equal committed block bytes following the match, without ever
		// crossing the active block's committed length (matches only
		// reference already-committed content, per spec.md §4.3).
		for i < len(data) &&
			matchBegin+matchLen < m.active.Len() &&
			data[i] == m.active.At(matchBegin+matchLen) {
			matchLen++
			i++
		}

		// The matched window's bytes are part of `pending` (they were just
		// appended above); strip them so they are not also flushed as a
		// literal run.
		pending = pending[:len(pending)-w.size]
		flushLiteral()

		chunks = appendChunk(chunks, Chunk{
			BlockID: m.active.ID,
			Offset:  uint32(matchBegin),
			Length:  uint32(matchLen),
		})

		// The matched bytes are now neither in the active block nor in
		// pending, so no window's rolling hash describes the stream tail any
		// more; re-prime each window on the next byte.
		for _, win := range m.windows {
			win.primed = false
		}
	}

	flushLiteral()
	return chunks, nil
}

// advanceAndProbe rolls every configured window's hash forward by one byte
// (each window has its own "full" threshold, so some may still be filling
// while others are already probing) and returns the first match found,
// trying windows largest-first so a tie between window sizes resolves
// toward the largest one (spec.md §4.3 "Tie-breaks").
func (m *Manager) advanceAndProbe(pending []byte) (w *window, offset int, ok bool) {
	vl := virtualLen(m.active, pending)

	var found *window
	var foundOffset int

	for _, cur := range m.windows {
		if vl < cur.size {
			continue
		}
		if !cur.primed {
			tail := make([]byte, cur.size)
			for k := 0; k < cur.size; k++ {
				tail[k] = byteAt(m.active, pending, vl-cur.size+k)
			}
			cur.hasher.Prime(tail)
			cur.primed = true
		} else {
			byteOut := byteAt(m.active, pending, vl-cur.size-1)
			byteIn := byteAt(m.active, pending, vl-1)
			cur.hasher.Update(byteOut, byteIn)
		}

		if found != nil {
			continue // already have a (larger) match this step; keep rolling smaller windows for next time
		}
		if off, matched := m.lookupMatch(cur, pending); matched {
			found, foundOffset = cur, off
		}
	}

	if found == nil {
		return nil, 0, false
	}
	return found, foundOffset, true
}

// lookupMatch probes w's hash table for the rolling hash just computed by
// advanceAndProbe, verifying candidate matches byte-for-byte to guard
// against hash collisions (spec.md §4.3 step 2-3).
func (m *Manager) lookupMatch(w *window, pending []byte) (offset int, ok bool) {
	if len(pending) < w.size {
		// The window still reaches back into committed bytes; only a
		// window made entirely of uncommitted file bytes can match.
		return 0, false
	}
	h := w.hasher.Hash()
	cand, exists := w.table[h]
	if !exists {
		return 0, false
	}
	if cand+w.size > m.active.Len() {
		// Candidate references content not yet committed (can only happen
		// if a collision landed on a stale/invalid entry); reject it.
		return 0, false
	}
	tail := pending[len(pending)-w.size:]
	for k := 0; k < w.size; k++ {
		if m.active.At(cand+k) != tail[k] {
			return 0, false
		}
	}
	return cand, true
}

func appendChunk(chunks []Chunk, c Chunk) []Chunk {
	// Chunk coalescing: merge with the previous chunk if contiguous in the
	// same block (spec.md §4.3 "Chunk coalescing").
	if n := len(chunks); n > 0 {
		last := &chunks[n-1]
		if last.BlockID == c.BlockID && last.Offset+last.Length == c.Offset {
			last.Length += c.Length
			return chunks
		}
	}
	return append(chunks, c)
}
