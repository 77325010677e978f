// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// BlockInfo is a diagnostic snapshot of one free block, purely for
// introspection — it carries no load-bearing allocator state.
type BlockInfo struct {
	Offset uintptr
	Units  uintptr
	Bytes  int
}

// Snapshot returns one BlockInfo per block currently on the free list,
// in traversal order starting at freep. It never mutates allocator
// state.
func (h *Heap) Snapshot() []BlockInfo {
	if h.freep == noBlock {
		return nil
	}

	blocks := []BlockInfo{h.blockInfo(h.freep)}
	for p := h.next(h.freep); p != h.freep; p = h.next(p) {
		blocks = append(blocks, h.blockInfo(p))
	}
	return blocks
}

func (h *Heap) blockInfo(bp blockRef) BlockInfo {
	sz := h.size(bp)
	return BlockInfo{
		Offset: uintptr(bp),
		Units:  sz,
		Bytes:  bytesFor(sz),
	}
}

// Visualize emits one debug log event per free block plus a summary,
// tagged with msg. Diagnostic only, safe to call at any point between
// public calls.
func (h *Heap) Visualize(msg string) {
	ev := h.log.Debug().Str("tag", msg)
	if h.freep == noBlock {
		ev.Msg("free list is empty")
		return
	}

	blocks := h.Snapshot()
	for _, b := range blocks {
		h.log.Debug().
			Str("tag", msg).
			Uint64("offset", uint64(b.Offset)).
			Uint64("units", uint64(b.Units)).
			Int("bytes", b.Bytes).
			Msg("free block")
	}
	ev.Int("blocks", len(blocks)).Int("free_bytes", h.GetFree()).Msg("free list summary")
}
