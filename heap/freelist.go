// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// link inserts bp into the circular free list immediately before pos.
// If pos is noBlock the list was empty and becomes the single-element
// list {bp}.
func (h *Heap) link(bp, pos blockRef) {
	if pos == noBlock {
		h.setNext(bp, bp)
		h.setPrev(bp, bp)
		h.freep = bp
		return
	}

	p := h.prev(pos)
	h.setNext(p, bp)
	h.setPrev(bp, p)
	h.setNext(bp, pos)
	h.setPrev(pos, bp)
}

// unlink removes bp from the free list it belongs to. If bp is the sole
// member, the list becomes empty and freep is cleared. Callers that may
// be unlinking the current freep itself must first advance freep to
// bp's predecessor — see the callers in alloc.go and free.go.
func (h *Heap) unlink(bp blockRef) {
	if h.next(bp) == bp {
		h.setNext(bp, noBlock)
		h.setPrev(bp, noBlock)
		h.freep = noBlock
		return
	}

	p := h.prev(bp)
	n := h.next(bp)
	h.setNext(p, n)
	h.setPrev(n, p)
	h.setNext(bp, noBlock)
	h.setPrev(bp, noBlock)
}
