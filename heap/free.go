// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "unsafe"

// Free deallocates the memory referenced by b, which must have been
// returned by Malloc, Calloc or Realloc. A nil b is a no-op; a non-nil
// zero-length b (as returned by Malloc(0)) still refers to a real block
// and is freed like any other allocation — len(b) alone can't
// distinguish "nothing to free" from "a zero-byte allocation".
//
// Free panics if the block's recorded size is implausible (under two
// units or larger than the grown heap), as a best-effort
// programmer-error detection. A double free or a corrupted header that
// passes that check is undefined behavior.
func (h *Heap) Free(b []byte) error {
	p := unsafe.SliceData(b)
	if p == nil {
		return nil
	}
	return h.free(h.blockFromPayload(h.refOf(unsafe.Pointer(p))))
}

// UnsafeFree is like Free but takes an unsafe.Pointer, as returned by
// UnsafeMalloc, UnsafeCalloc or UnsafeRealloc.
func (h *Heap) UnsafeFree(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	return h.free(h.blockFromPayload(h.refOf(p)))
}

func (h *Heap) free(bp blockRef) error {
	sz := h.size(bp)
	if sz < 2 || bytesFor(sz) > h.arena.Size() {
		panic("heap: free of corrupted or invalid block")
	}

	if h.freep == noBlock {
		h.log.Debug().Msg("free: bootstrap empty list")
		h.setNext(bp, bp)
		h.setPrev(bp, bp)
		h.freep = bp
		return nil
	}

	if u := h.after(bp); u != noBlock && h.isFree(u) {
		h.log.Debug().Msg("free: coalesce upper")
		if h.freep == u {
			h.freep = h.prev(u)
		}
		h.unlink(u)
		h.setSize(bp, h.size(bp)+h.size(u))
		h.setNext(bp, noBlock)
		h.setPrev(bp, noBlock)
	}

	if l := h.before(bp); l != noBlock && h.isFree(l) {
		h.log.Debug().Msg("free: coalesce lower")
		if h.freep == l {
			h.freep = h.prev(l)
		}
		h.unlink(l)
		h.setSize(l, h.size(l)+h.size(bp))
		h.setNext(bp, noBlock)
		h.setPrev(bp, noBlock)
		h.setNext(l, noBlock)
		h.setPrev(l, noBlock)
		bp = l
	}

	h.link(bp, h.freep)
	h.freep = h.prev(bp)
	return nil
}
