// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"errors"
	"unsafe"
)

// Malloc allocates nbytes of memory and returns a byte slice viewing
// the allocated payload. The payload's contents are indeterminate. It
// returns ErrOOM (wrapping the arena's growth failure) if the request
// cannot be satisfied.
//
// Malloc(0) still returns a real, freeable block: the returned slice
// has length zero but a non-nil backing pointer, so it is
// distinguishable from "no allocation" and must still be passed to
// Free.
func (h *Heap) Malloc(nbytes int) ([]byte, error) {
	p, err := h.malloc(nbytes)
	if err != nil {
		return nil, err
	}
	return h.payloadBytes(p), nil
}

// UnsafeMalloc is like Malloc but returns an unsafe.Pointer to the
// payload instead of a bounded byte slice, for callers that need a
// stable address across further Heap calls.
func (h *Heap) UnsafeMalloc(nbytes int) (unsafe.Pointer, error) {
	p, err := h.malloc(nbytes)
	if err != nil {
		return nil, err
	}
	return h.ptrAt(h.payload(p)), nil
}

// malloc implements the core first-fit allocation engine and returns
// the header of the block whose payload satisfies nbytes.
func (h *Heap) malloc(nbytes int) (blockRef, error) {
	if nbytes < 0 {
		panic("heap: malloc of negative size")
	}
	if nbytes > maxMallocBytes {
		return 0, oomError(errors.New("requested size exceeds any representable block"))
	}

	n := unitsFor(nbytes)

	if h.freep == noBlock {
		p, err := h.morecore(n)
		if err != nil {
			return 0, oomError(err)
		}
		h.freep = p
	}

	for p := h.next(h.freep); ; p = h.next(p) {
		if h.size(p) >= n {
			if h.size(p) == n || h.size(p) == n+1 {
				h.log.Debug().Uint64("offset", uint64(p)).Msg("malloc: exact fit")
				if h.freep == p {
					h.freep = h.prev(p)
				}
				h.unlink(p)
			} else {
				h.log.Debug().Uint64("offset", uint64(p)).Uint64("units", uint64(n)).Msg("malloc: split")
				prevOfP := h.prev(p)
				nextOfP := h.next(p)
				h.setSize(p, h.size(p)-n)
				h.setPrev(p, prevOfP)
				h.setNext(p, nextOfP)

				p = p + blockRef(h.size(p))*blockRef(unit)
				h.setSize(p, n)
				h.setNext(p, noBlock)
				h.setPrev(p, noBlock)

				h.freep = prevOfP
			}
			return p, nil
		}

		if p == h.freep {
			grown, err := h.morecore(n)
			if err != nil {
				return 0, oomError(err)
			}
			p = grown
		}
	}
}

// payloadBytes returns a []byte view over a header's usable payload:
// its size in units minus the header and footer units, so that writes
// through the returned slice can never clobber the footer's size field
// (Invariant 1 must hold even while the block is allocated).
func (h *Heap) payloadBytes(bp blockRef) []byte {
	usable := bytesFor(h.size(bp) - 2)
	ptr := h.ptrAt(h.payload(bp))
	return unsafe.Slice((*byte)(ptr), usable)
}

// ptrAt resolves a blockRef to an absolute unsafe.Pointer.
func (h *Heap) ptrAt(ref blockRef) unsafe.Pointer {
	return unsafe.Pointer(h.arena.Base() + uintptr(ref))
}

// refOf is the inverse of ptrAt.
func (h *Heap) refOf(p unsafe.Pointer) blockRef {
	return blockRef(uintptr(p) - h.arena.Base())
}

// morecore grows the arena by n units or by one page of units,
// whichever is larger, formats the new region as a single free block, and
// folds it into the free list via Free so it coalesces with whatever
// tail block already abuts it. It returns the resulting freep.
func (h *Heap) morecore(n uintptr) (blockRef, error) {
	nalloc := uintptr(h.arena.PageSize() / unit)
	if n < nalloc {
		n = nalloc
	}

	grownAt := blockRef(h.arena.Size())
	if _, err := h.arena.Sbrk(bytesFor(n)); err != nil {
		return noBlock, err
	}

	h.log.Debug().Uint64("units", uint64(n)).Msg("morecore")

	bp := grownAt
	h.setSize(bp, n)
	if err := h.Free(h.payloadBytes(bp)); err != nil {
		return noBlock, err
	}

	return h.freep, nil
}
