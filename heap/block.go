// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"math"
	"unsafe"
)

// cell is the on-disk layout shared by a block's header and footer: two
// words, one carrying the block's size in units and one carrying a
// free-list link. In a header, ptr is the list successor; in a footer,
// ptr is the list predecessor. Both are meaningful only for free
// blocks — for an allocated block ptr is noBlock, which is the sole
// free/allocated discriminator used by coalescing.
type cell struct {
	ptr  blockRef
	size uintptr
}

// blockRef is a byte offset from the owning Arena's Base(), standing in
// for a native pointer so the heap never holds a Go pointer into memory
// the garbage collector doesn't manage.
type blockRef uintptr

// noBlock is the nil sentinel for blockRef.
const noBlock = blockRef(^uintptr(0))

// maxAlignDummy forces unit to round up to the platform's maximum
// scalar alignment, matching mm_kr_heap.c's max_align_t union member.
type maxAlignDummy struct {
	_ complex128
}

// unit is the atomic cell size of the heap: one header/footer slot,
// rounded up to maximum scalar alignment.
var unit = roundup(int(unsafe.Sizeof(cell{})), int(unsafe.Alignof(maxAlignDummy{})))

func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

// maxMallocBytes is the largest nbytes unitsFor can convert without its
// "+2*unit-1" numerator overflowing a signed int. Requests above this
// can never be satisfied by any real arena, so callers reject them as
// out-of-memory before doing arithmetic that would silently wrap.
var maxMallocBytes = math.MaxInt - 2*unit

// unitsFor returns the smallest block size, in units, that can satisfy
// an nbytes payload request: nbytes rounded up to whole units, plus one
// unit for the header, with the "+2*unit-1" numerator guaranteeing room
// for the footer and for payload rounding. Minimum block size is 2
// units (header + footer, zero usable payload bytes). Callers must
// check nbytes against maxMallocBytes first; unitsFor itself does not
// re-validate.
func unitsFor(nbytes int) uintptr {
	return uintptr((nbytes+2*unit-1)/unit + 1)
}

// bytesFor converts a block size in units to bytes.
func bytesFor(nunits uintptr) int {
	return int(nunits) * unit
}

// cellAt resolves a blockRef to the cell (header or footer) at that
// offset from base.
func (h *Heap) cellAt(ref blockRef) *cell {
	return (*cell)(unsafe.Pointer(h.arena.Base() + uintptr(ref)))
}

// size returns a block's size in units, read from its header.
func (h *Heap) size(bp blockRef) uintptr {
	return h.cellAt(bp).size
}

// setSize writes s to both the header and the footer of the block at
// bp, keeping them symmetric (Invariant 1).
func (h *Heap) setSize(bp blockRef, s uintptr) {
	h.cellAt(bp).size = s
	h.cellAt(h.footer(bp)).size = s
}

// footer returns the blockRef of the footer belonging to the block
// whose header is at bp, using bp's currently-recorded size.
func (h *Heap) footer(bp blockRef) blockRef {
	return bp + blockRef(h.size(bp)-1)*blockRef(unit)
}

// headerFromFooter returns the header of the block whose footer is at
// fp, using the size recorded in that footer.
func (h *Heap) headerFromFooter(fp blockRef) blockRef {
	return fp - blockRef(h.cellAt(fp).size-1)*blockRef(unit)
}

// payload returns the offset of the usable payload for the block
// headered at bp.
func (h *Heap) payload(bp blockRef) blockRef {
	return bp + blockRef(unit)
}

// blockFromPayload is the inverse of payload.
func (h *Heap) blockFromPayload(p blockRef) blockRef {
	return p - blockRef(unit)
}

// next returns a header's free-list successor field.
func (h *Heap) next(bp blockRef) blockRef { return h.cellAt(bp).ptr }

// setNext sets a header's free-list successor field.
func (h *Heap) setNext(bp, v blockRef) { h.cellAt(bp).ptr = v }

// prev returns a footer's free-list predecessor field, stored via the
// block's footer cell.
func (h *Heap) prev(bp blockRef) blockRef { return h.cellAt(h.footer(bp)).ptr }

// setPrev sets a block's free-list predecessor field, stored in its
// footer.
func (h *Heap) setPrev(bp, v blockRef) { h.cellAt(h.footer(bp)).ptr = v }

// before returns the block immediately preceding bp in memory, or
// noBlock if bp sits at the heap's low address. Requires Invariant 1
// (the preceding unit is a valid footer).
func (h *Heap) before(bp blockRef) blockRef {
	if h.arena.Base()+uintptr(bp) <= h.arena.Lo() {
		return noBlock
	}
	return h.headerFromFooter(bp - blockRef(unit))
}

// after returns the block immediately following bp in memory, or
// noBlock if bp's extent reaches the heap's high address.
func (h *Heap) after(bp blockRef) blockRef {
	end := h.arena.Base() + uintptr(bp) + uintptr(h.size(bp))*uintptr(unit)
	if end >= h.arena.Hi() {
		return noBlock
	}
	return bp + blockRef(h.size(bp))*blockRef(unit)
}

// isFree reports whether the block at bp is currently on the free
// list, per Invariant 3: an allocated block always has a nil header
// successor.
func (h *Heap) isFree(bp blockRef) bool {
	return h.next(bp) != noBlock
}
