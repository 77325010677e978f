// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"math/bits"
	"unsafe"
)

// Realloc changes the size of the allocation referenced by b to nbytes,
// preserving its contents up to min(old, new) size. If b is nil,
// Realloc behaves like Malloc. A non-nil zero-length b (Malloc(0)'s
// result) still refers to a real block and is resized like any other
// allocation. If nbytes is positive and the existing block already has
// room for it, b is returned unchanged — Realloc never shrinks a block
// in place. Realloc(b, 0) moves to a fresh minimum-size block and frees
// b.
func (h *Heap) Realloc(b []byte, nbytes int) ([]byte, error) {
	bp0 := unsafe.SliceData(b)
	if bp0 == nil {
		return h.Malloc(nbytes)
	}

	bp := h.blockFromPayload(h.refOf(unsafe.Pointer(bp0)))
	if nbytes > 0 && nbytes <= maxMallocBytes && h.size(bp) >= unitsFor(nbytes) {
		return b, nil
	}

	newB, err := h.Malloc(nbytes)
	if err != nil {
		return nil, err
	}

	// both header and footer units are subtracted here (size-2); see
	// DESIGN.md for why a size-1 count would silently let a copy reach
	// into the footer.
	oldPayloadBytes := bytesFor(h.size(bp) - 2)
	n := oldPayloadBytes
	if nbytes < n {
		n = nbytes
	}
	copy(newB, b[:n])

	if err := h.Free(b); err != nil {
		return nil, err
	}
	return newB, nil
}

// UnsafeRealloc is like Realloc but takes and returns unsafe.Pointer.
func (h *Heap) UnsafeRealloc(p unsafe.Pointer, nbytes int) (unsafe.Pointer, error) {
	if p == nil {
		return h.UnsafeMalloc(nbytes)
	}

	bp := h.blockFromPayload(h.refOf(p))
	if nbytes > 0 && nbytes <= maxMallocBytes && h.size(bp) >= unitsFor(nbytes) {
		return p, nil
	}

	newP, err := h.UnsafeMalloc(nbytes)
	if err != nil {
		return nil, err
	}

	oldPayloadBytes := bytesFor(h.size(bp) - 2)
	n := oldPayloadBytes
	if nbytes < n {
		n = nbytes
	}
	oldB := unsafe.Slice((*byte)(p), n)
	newB := unsafe.Slice((*byte)(newP), n)
	copy(newB, oldB)

	if err := h.UnsafeFree(p); err != nil {
		return nil, err
	}
	return newP, nil
}

// Calloc allocates space for count objects of size bytes each and
// zero-fills it. It returns ErrOverflow without allocating if
// count*size overflows.
func (h *Heap) Calloc(count, size int) ([]byte, error) {
	nbytes, err := checkedMul(count, size)
	if err != nil {
		return nil, err
	}

	b, err := h.Malloc(nbytes)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// UnsafeCalloc is like Calloc but returns an unsafe.Pointer.
func (h *Heap) UnsafeCalloc(count, size int) (unsafe.Pointer, error) {
	nbytes, err := checkedMul(count, size)
	if err != nil {
		return nil, err
	}

	p, err := h.UnsafeMalloc(nbytes)
	if err != nil {
		return nil, err
	}
	b := unsafe.Slice((*byte)(p), nbytes)
	for i := range b {
		b[i] = 0
	}
	return p, nil
}

// checkedMul multiplies count and size, reporting ErrOverflow instead
// of wrapping, the way the C source's mul_of macro guarded
// calloc's count*size. Negative operands are rejected outright.
func checkedMul(count, size int) (int, error) {
	if count < 0 || size < 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(count), uint64(size))
	if hi != 0 || lo > uint64(^uint(0)>>1) {
		return 0, ErrOverflow
	}
	return int(lo), nil
}
