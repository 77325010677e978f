// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// GetFree walks the free list once and returns the total number of
// free bytes, including header/footer overhead, or zero if the list is
// empty.
func (h *Heap) GetFree() int {
	if h.freep == noBlock {
		return 0
	}

	total := h.size(h.freep)
	for p := h.next(h.freep); p != h.freep; p = h.next(p) {
		total += h.size(p)
	}
	return bytesFor(total)
}
