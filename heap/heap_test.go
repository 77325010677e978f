// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/rchang/krheap/region"
)

// unsafePointerOf returns a pointer to the first byte of b, for tests
// that need to recover a block's address from its payload slice.
func unsafePointerOf(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}

func newTestHeap(t *testing.T, cap int) (*Heap, *region.Region) {
	t.Helper()
	r, err := region.New(cap)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return New(r), r
}

// checkInvariants asserts the invariants that must hold across the
// free list at any quiescent point: header/footer size symmetry,
// next/prev symmetry, and no two address-adjacent free blocks.
func checkInvariants(t *testing.T, h *Heap) {
	t.Helper()
	if h.freep == noBlock {
		return
	}

	seen := map[blockRef]bool{}
	p := h.freep
	for {
		require.False(t, seen[p], "free list cycle revisited a block early")
		seen[p] = true

		require.Equal(t, h.size(p), h.cellAt(h.footer(p)).size, "header/footer size symmetry")
		require.Equal(t, p, h.next(h.prev(p)), "prev.next == self")
		require.Equal(t, p, h.prev(h.next(p)), "next.prev == self")

		if u := h.after(p); u != noBlock {
			require.False(t, h.isFree(u), "no two free blocks are address-adjacent (upper)")
		}
		if l := h.before(p); l != noBlock {
			require.False(t, h.isFree(l), "no two free blocks are address-adjacent (lower)")
		}

		p = h.next(p)
		if p == h.freep {
			break
		}
	}
}

func TestEmptyToFirstAlloc(t *testing.T) {
	h, r := newTestHeap(t, 1<<16)

	p, err := h.Malloc(100)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.GreaterOrEqual(t, len(p), 100)
	checkInvariants(t, h)

	require.GreaterOrEqual(t, h.GetFree(), r.PageSize()-bytesFor(unitsFor(100)))

	require.NoError(t, h.Free(p))
	checkInvariants(t, h)
	require.GreaterOrEqual(t, h.GetFree(), r.PageSize())
}

func TestExactFitReusesFreedBlock(t *testing.T) {
	h, _ := newTestHeap(t, 1<<16)

	a, err := h.Malloc(100)
	require.NoError(t, err)
	b, err := h.Malloc(100)
	require.NoError(t, err)
	// d sits between b and the free remainder, so freeing b leaves it a
	// separate free block instead of coalescing it into the remainder.
	d, err := h.Malloc(100)
	require.NoError(t, err)

	require.NoError(t, h.Free(b))
	checkInvariants(t, h)

	bBlock := h.blockFromPayload(h.refOf(unsafePointerOf(b)))
	wantUnits := h.size(bBlock)

	c, err := h.Malloc(len(b))
	require.NoError(t, err)
	cBlock := h.blockFromPayload(h.refOf(unsafePointerOf(c)))

	require.Equal(t, bBlock, cBlock, "exact-fit reuse should land at the freed block's address")
	require.Equal(t, wantUnits, h.size(cBlock))

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(d))
}

func TestSplitLeavesRemainderAtOriginalAddress(t *testing.T) {
	h, _ := newTestHeap(t, 1<<20)

	// Force a single large free block by allocating and freeing nothing
	// yet: the first Malloc triggers morecore, which grows by whole
	// pages. We allocate a tiny sentinel first so the arena is grown,
	// then free it to know the whole grown region is one free block.
	seed, err := h.Malloc(1)
	require.NoError(t, err)
	require.NoError(t, h.Free(seed))
	checkInvariants(t, h)

	bigBlock := h.freep
	bigUnits := h.size(bigBlock)

	p, err := h.Malloc(16)
	require.NoError(t, err)
	checkInvariants(t, h)

	pBlock := h.blockFromPayload(h.refOf(unsafePointerOf(p)))
	require.Equal(t, unitsFor(16), h.size(pBlock))

	// the allocated block sits at the high end of the original block
	require.Equal(t, bigBlock+blockRef(bigUnits-h.size(pBlock))*blockRef(unit), pBlock)

	require.Equal(t, bigBlock, h.freep)
	require.Equal(t, bigUnits-h.size(pBlock), h.size(bigBlock))
}

func TestBidirectionalCoalesce(t *testing.T) {
	h, r := newTestHeap(t, 1<<16)

	a, err := h.Malloc(64)
	require.NoError(t, err)
	b, err := h.Malloc(64)
	require.NoError(t, err)
	c, err := h.Malloc(64)
	require.NoError(t, err)

	freeBefore := h.GetFree()

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(b))
	checkInvariants(t, h)

	// a, b and c were carved contiguously (tail-split) out of the same
	// morecore'd region as whatever was already free, so freeing all
	// three merges everything back into a single block spanning the
	// whole grown arena.
	blocks := h.Snapshot()
	require.Len(t, blocks, 1, "a, b, c and the original remainder should merge into one block")
	require.Equal(t, r.Size(), h.GetFree())
	require.Greater(t, h.GetFree(), freeBefore)
}

func TestOOMThenFreeSucceeds(t *testing.T) {
	h, r := newTestHeap(t, 4096)

	var allocs [][]byte
	for {
		p, err := h.Malloc(1)
		if err != nil {
			require.ErrorIs(t, err, ErrOOM)
			break
		}
		allocs = append(allocs, p)
		if len(allocs) > r.PageSize() {
			t.Fatal("allocator never reported OOM against a capped arena")
		}
	}

	require.NoError(t, h.Free(allocs[len(allocs)-1]))
	_, err := h.Malloc(1)
	require.NoError(t, err)
}

func TestMallocOfUnrepresentableSizeReturnsOOM(t *testing.T) {
	h, _ := newTestHeap(t, 4096)

	_, err := h.Malloc(maxMallocBytes + 1)
	require.ErrorIs(t, err, ErrOOM)
	require.Equal(t, 0, h.GetFree())
}

func TestCallocOverflowReturnsError(t *testing.T) {
	h, _ := newTestHeap(t, 4096)

	_, err := h.Calloc(int(^uint(0)>>1), 2)
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, 0, h.GetFree())
}

func TestCallocZeroesPayload(t *testing.T) {
	h, _ := newTestHeap(t, 4096)

	b, err := h.Calloc(8, 4)
	require.NoError(t, err)
	require.Len(t, b, 32)
	for _, v := range b {
		require.Zero(t, v)
	}
}

func TestReallocGrowPreservesPrefix(t *testing.T) {
	h, _ := newTestHeap(t, 1<<16)

	p, err := h.Malloc(8)
	require.NoError(t, err)
	copy(p, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	q, err := h.Realloc(p, 1024)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(q), 1024)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, q[:8])

	require.NoError(t, h.Free(q))
}

func TestReallocShrinkReturnsSamePointer(t *testing.T) {
	h, _ := newTestHeap(t, 1<<16)

	p, err := h.Malloc(1024)
	require.NoError(t, err)

	q, err := h.Realloc(p, 8)
	require.NoError(t, err)
	require.Equal(t, unsafePointerOf(p), unsafePointerOf(q), "realloc must not shrink in place")

	require.NoError(t, h.Free(q))
}

func TestResetRestoresFreshState(t *testing.T) {
	h, _ := newTestHeap(t, 1<<16)

	p, err := h.Malloc(128)
	require.NoError(t, err)
	_ = p

	h.Reset()
	require.Equal(t, noBlock, h.freep)
	require.Equal(t, 0, h.GetFree())

	q, err := h.Malloc(128)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(q), 128)
}

// TestFreeTopBlockDoesNotReadPastHeap exercises the exact shape of
// scenario 1 in spec.md §8: a single malloc followed by a free of a
// block whose upper edge sits exactly at the arena's grown boundary.
// after() must treat that boundary as "no upper neighbor" rather than
// dereferencing a cell one past Hi().
func TestFreeTopBlockDoesNotReadPastHeap(t *testing.T) {
	h, r := newTestHeap(t, 1<<16)

	p, err := h.Malloc(100)
	require.NoError(t, err)
	require.NoError(t, h.Free(p))
	checkInvariants(t, h)
	require.GreaterOrEqual(t, h.GetFree(), r.PageSize())
}

// TestMallocZeroIsFreeable guards against treating every zero-length
// slice as "nothing to free": Malloc(0) still carves a real block, and
// it must come back out through GetFree once Free is called on it.
func TestMallocZeroIsFreeable(t *testing.T) {
	h, _ := newTestHeap(t, 1<<16)

	p, err := h.Malloc(0)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Len(t, p, 0)

	freeBefore := h.GetFree()
	require.NoError(t, h.Free(p))
	checkInvariants(t, h)
	require.Greater(t, h.GetFree(), freeBefore, "a zero-byte allocation's block must be reclaimed on Free")
}

// TestFreeNilIsNoop ensures the genuine "nothing to free" case (a nil
// slice, as from an unsuccessful Malloc) still short-circuits cleanly
// now that the no-op check no longer keys off len(b) == 0.
func TestFreeNilIsNoop(t *testing.T) {
	h, _ := newTestHeap(t, 1<<16)
	require.NoError(t, h.Free(nil))
	require.Equal(t, 0, h.GetFree())
}
