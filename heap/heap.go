// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap implements a K&R-style dynamic memory allocator: a
// first-fit allocator over a circular doubly-linked free list of
// boundary-tagged blocks, with immediate bidirectional coalescing on
// free. It replaces a process's general-purpose allocator for whatever
// region of memory its Arena grows into.
//
// A Heap is not safe for concurrent use. Embedding it in a
// multi-threaded program requires serializing every public call behind
// a mutual-exclusion primitive held for the duration of the call.
package heap

import "github.com/rs/zerolog"

// Arena is the host-OS memory primitive the heap grows on top of: a
// single contiguous range, extended only by appending. See package
// region for the default mmap-backed implementation.
type Arena interface {
	// Base is the stable address of the first byte of the reservation.
	Base() uintptr
	// Lo is the address of the first grown byte; immutable after the
	// Arena is constructed.
	Lo() uintptr
	// Hi is the address one past the last grown byte; grows
	// monotonically.
	Hi() uintptr
	// PageSize reports the host page size.
	PageSize() int
	// Size reports Hi - Lo.
	Size() int
	// Sbrk grows the arena by n bytes and returns a slice viewing
	// exactly the newly exposed region.
	Sbrk(n int) ([]byte, error)
	// ResetToBase rewinds growth back to Lo.
	ResetToBase()
	// Close releases the arena's OS resources.
	Close() error
}

// Heap is a single allocator instance over one Arena. Its zero value is
// not usable; construct with New.
type Heap struct {
	arena Arena
	freep blockRef
	log   zerolog.Logger
}

// Option configures a Heap at construction time.
type Option func(*Heap)

// WithLogger attaches a structured logger that receives one debug event
// per allocator bookkeeping step (split, exact-fit, coalesce,
// morecore). The default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Heap) { h.log = log }
}

// New constructs a Heap over arena. The arena is assumed freshly reset
// (Size() == 0); callers that want to resume an already-grown arena
// should not do so — Heap tracks no persisted free-list state across
// process restarts. New panics if arena.Base() is not unit-aligned.
func New(arena Arena, opts ...Option) *Heap {
	if arena.Base()%uintptr(unit) != 0 {
		panic("heap: arena base is not unit-aligned")
	}
	h := &Heap{
		arena: arena,
		freep: noBlock,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Reset clears the free list and rewinds the arena to its base, as if
// the Heap had just been constructed over a freshly allocated arena.
func (h *Heap) Reset() {
	h.log.Debug().Msg("reset")
	h.arena.ResetToBase()
	h.freep = noBlock
}

// Close releases the Heap's arena. The Heap must not be used
// afterward.
func (h *Heap) Close() error {
	h.freep = noBlock
	return h.arena.Close()
}
