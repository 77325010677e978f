// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command krheap is a small demo CLI driving a krheap/heap.Heap
// instance, useful for poking at allocator behavior interactively or
// from a script without writing Go.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
