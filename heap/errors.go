// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import (
	"errors"
	"fmt"
)

// ErrOOM is returned by Malloc, Calloc and Realloc when the free list
// cannot satisfy a request and the arena refuses to grow further.
var ErrOOM = errors.New("heap: out of memory")

// ErrOverflow is returned by Calloc when count*size overflows.
var ErrOverflow = errors.New("heap: calloc size overflow")

// oomError wraps the arena's own growth failure so callers can still
// errors.Is against ErrOOM while keeping the underlying cause visible.
func oomError(cause error) error {
	return fmt.Errorf("%w: %v", ErrOOM, cause)
}
