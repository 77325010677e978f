// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || netbsd || solaris

package region

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapReserve reserves size bytes of anonymous, zero-filled memory and
// returns both a Go slice viewing it and the slice's base address.
func mmapReserve(size int) ([]byte, uintptr, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, 0, err
	}
	return b, uintptr(unsafe.Pointer(&b[0])), nil
}

func mmapRelease(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
