// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package region

import (
	"os"
	"syscall"
	"unsafe"
)

// handleMap remembers the file-mapping handle behind each reservation so
// mmapRelease can unwind it.
var handleMap = map[uintptr]syscall.Handle{}

func mmapReserve(size int) ([]byte, uintptr, error) {
	sizeHigh := uint32(uint64(size) >> 32)
	sizeLow := uint32(uint64(size) & 0xFFFFFFFF)

	h, err := syscall.CreateFileMapping(syscall.InvalidHandle, nil, syscall.PAGE_READWRITE, sizeHigh, sizeLow, nil)
	if h == 0 {
		return nil, 0, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := syscall.MapViewOfFile(h, syscall.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if addr == 0 {
		syscall.CloseHandle(h)
		return nil, 0, os.NewSyscallError("MapViewOfFile", err)
	}

	handleMap[addr] = h

	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return b, addr, nil
}

func mmapRelease(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := syscall.UnmapViewOfFile(addr); err != nil {
		return err
	}
	if h, ok := handleMap[addr]; ok {
		delete(handleMap, addr)
		return syscall.CloseHandle(h)
	}
	return nil
}
