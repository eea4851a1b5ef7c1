// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides access to memory-mapped device windows.
package mmap // import "github.com/go-lpc/mesa/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped window.
//
// The Load/Store accessors perform exactly one access of the requested
// width at the requested offset, which is what device registers need.
// They do not check whether the handle was closed.
type Handle struct {
	data []byte
}

// Map maps size bytes of the named file, starting at offset 0.
// The file descriptor is closed once the mapping is established.
func Map(fname string, size int) (*Handle, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	data, err := unix.Mmap(
		int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not mmap %q: %w", fname, err)
	}
	if data == nil || len(data) != size {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("mmap: invalid mmap'd data for %q: %d", fname, len(data))
	}

	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// HandleFrom wraps an already mapped region.
// A plain slice is accepted too; Close then only releases it.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// not a mapping: plain memory.
		return nil
	}
	return err
}

// Len returns the length of the underlying memory-mapped file.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// Load32 reads the 32-bit word at byte offset off.
func (h *Handle) Load32(off int64) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&h.data[off])))
}

// Store32 writes the 32-bit word v at byte offset off.
func (h *Handle) Store32(off int64, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&h.data[off])), v)
}

// Load16 reads the 16-bit word at byte offset off.
//
// Go has no 16-bit atomics and a 32-bit access would also hit the
// neighbouring register. Load16 and Store16 are kept out of line so that
// each call performs exactly one 16-bit bus access: the compiler cannot
// merge or elide accesses across calls.
//
//go:noinline
func (h *Handle) Load16(off int64) uint16 {
	return *(*uint16)(unsafe.Pointer(&h.data[off]))
}

// Store16 writes the 16-bit word v at byte offset off.
// See Load16 for the access guarantees.
//
//go:noinline
func (h *Handle) Store16(off int64, v uint16) {
	*(*uint16)(unsafe.Pointer(&h.data[off])) = v
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
