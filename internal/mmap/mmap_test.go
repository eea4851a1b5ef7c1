// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestHandleFrom(t *testing.T) {
	h := HandleFrom([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	defer h.Close()

	if got, want := h.Len(), 8; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	if got, want := h.At(1), byte(1); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	if got, want := h.Load32(4), uint32(0x07060504); got != want {
		t.Fatalf("invalid u32: got=0x%x, want=0x%x", got, want)
	}

	if got, want := h.Load16(2), uint16(0x0302); got != want {
		t.Fatalf("invalid u16: got=0x%x, want=0x%x", got, want)
	}

	// 16-bit stores leave the neighbouring bytes alone.
	h.Store16(2, 0xbeef)
	if got, want := h.Load32(0), uint32(0xbeef0100); got != want {
		t.Fatalf("invalid u32 after u16 store: got=0x%x, want=0x%x", got, want)
	}
	if got, want := h.Load32(4), uint32(0x07060504); got != want {
		t.Fatalf("invalid u32 after u16 store: got=0x%x, want=0x%x", got, want)
	}
	for _, v := range []uint16{0x00ff, 0xff00, 0x1234} {
		h.Store16(6, v)
		if got := h.Load16(6); got != v {
			t.Fatalf("invalid u16: got=0x%x, want=0x%x", got, v)
		}
	}

	_, err := h.WriteAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid WriteAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = h.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not close plain-memory handle: %+v", err)
	}
}

func TestMap(t *testing.T) {
	tmp := t.TempDir()
	fname := filepath.Join(tmp, "resource0")

	const size = 4096
	err := os.WriteFile(fname, make([]byte, size), 0644)
	if err != nil {
		t.Fatalf("could not create resource file: %+v", err)
	}

	h, err := Map(fname, size)
	if err != nil {
		t.Fatalf("could not map resource: %+v", err)
	}

	h.Store32(0x54, 0xcafe0123)
	h.Store16(0x10, 0xbeef)

	if got, want := h.Load32(0x54), uint32(0xcafe0123); got != want {
		t.Fatalf("invalid u32: got=0x%x, want=0x%x", got, want)
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not unmap resource: %+v", err)
	}

	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read back resource: %+v", err)
	}
	if got, want := binary.LittleEndian.Uint32(raw[0x54:]), uint32(0xcafe0123); got != want {
		t.Fatalf("invalid shared u32: got=0x%x, want=0x%x", got, want)
	}
	if got, want := binary.LittleEndian.Uint16(raw[0x10:]), uint16(0xbeef); got != want {
		t.Fatalf("invalid shared u16: got=0x%x, want=0x%x", got, want)
	}

	_, err = Map(filepath.Join(tmp, "not-there"), size)
	if err == nil {
		t.Fatalf("expected an error mapping a missing file")
	}
}
