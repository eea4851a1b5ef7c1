// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"
	"sort"

	"github.com/go-lpc/mesa/internal/mmap"
)

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

type reg16 struct {
	r func() uint16
	w func(v uint16)
}

// window is a mapped register window.
// Every register reachable through a window is claimed once, at bind time.
type window struct {
	name   string
	h      *mmap.Handle
	claims []claim // sorted by offset
}

type claim struct {
	name string
	off  int64
	size int64
}

func newWindow(name string, h *mmap.Handle) *window {
	return &window{name: name, h: h}
}

func (win *window) claim(name string, off, size int64) error {
	if off < 0 || off+size > int64(win.h.Len()) {
		return fmt.Errorf(
			"m5i20: register %q [0x%x, 0x%x) out of %s window (size=0x%x)",
			name, off, off+size, win.name, win.h.Len(),
		)
	}
	if off%size != 0 {
		return fmt.Errorf("m5i20: register %q at 0x%x is not aligned", name, off)
	}

	i := sort.Search(len(win.claims), func(i int) bool {
		return win.claims[i].off+win.claims[i].size > off
	})
	if i < len(win.claims) && win.claims[i].off < off+size {
		return fmt.Errorf(
			"m5i20: register %q at 0x%x overlaps register %q in %s window",
			name, off, win.claims[i].name, win.name,
		)
	}

	win.claims = append(win.claims, claim{})
	copy(win.claims[i+1:], win.claims[i:])
	win.claims[i] = claim{name: name, off: off, size: size}
	return nil
}

func (brd *Board) claim(win *window, name string, off, size int64) bool {
	if brd.err != nil {
		return false
	}
	brd.err = win.claim(name, off, size)
	return brd.err == nil
}

func newReg32(brd *Board, win *window, name string, off int64) reg32 {
	if !brd.claim(win, name, off, 4) {
		return reg32{}
	}
	h := win.h
	return reg32{
		r: func() uint32 {
			return h.Load32(off)
		},
		w: func(v uint32) {
			h.Store32(off, v)
		},
	}
}

func newReg16(brd *Board, win *window, name string, off int64) reg16 {
	if !brd.claim(win, name, off, 2) {
		return reg16{}
	}
	h := win.h
	return reg16{
		r: func() uint16 {
			return h.Load16(off)
		},
		w: func(v uint16) {
			h.Store16(off, v)
		},
	}
}
