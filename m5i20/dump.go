// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"
	"io"
)

// DumpRegisters writes the content of all the registers of the board.
func (brd *Board) DumpRegisters(w io.Writer) error {
	_, err := fmt.Fprintf(w, "board %s (slot=%q)\n", brd.name, brd.dev.Slot)
	if err != nil {
		return fmt.Errorf("m5i20: could not dump registers: %w", err)
	}

	for _, win := range []*window{brd.mem.bridge, brd.mem.fpga32, brd.mem.fpga16} {
		for _, c := range win.claims {
			switch c.size {
			case 2:
				_, err = fmt.Fprintf(w, "%s[0x%04x] %-16s= 0x%04x\n",
					win.name, c.off, c.name, win.h.Load16(c.off),
				)
			default:
				_, err = fmt.Fprintf(w, "%s[0x%04x] %-16s= 0x%08x\n",
					win.name, c.off, c.name, win.h.Load32(c.off),
				)
			}
			if err != nil {
				return fmt.Errorf("m5i20: could not dump register %q: %w", c.name, err)
			}
		}
	}

	_, err = fmt.Fprintf(w, "watchdog: %v\n", brd.Watchdog())
	if err != nil {
		return fmt.Errorf("m5i20: could not dump registers: %w", err)
	}
	return nil
}
