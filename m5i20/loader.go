// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"
	"time"

	"github.com/go-lpc/mesa/m5i20/internal/regs"
)

const (
	programDelay = 100 * time.Microsecond
	maxDelay     = 10 * time.Microsecond
	nFlush       = 24
)

// program loads a configuration image into the FPGA.
// It must only run before the periodic functions are registered.
func (brd *Board) program(data []byte) error {
	gpio := brd.regs.gpioc.r()
	if gpio&regs.GpioDone != 0 {
		return ErrConfigBusy
	}

	// program mode: /PROGRAM low, /WRITE high.
	gpio |= regs.GpioWrite
	gpio &^= regs.GpioProgram
	brd.regs.gpioc.w(gpio)
	brd.busyWait(programDelay)

	gpio |= regs.GpioProgram
	brd.regs.gpioc.w(gpio)

	gpio &^= regs.GpioWrite
	brd.regs.gpioc.w(gpio)

	for _, v := range data {
		brd.regs.data.w(uint16(v))
	}

	brd.busyWait(programDelay)
	if brd.regs.gpioc.r()&regs.GpioDone == 0 {
		brd.regs.gpioc.w(gpio | regs.GpioWrite)
		return ErrConfigIncomplete
	}

	for i := 0; i < nFlush; i++ {
		brd.regs.data.w(0xff)
	}
	brd.regs.gpioc.w(gpio | regs.GpioWrite)

	return nil
}

// busyWait waits for at least d, in slices of at most maxDelay.
func (brd *Board) busyWait(d time.Duration) {
	for d > 0 {
		q := d
		if q > maxDelay {
			q = maxDelay
		}
		brd.cfg.delay(q)
		d -= q
	}
}

func spin(d time.Duration) {
	beg := time.Now()
	for time.Since(beg) < d {
	}
}

// Program loads the provided bitstream into the FPGA of the board.
func (brd *Board) Program(bs Bitstream) error {
	brd.msg.Infof(
		"%s: programming FPGA of %q (design=%q, part=%q, size=%d, crc=0x%04x)...",
		brd.name, brd.dev.Slot, bs.Design, bs.Part, len(bs.Data), bs.CRC16(),
	)
	err := brd.program(bs.Data)
	if err != nil {
		return fmt.Errorf("m5i20: could not program FPGA of %q: %w", brd.dev.Slot, err)
	}
	return nil
}
