// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"time"

	"github.com/go-lpc/mesa/m5i20/internal/regs"
)

type digitalIn struct {
	bit   uint // bit position in the port word
	value bool
	not   bool
}

type digitalOut struct {
	bit    uint
	value  bool
	invert bool
}

// ReadDigitalIns updates the digital input pins, reading each port once.
func (brd *Board) ReadDigitalIns(period time.Duration) {
	for port := 0; port < NumPorts; port++ {
		word := brd.regs.dio.in[port].r()
		pins := brd.din[port*regs.DioLines : (port+1)*regs.DioLines]
		for i := range pins {
			pin := &pins[i]
			pin.value = word&(1<<pin.bit) != 0
			pin.not = !pin.value
		}
	}
}

// WriteDigitalOuts writes the digital output pins, once per port.
func (brd *Board) WriteDigitalOuts(period time.Duration) {
	for port := 0; port < NumPorts; port++ {
		var word uint32
		pins := brd.dout[port*regs.DioLines : (port+1)*regs.DioLines]
		for i := range pins {
			pin := &pins[i]
			if pin.value != pin.invert {
				word |= 1 << pin.bit
			}
		}
		brd.regs.dio.out[port].w(word)
	}
}
