// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"

	"github.com/go-lpc/mesa/hal"
)

// entries returns the pins and parameters of the board.
func (brd *Board) entries() []hal.Entry {
	var (
		ents = make([]hal.Entry, 0, 512)
		name = func(format string, args ...interface{}) string {
			return brd.name + "." + fmt.Sprintf(format, args...)
		}
	)

	for i := range brd.enc {
		enc := &brd.enc[i]
		ents = append(ents,
			hal.Pin(name("enc-%02d-count", i), hal.Out, &enc.count),
			hal.Pin(name("enc-%02d-count-latch", i), hal.Out, &enc.countLatch),
			hal.Pin(name("enc-%02d-position", i), hal.Out, &enc.position),
			hal.Pin(name("enc-%02d-position-latch", i), hal.Out, &enc.positionLatch),
			hal.Pin(name("enc-%02d-index", i), hal.Out, &enc.index),
			hal.Pin(name("enc-%02d-index-latch", i), hal.Out, &enc.indexLatch),
			hal.Pin(name("enc-%02d-latch-index", i), hal.IO, &enc.latchIndex),
			hal.Pin(name("enc-%02d-reset-count", i), hal.IO, &enc.resetCount),
			hal.Param(name("enc-%02d-scale", i), hal.RW, &enc.scale),
		)
	}

	for i := range brd.dac {
		dac := &brd.dac[i]
		ents = append(ents,
			hal.Pin(name("dac-%02d-enable", i), hal.In, &dac.enable),
			hal.Pin(name("dac-%02d-value", i), hal.In, &dac.value),
			hal.Param(name("dac-%02d-offset", i), hal.RW, &dac.offset),
			hal.Param(name("dac-%02d-gain", i), hal.RW, &dac.gain),
			hal.Param(name("dac-%02d-interlaced", i), hal.RW, &dac.interlaced),
		)
	}

	for i := range brd.din {
		pin := &brd.din[i]
		ents = append(ents,
			hal.Pin(name("in-%02d", i), hal.Out, &pin.value),
			hal.Pin(name("in-%02d-not", i), hal.Out, &pin.not),
		)
	}

	for i := range brd.dout {
		pin := &brd.dout[i]
		ents = append(ents,
			hal.Pin(name("out-%02d", i), hal.In, &pin.value),
			hal.Param(name("out-%02d-invert", i), hal.RW, &pin.invert),
		)
	}

	wd := &brd.wd
	ents = append(ents,
		hal.Pin(name("estop"), hal.Out, &wd.estop),
		hal.Pin(name("estop-not"), hal.Out, &wd.estopNot),
		hal.Pin(name("watchdog-reset"), hal.IO, &wd.reset),
		hal.Param(name("watchdog-control"), hal.RW, &wd.ctrl),
		hal.Param(name("watchdog-timeout"), hal.RW, &wd.timeout),
		hal.Param(name("led-view"), hal.RW, &wd.led),
	)

	return ents
}

// Functs returns the periodic functions of the board.
func (brd *Board) Functs() []hal.Funct {
	return []hal.Funct{
		{Name: brd.name + ".encoder-read", Fn: brd.ReadEncoders},
		{Name: brd.name + ".dac-write", Fn: brd.WriteDACs},
		{Name: brd.name + ".digital-in-read", Fn: brd.ReadDigitalIns},
		{Name: brd.name + ".digital-out-write", Fn: brd.WriteDigitalOuts},
		{Name: brd.name + ".misc-update", Fn: brd.UpdateMisc},
	}
}

func (brd *Board) export(reg hal.Registry) error {
	err := reg.Export(brd.entries()...)
	if err != nil {
		return fmt.Errorf("m5i20: could not export pins of %s: %w", brd.name, err)
	}

	err = reg.Funct(brd.Functs()...)
	if err != nil {
		return fmt.Errorf("m5i20: could not export functions of %s: %w", brd.name, err)
	}
	return nil
}
