// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"

	"github.com/go-lpc/mesa/hal"
	"github.com/go-lpc/mesa/internal/pci"
)

// Attach brings up the cards found at the provided PCI locations and
// exports their pins, parameters and functions to reg.
//
// A card failing bring-up is closed, exports nothing and is skipped.
// Attach returns ErrNoBoard when no card could be attached.
func Attach(devs []pci.Device, reg hal.Registry, opts ...Option) ([]*Board, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.max > 0 && len(devs) > cfg.max {
		cfg.msg.Warnf("found %d cards, attaching the first %d", len(devs), cfg.max)
		devs = devs[:cfg.max]
	}

	var boards []*Board
	for _, dev := range devs {
		brd, err := attach(dev, len(boards), reg, cfg)
		if err != nil {
			cfg.msg.Errorf("could not attach card %q: %+v", dev.Slot, err)
			continue
		}
		cfg.msg.Infof(
			"attached card %q as %s (pwm=%v)",
			dev.Slot, brd.name, brd.cfg.pwm,
		)
		boards = append(boards, brd)
	}

	if len(boards) == 0 {
		return nil, ErrNoBoard
	}
	return boards, nil
}

func attach(dev pci.Device, id int, reg hal.Registry, cfg config) (*Board, error) {
	brd, err := open(dev, id, cfg)
	if err != nil {
		return nil, err
	}

	err = brd.setup(reg)
	if err != nil {
		_ = brd.Close()
		return nil, err
	}
	return brd, nil
}

func (brd *Board) setup(reg hal.Registry) error {
	if brd.cfg.program {
		bs := Bitstream{Data: brd.cfg.bitstream}
		err := brd.Program(bs)
		if err != nil {
			return err
		}
	}

	err := brd.calibrate()
	if err != nil {
		return err
	}

	err = brd.init()
	if err != nil {
		return err
	}

	return brd.export(reg)
}

func (brd *Board) calibrate() error {
	if brd.cfg.cal == nil {
		return nil
	}

	cal, err := brd.cfg.cal.Calibration(brd.dev.Slot)
	if err != nil {
		return fmt.Errorf("m5i20: could not fetch calibration of %q: %w", brd.dev.Slot, err)
	}

	for i, c := range cal.DACs {
		brd.dac[i].offset = c.Offset
		if c.Gain != 0 {
			brd.dac[i].gain = c.Gain
		}
	}
	for i, scale := range cal.Encoders {
		if scale != 0 {
			brd.enc[i].scale = scale
		}
	}
	if cal.Watchdog != 0 {
		brd.wd.timeout = cal.Watchdog
	}
	return nil
}

// init puts the hardware in a known state.
func (brd *Board) init() error {
	err := brd.initDACs()
	if err != nil {
		return fmt.Errorf("m5i20: could not initialize DACs of %q: %w", brd.dev.Slot, err)
	}
	brd.initEncoders()
	brd.WriteDigitalOuts(0)
	brd.initWatchdog()
	return nil
}
