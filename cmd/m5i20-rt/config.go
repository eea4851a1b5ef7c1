// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/mesa/internal/rtconf"
	"github.com/go-lpc/mesa/m5i20"
	"periph.io/x/periph/conn/physic"
)

// options returns the driver options described by the configuration.
func options(cfg rtconf.Config, msg log.MsgStream, cal m5i20.Calibrator) ([]m5i20.Option, error) {
	opts := []m5i20.Option{
		m5i20.WithMsgStream(msg),
		m5i20.WithMaxBoards(cfg.MaxBoards),
		m5i20.WithPWMFrequency(physic.Frequency(cfg.PWMFreq) * physic.Hertz),
	}

	if cal != nil {
		opts = append(opts, m5i20.WithCalibration(cal))
	}

	if cfg.Program {
		f, err := os.Open(cfg.Bitstream)
		if err != nil {
			return nil, fmt.Errorf("could not open bitstream: %w", err)
		}
		defer f.Close()

		bs, err := m5i20.ReadBitstream(f)
		if err != nil {
			return nil, fmt.Errorf("could not read bitstream %q: %w", cfg.Bitstream, err)
		}
		msg.Infof(
			"bitstream %q: design=%q part=%q date=%s %s (%d bytes, crc=0x%04x)",
			cfg.Bitstream, bs.Design, bs.Part, bs.Date, bs.Time,
			len(bs.Data), bs.CRC16(),
		)
		opts = append(opts, m5i20.WithProgramFPGA(bs.Data))
	}

	return opts, nil
}
