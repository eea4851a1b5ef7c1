// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"periph.io/x/periph/conn/physic"
)

const (
	defaultPWM = 20 * physic.KiloHertz
)

type config struct {
	bitstream []byte
	program   bool

	pwm physic.Frequency
	max int

	msg   log.MsgStream
	cal   Calibrator
	delay func(time.Duration)
}

func newConfig() config {
	return config{
		pwm:   defaultPWM,
		max:   MaxBoards,
		msg:   log.NewMsgStream("m5i20", log.LvlInfo, os.Stdout),
		delay: spin,
	}
}

// Option configures the bring-up of boards.
type Option func(*config)

// WithProgramFPGA programs the FPGA of each board with the provided
// bitstream payload before use.
func WithProgramFPGA(bitstream []byte) Option {
	return func(cfg *config) {
		cfg.bitstream = bitstream
		cfg.program = true
	}
}

// WithPWMFrequency sets the PWM carrier frequency.
func WithPWMFrequency(f physic.Frequency) Option {
	return func(cfg *config) {
		cfg.pwm = f
	}
}

// WithMaxBoards bounds the number of attached boards.
func WithMaxBoards(n int) Option {
	return func(cfg *config) {
		cfg.max = n
	}
}

// WithMsgStream sets the logger used during bring-up.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithCalibration applies the calibration provided by cal at bring-up.
func WithCalibration(cal Calibrator) Option {
	return func(cfg *config) {
		cfg.cal = cal
	}
}

// WithDelay sets the function used to wait during FPGA programming.
// It is called with delays of at most 10µs.
func WithDelay(f func(time.Duration)) Option {
	return func(cfg *config) {
		cfg.delay = f
	}
}
