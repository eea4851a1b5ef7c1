// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"
	"math"
	"time"

	"github.com/go-lpc/mesa/m5i20/internal/regs"
	"periph.io/x/periph/conn/physic"
)

const (
	dacMin = -10 // V
	dacMax = +10 // V

	dacScaleMultiply = 0x7fff
	dacScaleDivide   = 10

	pwmClock    = 33e6 // Hz
	pwmRateBits = 26
)

type dac struct {
	enable     bool
	value      float64 // desired output, in volts
	offset     float64
	gain       float64
	interlaced bool

	applied bool // interlaced mode currently written
}

// dacVolts returns the output voltage for the desired value, clamped to
// the DAC rails. NaN yields 0V.
func dacVolts(desired, offset, gain float64) float64 {
	v := (desired - offset) * gain
	switch {
	case math.IsNaN(v):
		return 0
	case v > dacMax:
		return dacMax
	case v < dacMin:
		return dacMin
	}
	return v
}

// dacRaw converts a voltage within the rails to a register value.
func dacRaw(v float64) int32 {
	return int32(v * dacScaleMultiply / dacScaleDivide)
}

// WriteDACs updates the PWM generators from the DAC pins.
func (brd *Board) WriteDACs(period time.Duration) {
	for i := range brd.dac {
		ch := &brd.dac[i]

		if ch.interlaced != ch.applied {
			var mode uint32
			if ch.interlaced {
				mode = regs.PwmInterlaced
			}
			brd.regs.pwm.mode[i].w(mode)
			ch.applied = ch.interlaced
		}

		raw := dacRaw(dacVolts(ch.value, ch.offset, ch.gain))
		brd.regs.pwm.value[i].w(uint32(raw))

		var gate uint32
		if ch.enable {
			gate = regs.PwmEnable
		}
		brd.regs.pwm.gate[i].w(gate)
	}
	brd.wd.onDACWrite(brd)
}

// pwmRate returns the carrier rate register value for the frequency f.
func pwmRate(f physic.Frequency) (uint32, error) {
	hz := float64(f) / float64(physic.Hertz)
	rate := hz * (1 << pwmRateBits) / pwmClock
	if rate < 1 || rate > math.MaxUint16 {
		return 0, fmt.Errorf("m5i20: invalid PWM frequency %v", f)
	}
	return uint32(rate), nil
}

func (brd *Board) initDACs() error {
	rate, err := pwmRate(brd.cfg.pwm)
	if err != nil {
		return err
	}
	brd.regs.pwm.rate.w(rate)

	for i := range brd.dac {
		brd.dac[i].applied = false
		brd.regs.pwm.mode[i].w(0)
		brd.regs.pwm.value[i].w(0)
		brd.regs.pwm.gate[i].w(0)
	}
	return nil
}
