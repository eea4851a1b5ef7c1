// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"math"
	"time"

	"github.com/go-lpc/mesa/hal"
	"github.com/go-lpc/mesa/m5i20/internal/regs"
)

const (
	defaultWatchdogTimeout = 16000 // µs
	wdTicksPerMicrosecond  = 33
)

// Watchdog control bits.
const (
	WatchdogEnable    = regs.WdEnable
	WatchdogAutoReset = regs.WdAutoReset
)

// WatchdogState is the state of the hardware watchdog.
type WatchdogState uint8

const (
	WatchdogDisabled WatchdogState = iota
	WatchdogArmed
	WatchdogExpired
)

func (st WatchdogState) String() string {
	switch st {
	case WatchdogDisabled:
		return "disabled"
	case WatchdogArmed:
		return "armed"
	case WatchdogExpired:
		return "expired"
	}
	return "unknown"
}

type watchdog struct {
	ctrl    uint32 // Enable|AutoReset
	timeout uint32 // µs
	led     uint32

	reset    hal.Request
	estop    bool
	estopNot bool

	hw struct {
		ctrl  uint32
		ticks uint32
		led   uint32
	}
	count uint32 // last observed countdown
}

func wdTicks(us uint32) uint32 {
	ticks := uint64(us) * wdTicksPerMicrosecond
	if ticks > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ticks)
}

func (wd *watchdog) reload(brd *Board) {
	brd.regs.wd.count.w(wd.hw.ticks)
}

// onDACWrite reloads the countdown when auto-reset is configured.
func (wd *watchdog) onDACWrite(brd *Board) {
	if wd.hw.ctrl&regs.WdAutoReset == 0 {
		return
	}
	wd.reload(brd)
}

// UpdateMisc pushes the watchdog and LED parameters to the hardware,
// services the watchdog reset request and updates the estop pins.
func (brd *Board) UpdateMisc(period time.Duration) {
	wd := &brd.wd

	if ticks := wdTicks(wd.timeout); ticks != wd.hw.ticks {
		brd.regs.wd.timeout.w(ticks)
		wd.hw.ticks = ticks
	}
	if wd.ctrl != wd.hw.ctrl {
		brd.regs.wd.ctrl.w(wd.ctrl)
		wd.hw.ctrl = wd.ctrl
	}
	if wd.led != wd.hw.led {
		brd.regs.led.w(wd.led)
		wd.hw.led = wd.led
	}

	if wd.reset.Pending() {
		wd.reload(brd)
		wd.reset.Ack()
	}

	wd.count = brd.regs.wd.count.r()
	wd.estop = wd.hw.ctrl&regs.WdEnable != 0 && wd.count == 0
	wd.estopNot = !wd.estop
}

// Watchdog returns the state of the watchdog, as of the last update.
func (brd *Board) Watchdog() WatchdogState {
	switch {
	case brd.wd.hw.ctrl&regs.WdEnable == 0:
		return WatchdogDisabled
	case brd.wd.count == 0:
		return WatchdogExpired
	}
	return WatchdogArmed
}

// Estop reports whether the watchdog expired, as of the last update.
func (brd *Board) Estop() bool { return brd.wd.estop }

func (brd *Board) initWatchdog() {
	wd := &brd.wd
	wd.hw.ticks = wdTicks(wd.timeout)
	wd.hw.ctrl = wd.ctrl
	wd.hw.led = wd.led

	brd.regs.wd.timeout.w(wd.hw.ticks)
	brd.regs.wd.ctrl.w(wd.hw.ctrl)
	brd.regs.led.w(wd.hw.led)
	wd.reload(brd)
	wd.count = wd.hw.ticks
	wd.estop = false
	wd.estopNot = true
}
