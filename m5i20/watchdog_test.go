// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"math"
	"testing"
	"time"

	"github.com/go-lpc/mesa/m5i20/internal/regs"
)

func TestWatchdogDisabled(t *testing.T) {
	brd := newTestBoard(t)
	brd.store32(regs.WdCount, 0)

	for i := 0; i < 3; i++ {
		brd.UpdateMisc(time.Millisecond)
		if brd.Estop() || !brd.wd.estopNot {
			t.Fatalf("estop raised with a disabled watchdog")
		}
	}
	if got, want := brd.Watchdog(), WatchdogDisabled; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
}

func TestWatchdogExpiry(t *testing.T) {
	brd := newTestBoard(t)
	wd := &brd.wd
	wd.ctrl = WatchdogEnable
	wd.timeout = 1000

	brd.UpdateMisc(time.Millisecond)
	if got, want := brd.load32(regs.WdControl), uint32(regs.WdEnable); got != want {
		t.Fatalf("invalid control register: got=0x%x, want=0x%x", got, want)
	}
	if got, want := brd.load32(regs.WdTimeout), uint32(33000); got != want {
		t.Fatalf("invalid timeout register: got=%d, want=%d", got, want)
	}
	if brd.Estop() {
		t.Fatalf("estop raised while armed")
	}
	if got, want := brd.Watchdog(), WatchdogArmed; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	// countdown reaches zero.
	brd.store32(regs.WdCount, 0)
	for i := 0; i < 3; i++ {
		brd.UpdateMisc(time.Millisecond)
		if !brd.Estop() || wd.estopNot {
			t.Fatalf("cycle %d: estop not raised", i)
		}
	}
	if got, want := brd.Watchdog(), WatchdogExpired; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	// no auto-reset configured: DAC writes do not recover.
	brd.WriteDACs(time.Millisecond)
	brd.UpdateMisc(time.Millisecond)
	if !brd.Estop() {
		t.Fatalf("estop cleared without reset")
	}

	wd.reset.Set()
	brd.UpdateMisc(time.Millisecond)
	if brd.Estop() {
		t.Fatalf("estop not cleared by manual reset")
	}
	if wd.reset.Bool() {
		t.Fatalf("watchdog-reset not cleared")
	}
	if got, want := brd.load32(regs.WdCount), uint32(33000); got != want {
		t.Fatalf("invalid countdown: got=%d, want=%d", got, want)
	}
}

func TestWatchdogAutoReset(t *testing.T) {
	brd := newTestBoard(t)
	wd := &brd.wd
	wd.ctrl = WatchdogEnable | WatchdogAutoReset
	wd.timeout = 500
	brd.UpdateMisc(time.Millisecond)

	brd.store32(regs.WdCount, 0)
	brd.UpdateMisc(time.Millisecond)
	if !brd.Estop() {
		t.Fatalf("estop not raised")
	}

	brd.WriteDACs(time.Millisecond)
	if got, want := brd.load32(regs.WdCount), uint32(500*33); got != want {
		t.Fatalf("invalid countdown: got=%d, want=%d", got, want)
	}
	brd.UpdateMisc(time.Millisecond)
	if brd.Estop() {
		t.Fatalf("estop not cleared by auto-reset")
	}
}

func TestWatchdogWritesOnChange(t *testing.T) {
	brd := newTestBoard(t)
	var (
		ctrl = wrap(&brd.regs.wd.ctrl, "wd-control", nil)
		tmo  = wrap(&brd.regs.wd.timeout, "wd-timeout", nil)
		led  = wrap(&brd.regs.led, "led-view", nil)
	)

	for i := 0; i < 5; i++ {
		brd.UpdateMisc(time.Millisecond)
	}
	if len(ctrl.ws)+len(tmo.ws)+len(led.ws) != 0 {
		t.Fatalf("unchanged parameters written: ctrl=%v, timeout=%v, led=%v", ctrl.ws, tmo.ws, led.ws)
	}

	brd.wd.led = 0x5
	brd.wd.timeout = 2000
	brd.UpdateMisc(time.Millisecond)
	brd.UpdateMisc(time.Millisecond)

	if len(led.ws) != 1 || led.ws[0] != 0x5 {
		t.Fatalf("invalid led-view writes: %v", led.ws)
	}
	if len(tmo.ws) != 1 || tmo.ws[0] != 2000*33 {
		t.Fatalf("invalid timeout writes: %v", tmo.ws)
	}
	if len(ctrl.ws) != 0 {
		t.Fatalf("invalid control writes: %v", ctrl.ws)
	}
}

func TestWatchdogTicks(t *testing.T) {
	if got, want := wdTicks(16000), uint32(528000); got != want {
		t.Fatalf("invalid ticks: got=%d, want=%d", got, want)
	}
	if got, want := wdTicks(math.MaxUint32), uint32(math.MaxUint32); got != want {
		t.Fatalf("invalid ticks: got=%d, want=%d", got, want)
	}
}
